package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PartyTonight-App/internal/domain/geocell"
	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
	repoImpl "PartyTonight-App/internal/repository"
)

// spyRepo 呼び出し回数を数え、任意のエラーを返せるリポジトリ
type spyRepo struct {
	inner repository.PartiesRepository

	mu      sync.Mutex
	gets    int
	saves   int
	finds   int
	getErr  error
	saveErr error
	findErr error
}

func newSpyRepo() *spyRepo {
	return &spyRepo{inner: repoImpl.NewMemoryPartiesRepository()}
}

func (s *spyRepo) GetByID(ctx context.Context, id string) (*model.Party, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.GetByID(ctx, id)
}

func (s *spyRepo) Save(ctx context.Context, p *model.Party) error {
	s.mu.Lock()
	s.saves++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Save(ctx, p)
}

func (s *spyRepo) FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error) {
	s.mu.Lock()
	s.finds++
	err := s.findErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.FindByGeocells(ctx, cells, createdAfter)
}

func (s *spyRepo) counts() (gets, saves, finds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.saves, s.finds
}

// seedParty 作成日時を指定してパーティーを直接保存する
func seedParty(t *testing.T, repo repository.PartiesRepository, lat, lng float64, createdAt time.Time) model.Party {
	t.Helper()
	p := model.Party{
		ID:         model.PartyID(lat, lng),
		Latitude:   lat,
		Longitude:  lng,
		Geocells:   geocell.Encode(lat, lng),
		RatersSeen: []string{},
		CreatedAt:  createdAt.UTC(),
	}
	require.NoError(t, repo.Save(context.Background(), &p))
	return p
}

// offset 中心から北にnorthメートル、東にeastメートル移動した座標
func offset(center model.LatLng, north, east float64) model.LatLng {
	const metersPerDegree = 111319.49
	lat := center.Lat + north/metersPerDegree
	lng := center.Lng + east/(metersPerDegree*cosDeg(center.Lat))
	return model.LatLng{Lat: lat, Lng: lng}
}

// nearestOnMeridian 経度lngの子午線上で中心に最も近い座標
func nearestOnMeridian(center model.LatLng, lng float64) model.LatLng {
	phi := center.Lat * math.Pi / 180
	dLng := (lng - center.Lng) * math.Pi / 180
	lat := math.Atan(math.Tan(phi)/math.Cos(dLng)) * 180 / math.Pi
	return model.LatLng{Lat: lat, Lng: lng}
}

func cosDeg(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180)
}
