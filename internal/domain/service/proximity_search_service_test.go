package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PartyTonight-App/internal/domain/helper"
	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/infrastructure/lock"
	"PartyTonight-App/internal/infrastructure/logger"
)

var (
	epoch   = time.Unix(0, 0).UTC()
	tonight = time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
)

func newSearch(repo *spyRepo, opts ProximitySearchOptions) ProximitySearchService {
	return NewProximitySearchService(repo, logger.Nop(), opts)
}

func TestProximitySearchService_Scenario(t *testing.T) {
	ctx := context.Background()
	repo := newSpyRepo()
	store := NewPartyStoreService(repo, lock.NewLocalLocker(), logger.Nop())
	search := newSearch(repo, DefaultProximitySearchOptions())

	_, err := store.Upsert(ctx, rating(40.0, -75.0, "", false, 5, "A"))
	require.NoError(t, err)

	parties, err := search.Search(ctx, model.LatLng{Lat: 40.0, Lng: -75.0}, 10, 1000, epoch)
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, 5, parties[0].Rating)
	assert.False(t, parties[0].Busted)
	assert.Equal(t, 40.0, parties[0].Latitude)
	assert.Equal(t, -75.0, parties[0].Longitude)
}

func TestProximitySearchService_Search(t *testing.T) {
	ctx := context.Background()
	center := model.LatLng{Lat: 40.0, Lng: -75.0}

	t.Run("半径外のパーティーは返さない", func(t *testing.T) {
		repo := newSpyRepo()
		near := offset(center, 300, 0)
		edge := offset(center, 0, -900)
		far := offset(center, 1500, 0)
		seedParty(t, repo, center.Lat, center.Lng, tonight)
		seedParty(t, repo, near.Lat, near.Lng, tonight)
		seedParty(t, repo, edge.Lat, edge.Lng, tonight)
		seedParty(t, repo, far.Lat, far.Lng, tonight)

		parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 10, 1000, epoch)
		require.NoError(t, err)
		require.Len(t, parties, 3)
		for _, p := range parties {
			assert.LessOrEqual(t, helper.DistanceToParty(center, &p), 1000.0)
		}
	})

	t.Run("近い順に最大件数まで返す", func(t *testing.T) {
		repo := newSpyRepo()
		for i := 1; i <= 8; i++ {
			p := offset(center, float64(i*100), float64(i*10))
			seedParty(t, repo, p.Lat, p.Lng, tonight)
		}

		parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 5, 5000, epoch)
		require.NoError(t, err)
		require.Len(t, parties, 5)
		for i := 1; i < len(parties); i++ {
			assert.LessOrEqual(t,
				helper.DistanceToParty(center, &parties[i-1]),
				helper.DistanceToParty(center, &parties[i]))
		}
		want := offset(center, 100, 10)
		assert.Equal(t, model.PartyID(want.Lat, want.Lng), parties[0].ID)
	})

	t.Run("作成日時がフィルタ以前のパーティーは返さない", func(t *testing.T) {
		repo := newSpyRepo()
		seedParty(t, repo, center.Lat, center.Lng, tonight.Add(-20*time.Hour))
		fresh := offset(center, 50, 50)
		seedParty(t, repo, fresh.Lat, fresh.Lng, tonight)

		ageFilter := tonight.Add(-16 * time.Hour)
		parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 10, 1000, ageFilter)
		require.NoError(t, err)
		require.Len(t, parties, 1)
		assert.Equal(t, model.PartyID(fresh.Lat, fresh.Lng), parties[0].ID)
	})

	t.Run("最大件数0はストアを呼ばずに空を返す", func(t *testing.T) {
		repo := newSpyRepo()
		seedParty(t, repo, center.Lat, center.Lng, tonight)

		parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 0, 1000, epoch)
		require.NoError(t, err)
		assert.Empty(t, parties)
		_, _, finds := repo.counts()
		assert.Zero(t, finds)
	})

	t.Run("空のストアでも終了する", func(t *testing.T) {
		repo := newSpyRepo()
		parties, err := newSearch(repo, ProximitySearchOptions{MaxCellsPerRound: 1}).Search(ctx, center, 10, 16093.44, epoch)
		require.NoError(t, err)
		assert.Empty(t, parties)
	})

	t.Run("日付変更線をまたいで検索する", func(t *testing.T) {
		repo := newSpyRepo()
		seedParty(t, repo, 0.0, -179.999, tonight)

		parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, model.LatLng{Lat: 0.0, Lng: 179.999}, 10, 1000, epoch)
		require.NoError(t, err)
		require.Len(t, parties, 1)
		assert.Equal(t, -179.999, parties[0].Longitude)
	})

	t.Run("不正な入力", func(t *testing.T) {
		repo := newSpyRepo()
		svc := newSearch(repo, DefaultProximitySearchOptions())

		_, err := svc.Search(ctx, center, 10, 0, epoch)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = svc.Search(ctx, center, 10, -5, epoch)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = svc.Search(ctx, center, -1, 1000, epoch)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = svc.Search(ctx, model.LatLng{Lat: 95, Lng: 0}, 10, 1000, epoch)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		_, _, finds := repo.counts()
		assert.Zero(t, finds)
	})

	t.Run("ストアの失敗をそのまま返す", func(t *testing.T) {
		repo := newSpyRepo()
		repo.findErr = fmt.Errorf("タイムアウト: %w", model.ErrStoreUnavailable)

		_, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 10, 1000, epoch)
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})

	t.Run("返り値を変更してもストアの内容は変わらない", func(t *testing.T) {
		repo := newSpyRepo()
		seeded := seedParty(t, repo, center.Lat, center.Lng, tonight)

		parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 10, 1000, epoch)
		require.NoError(t, err)
		require.Len(t, parties, 1)
		parties[0].Geocells[0] = "x"

		stored, err := repo.GetByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, seeded.Geocells, stored.Geocells)
	})
}

// 高緯度で大きな半径を指定しても、列の境界をまたいだ隣のセルにあるパーティーを返す
func TestProximitySearchService_HighLatitudeNeighborCell(t *testing.T) {
	ctx := context.Background()

	for _, lat := range []float64{60, 70, 80, 85} {
		t.Run(fmt.Sprintf("緯度%v", lat), func(t *testing.T) {
			center := model.LatLng{Lat: lat, Lng: 0.01}
			neighbor := nearestOnMeridian(center, 22.5001)

			repo := newSpyRepo()
			seeded := seedParty(t, repo, neighbor.Lat, neighbor.Lng, tonight)
			radius := helper.DistanceToParty(center, &seeded) * 1.001

			parties, err := newSearch(repo, DefaultProximitySearchOptions()).Search(ctx, center, 10, radius, epoch)
			require.NoError(t, err)
			require.Len(t, parties, 1)
			assert.Equal(t, seeded.ID, parties[0].ID)
		})
	}
}

// セル数の上限で打ち切られても、全件走査と同じ結果になる
func TestProximitySearchService_WidensWhenCapped(t *testing.T) {
	ctx := context.Background()
	center := model.LatLng{Lat: 40.0, Lng: -75.0}
	repo := newSpyRepo()

	var all []model.Party
	for i := 0; i < 24; i++ {
		north := float64((i%5)-2) * 1700
		east := float64((i/5)-2) * 2100
		p := offset(center, north+float64(i*37), east-float64(i*53))
		all = append(all, seedParty(t, repo, p.Lat, p.Lng, tonight))
	}

	const radius = 6000.0
	const maxResults = 7

	var want []string
	sort.Slice(all, func(i, j int) bool {
		return helper.DistanceToParty(center, &all[i]) < helper.DistanceToParty(center, &all[j])
	})
	for _, p := range all {
		if helper.DistanceToParty(center, &p) <= radius && len(want) < maxResults {
			want = append(want, p.ID)
		}
	}
	require.NotEmpty(t, want)

	for _, limit := range []int{1, 2, 4, 30} {
		t.Run(fmt.Sprintf("1ラウンド%dセル", limit), func(t *testing.T) {
			svc := newSearch(repo, ProximitySearchOptions{MaxCellsPerRound: limit, ScanBatchSize: 1, ScanConcurrency: 2})
			parties, err := svc.Search(ctx, center, maxResults, radius, epoch)
			require.NoError(t, err)

			got := make([]string, len(parties))
			for i, p := range parties {
				got[i] = p.ID
			}
			assert.Equal(t, want, got)
		})
	}
}
