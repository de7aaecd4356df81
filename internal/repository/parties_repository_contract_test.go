package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PartyTonight-App/internal/domain/geocell"
	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
)

var baseTime = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func newTestParty(lat, lng float64, createdAt time.Time) *model.Party {
	return &model.Party{
		ID:         model.PartyID(lat, lng),
		Latitude:   lat,
		Longitude:  lng,
		Geocells:   geocell.Encode(lat, lng),
		Apartment:  "",
		Rating:     0,
		RatersSeen: []string{},
		CreatedAt:  createdAt,
	}
}

// runPartiesRepositoryContract すべてのストア実装が満たすべき振る舞い
func runPartiesRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.PartiesRepository) {
	ctx := context.Background()

	t.Run("存在しないIDはErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("保存したパーティーを取得できる", func(t *testing.T) {
		repo := newRepo(t)
		p := newTestParty(40.0, -75.0, baseTime)
		p.Apartment = "3B"
		p.Rating = 5
		p.RatersSeen = []string{"A"}
		require.NoError(t, repo.Save(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, 40.0, got.Latitude)
		assert.Equal(t, -75.0, got.Longitude)
		assert.Equal(t, p.Geocells, got.Geocells)
		assert.Equal(t, "3B", got.Apartment)
		assert.Equal(t, 5, got.Rating)
		assert.Equal(t, []string{"A"}, got.RatersSeen)
		assert.False(t, got.Busted)
		assert.True(t, baseTime.Equal(got.CreatedAt))
	})

	t.Run("更新時は可変フィールドのみ書き換える", func(t *testing.T) {
		repo := newRepo(t)
		p := newTestParty(40.0, -75.0, baseTime)
		require.NoError(t, repo.Save(ctx, p))

		updated := p.Clone()
		updated.Apartment = "12C"
		updated.Rating = 7
		updated.RatersSeen = []string{"A", "B"}
		updated.Busted = true
		updated.CreatedAt = baseTime.Add(5 * time.Hour)
		updated.Latitude = 1
		require.NoError(t, repo.Save(ctx, &updated))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "12C", got.Apartment)
		assert.Equal(t, 7, got.Rating)
		assert.Equal(t, []string{"A", "B"}, got.RatersSeen)
		assert.True(t, got.Busted)
		assert.Equal(t, 40.0, got.Latitude)
		assert.True(t, baseTime.Equal(got.CreatedAt))
	})

	t.Run("いずれかのセルを持つパーティーを返す", func(t *testing.T) {
		repo := newRepo(t)
		a := newTestParty(40.0, -75.0, baseTime)
		b := newTestParty(40.0005, -75.0005, baseTime)
		c := newTestParty(-33.8688, 151.2093, baseTime)
		for _, p := range []*model.Party{a, b, c} {
			require.NoError(t, repo.Save(ctx, p))
		}

		// 両方のパーティーが複数のセルに一致しても重複しない
		cells := []string{a.Geocells[4], a.Geocells[5], b.Geocells[12]}
		got, err := repo.FindByGeocells(ctx, cells, baseTime.Add(-time.Hour))
		require.NoError(t, err)

		ids := make([]string, len(got))
		for i, p := range got {
			ids[i] = p.ID
		}
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	})

	t.Run("作成日時がcreatedAfterより後のものだけ返す", func(t *testing.T) {
		repo := newRepo(t)
		old := newTestParty(40.0, -75.0, baseTime.Add(-20*time.Hour))
		exact := newTestParty(40.0001, -75.0001, baseTime)
		fresh := newTestParty(40.0002, -75.0002, baseTime.Add(time.Hour))
		for _, p := range []*model.Party{old, exact, fresh} {
			require.NoError(t, repo.Save(ctx, p))
		}

		got, err := repo.FindByGeocells(ctx, []string{old.Geocells[3]}, baseTime)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, fresh.ID, got[0].ID)
	})

	t.Run("一致しない場合は空", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, newTestParty(40.0, -75.0, baseTime)))

		got, err := repo.FindByGeocells(ctx, []string{geocell.EncodeAt(-40.0, 105.0, 6)}, baseTime.Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = repo.FindByGeocells(ctx, nil, baseTime.Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("セル数の上限を超えると拒否する", func(t *testing.T) {
		repo := newRepo(t)
		cells := make([]string, repository.MaxScanCells+1)
		for i := range cells {
			cells[i] = fmt.Sprintf("%x", i)
		}
		_, err := repo.FindByGeocells(ctx, cells, baseTime)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}
