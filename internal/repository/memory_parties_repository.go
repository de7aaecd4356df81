package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
)

// MemoryPartiesRepository プロセス内メモリのパーティーストア
// ジオセルからIDへの転置インデックスを持ち、返す値はすべてコピー
type MemoryPartiesRepository struct {
	mu      sync.RWMutex
	parties map[string]*model.Party
	cells   map[string]map[string]struct{}
}

// NewMemoryPartiesRepository 新しいMemoryPartiesRepositoryインスタンスを作成
func NewMemoryPartiesRepository() *MemoryPartiesRepository {
	return &MemoryPartiesRepository{
		parties: make(map[string]*model.Party),
		cells:   make(map[string]map[string]struct{}),
	}
}

var _ repository.PartiesRepository = (*MemoryPartiesRepository)(nil)

// GetByID IDでパーティーのコピーを返す
func (r *MemoryPartiesRepository) GetByID(ctx context.Context, id string) (*model.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parties[id]
	if !ok {
		return nil, fmt.Errorf("パーティー %s: %w", id, model.ErrNotFound)
	}
	c := p.Clone()
	return &c, nil
}

// Save 既存のパーティーは可変フィールドのみ更新する
func (r *MemoryPartiesRepository) Save(ctx context.Context, party *model.Party) error {
	if party == nil || party.ID == "" {
		return fmt.Errorf("%w: 保存するパーティーのIDがありません", model.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.parties[party.ID]; ok {
		existing.Apartment = party.Apartment
		existing.Rating = party.Rating
		existing.Busted = party.Busted
		existing.RatersSeen = append([]string(nil), party.RatersSeen...)
		return nil
	}

	c := party.Clone()
	r.parties[c.ID] = &c
	for _, cell := range c.Geocells {
		ids, ok := r.cells[cell]
		if !ok {
			ids = make(map[string]struct{})
			r.cells[cell] = ids
		}
		ids[c.ID] = struct{}{}
	}
	return nil
}

// FindByGeocells 逆引きインデックスからセルに属するパーティーを集める
func (r *MemoryPartiesRepository) FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error) {
	if len(cells) > repository.MaxScanCells {
		return nil, fmt.Errorf("%w: 一度にスキャンできるセルは%d個までです (%d)", model.ErrInvalidInput, repository.MaxScanCells, len(cells))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []model.Party
	for _, cell := range cells {
		for id := range r.cells[cell] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			p := r.parties[id]
			if !p.CreatedAt.After(createdAfter) {
				continue
			}
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Len 保存されているパーティー数
func (r *MemoryPartiesRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parties)
}
