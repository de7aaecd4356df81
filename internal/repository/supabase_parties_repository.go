package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
	"PartyTonight-App/internal/infrastructure/database"
)

// supabasePartyRow PostgRESTとやり取りするpartiesテーブルの行
type supabasePartyRow struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Geocells  []string  `json:"geocells"`
	Apartment string    `json:"apartment"`
	Rating    int       `json:"rating"`
	Raters    []string  `json:"raters"`
	Busted    bool      `json:"busted"`
	CreatedAt time.Time `json:"created_at"`
}

func (row *supabasePartyRow) toParty() model.Party {
	raters := row.Raters
	if raters == nil {
		raters = []string{}
	}
	return model.Party{
		ID:         row.ID,
		Latitude:   row.Latitude,
		Longitude:  row.Longitude,
		Geocells:   row.Geocells,
		Apartment:  row.Apartment,
		Rating:     row.Rating,
		RatersSeen: raters,
		Busted:     row.Busted,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

// SupabasePartiesRepository Supabase(PostgREST)を使ったパーティーストア
// テーブル定義はPostgresPartiesRepositoryと同じ
type SupabasePartiesRepository struct {
	client *database.SupabaseClient
}

// NewSupabasePartiesRepository 新しいSupabasePartiesRepositoryインスタンスを作成
func NewSupabasePartiesRepository(client *database.SupabaseClient) *SupabasePartiesRepository {
	return &SupabasePartiesRepository{
		client: client,
	}
}

var _ repository.PartiesRepository = (*SupabasePartiesRepository)(nil)

// GetByID IDでパーティーを取得する
func (r *SupabasePartiesRepository) GetByID(ctx context.Context, id string) (*model.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.client.GetClient().From("parties").Select("*", "", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("パーティーデータの取得失敗: %w: %v", model.ErrStoreUnavailable, err)
	}

	var rows []supabasePartyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("パーティーデータのJSONアンマーシャル失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("パーティー %s: %w", id, model.ErrNotFound)
	}

	p := rows[0].toParty()
	return &p, nil
}

// Save idで衝突した場合はupsertする
// 既存行の位置・ジオセル・作成日時は読み込んだ値をそのまま書き戻すため変わらない
func (r *SupabasePartiesRepository) Save(ctx context.Context, party *model.Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raters := party.RatersSeen
	if raters == nil {
		raters = []string{}
	}
	row := supabasePartyRow{
		ID:        party.ID,
		Latitude:  party.Latitude,
		Longitude: party.Longitude,
		Geocells:  party.Geocells,
		Apartment: party.Apartment,
		Rating:    party.Rating,
		Raters:    raters,
		Busted:    party.Busted,
		CreatedAt: party.CreatedAt.UTC(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("パーティーデータのJSONマーシャル失敗: %w", err)
	}

	_, _, err = r.client.GetClient().From("parties").Insert(string(data), true, "id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("パーティーデータの保存失敗: %w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// FindByGeocells ov（配列の重なり）フィルタでパーティーを検索する
func (r *SupabasePartiesRepository) FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error) {
	if len(cells) > repository.MaxScanCells {
		return nil, fmt.Errorf("%w: 一度にスキャンできるセルは%d個までです (%d)", model.ErrInvalidInput, repository.MaxScanCells, len(cells))
	}
	if len(cells) == 0 {
		return []model.Party{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// geocells && '{...}'
	overlap := "{" + strings.Join(cells, ",") + "}"
	data, _, err := r.client.GetClient().From("parties").
		Select("*", "", false).
		Filter("geocells", "ov", overlap).
		Gt("created_at", createdAfter.UTC().Format(time.RFC3339Nano)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("ジオセルによるパーティー検索失敗: %w: %v", model.ErrStoreUnavailable, err)
	}

	var rows []supabasePartyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("パーティーデータのJSONアンマーシャル失敗: %w", err)
	}
	parties := make([]model.Party, len(rows))
	for i := range rows {
		parties[i] = rows[i].toParty()
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i].ID < parties[j].ID })
	return parties, nil
}
