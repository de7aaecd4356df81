package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
	"PartyTonight-App/internal/infrastructure/database"
)

const partiesSchema = `
CREATE TABLE IF NOT EXISTS parties (
	id          TEXT PRIMARY KEY,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	geocells    TEXT[] NOT NULL,
	apartment   TEXT NOT NULL DEFAULT '',
	rating      INTEGER NOT NULL DEFAULT 0,
	raters      TEXT[] NOT NULL DEFAULT '{}',
	busted      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS parties_geocells_idx ON parties USING GIN (geocells);
CREATE INDEX IF NOT EXISTS parties_created_at_idx ON parties (created_at);
`

// partyRow partiesテーブルの1行
type partyRow struct {
	ID        string         `db:"id"`
	Latitude  float64        `db:"latitude"`
	Longitude float64        `db:"longitude"`
	Geocells  pq.StringArray `db:"geocells"`
	Apartment string         `db:"apartment"`
	Rating    int            `db:"rating"`
	Raters    pq.StringArray `db:"raters"`
	Busted    bool           `db:"busted"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row *partyRow) toParty() model.Party {
	return model.Party{
		ID:         row.ID,
		Latitude:   row.Latitude,
		Longitude:  row.Longitude,
		Geocells:   []string(row.Geocells),
		Apartment:  row.Apartment,
		Rating:     row.Rating,
		RatersSeen: append([]string{}, row.Raters...),
		Busted:     row.Busted,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func partyToRow(p *model.Party) partyRow {
	raters := p.RatersSeen
	if raters == nil {
		raters = []string{}
	}
	return partyRow{
		ID:        p.ID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Geocells:  pq.StringArray(p.Geocells),
		Apartment: p.Apartment,
		Rating:    p.Rating,
		Raters:    pq.StringArray(raters),
		Busted:    p.Busted,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

// PostgresPartiesRepository PostgreSQLを使ったパーティーストア
// ジオセルはTEXT[]に保存し、GINインデックスと && 演算子で検索する
type PostgresPartiesRepository struct {
	client *database.PostgreSQLClient
}

// NewPostgresPartiesRepository 新しいPostgresPartiesRepositoryインスタンスを作成
func NewPostgresPartiesRepository(client *database.PostgreSQLClient) *PostgresPartiesRepository {
	return &PostgresPartiesRepository{
		client: client,
	}
}

var _ repository.PartiesRepository = (*PostgresPartiesRepository)(nil)

// EnsureSchema テーブルとインデックスがなければ作成する
func (r *PostgresPartiesRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.client.DB.ExecContext(ctx, partiesSchema); err != nil {
		return fmt.Errorf("partiesテーブルの作成に失敗: %w", err)
	}
	return nil
}

// GetByID IDでパーティーを取得する
func (r *PostgresPartiesRepository) GetByID(ctx context.Context, id string) (*model.Party, error) {
	query := `SELECT id, latitude, longitude, geocells, apartment, rating, raters, busted, created_at FROM parties WHERE id = $1`

	var row partyRow
	err := r.client.DB.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("パーティー %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storeError(ctx, "パーティーの取得失敗", err)
	}
	p := row.toParty()
	return &p, nil
}

// Save 位置・ジオセル・作成日時は挿入時のみ書き込む
func (r *PostgresPartiesRepository) Save(ctx context.Context, party *model.Party) error {
	query := `
		INSERT INTO parties (id, latitude, longitude, geocells, apartment, rating, raters, busted, created_at)
		VALUES (:id, :latitude, :longitude, :geocells, :apartment, :rating, :raters, :busted, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			apartment = EXCLUDED.apartment,
			rating    = EXCLUDED.rating,
			raters    = EXCLUDED.raters,
			busted    = EXCLUDED.busted`

	if _, err := r.client.DB.NamedExecContext(ctx, query, partyToRow(party)); err != nil {
		return storeError(ctx, "パーティーの保存失敗", err)
	}
	return nil
}

// FindByGeocells geocells配列の重なり（&&）でパーティーを検索する
func (r *PostgresPartiesRepository) FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error) {
	if len(cells) > repository.MaxScanCells {
		return nil, fmt.Errorf("%w: 一度にスキャンできるセルは%d個までです (%d)", model.ErrInvalidInput, repository.MaxScanCells, len(cells))
	}
	if len(cells) == 0 {
		return []model.Party{}, nil
	}
	query := `
		SELECT id, latitude, longitude, geocells, apartment, rating, raters, busted, created_at
		FROM parties
		WHERE geocells && $1 AND created_at > $2
		ORDER BY id`

	rows := []partyRow{}
	if err := r.client.DB.SelectContext(ctx, &rows, query, pq.StringArray(cells), createdAfter.UTC()); err != nil {
		return nil, storeError(ctx, "ジオセルによるパーティー検索失敗", err)
	}
	parties := make([]model.Party, len(rows))
	for i := range rows {
		parties[i] = rows[i].toParty()
	}
	return parties, nil
}

// storeError ドライバーのエラーをストア利用不可として包む。ctxの終了はそのまま返す
func storeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w: %v", op, model.ErrStoreUnavailable, err)
}
