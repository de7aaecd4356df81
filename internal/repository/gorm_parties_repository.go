package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/domain/repository"
)

// gormParty partiesテーブル
type gormParty struct {
	ID        string             `gorm:"primaryKey;type:text"`
	Latitude  float64            `gorm:"not null"`
	Longitude float64            `gorm:"not null"`
	Apartment string             `gorm:"not null;default:''"`
	Rating    int                `gorm:"not null;default:0"`
	Raters    []string           `gorm:"serializer:json"`
	Busted    bool               `gorm:"not null;default:false"`
	CreatedAt time.Time          `gorm:"not null;index;autoCreateTime:false"`
	Geocells  []gormPartyGeocell `gorm:"foreignKey:PartyID;constraint:OnDelete:CASCADE"`
}

func (gormParty) TableName() string { return "parties" }

// gormPartyGeocell パーティーとジオセルの対応表
type gormPartyGeocell struct {
	PartyID    string `gorm:"primaryKey;type:text"`
	Cell       string `gorm:"primaryKey;type:text;index"`
	Resolution int    `gorm:"not null"`
}

func (gormPartyGeocell) TableName() string { return "party_geocells" }

func (row *gormParty) toParty() model.Party {
	cells := make([]string, len(row.Geocells))
	for i, c := range row.Geocells {
		cells[i] = c.Cell
	}
	raters := row.Raters
	if raters == nil {
		raters = []string{}
	}
	return model.Party{
		ID:         row.ID,
		Latitude:   row.Latitude,
		Longitude:  row.Longitude,
		Geocells:   cells,
		Apartment:  row.Apartment,
		Rating:     row.Rating,
		RatersSeen: raters,
		Busted:     row.Busted,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

// GormPartiesRepository gormを使ったパーティーストア（SQLite向け）
// 配列型がないためジオセルは party_geocells に正規化して持つ
type GormPartiesRepository struct {
	db *gorm.DB
}

// NewGormPartiesRepository 新しいGormPartiesRepositoryインスタンスを作成
func NewGormPartiesRepository(db *gorm.DB) *GormPartiesRepository {
	return &GormPartiesRepository{db: db}
}

var _ repository.PartiesRepository = (*GormPartiesRepository)(nil)

// AutoMigrate テーブルを作成・更新する
func (r *GormPartiesRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&gormParty{}, &gormPartyGeocell{}); err != nil {
		return fmt.Errorf("partiesテーブルのマイグレーションに失敗: %w", err)
	}
	return nil
}

// GetByID IDでパーティーを取得する（ジオセルも読み込む）
func (r *GormPartiesRepository) GetByID(ctx context.Context, id string) (*model.Party, error) {
	var row gormParty
	err := r.db.WithContext(ctx).
		Preload("Geocells", orderByResolution).
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("パーティー %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storeError(ctx, "パーティーの取得失敗", err)
	}
	p := row.toParty()
	return &p, nil
}

// Save 挿入時のみジオセルを書き込み、衝突時は可変フィールドだけ更新する
func (r *GormPartiesRepository) Save(ctx context.Context, party *model.Party) error {
	raters := party.RatersSeen
	if raters == nil {
		raters = []string{}
	}
	row := gormParty{
		ID:        party.ID,
		Latitude:  party.Latitude,
		Longitude: party.Longitude,
		Apartment: party.Apartment,
		Rating:    party.Rating,
		Raters:    raters,
		Busted:    party.Busted,
		CreatedAt: party.CreatedAt.UTC(),
	}
	cells := make([]gormPartyGeocell, len(party.Geocells))
	for i, c := range party.Geocells {
		cells[i] = gormPartyGeocell{PartyID: party.ID, Cell: c, Resolution: len(c)}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"apartment", "rating", "raters", "busted"}),
		}).Omit("Geocells").Create(&row).Error; err != nil {
			return err
		}
		if len(cells) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cells).Error
	})
	if err != nil {
		return storeError(ctx, "パーティーの保存失敗", err)
	}
	return nil
}

// FindByGeocells 指定セルのいずれかに属し、createdAfterより後に作成されたパーティーを取得する
func (r *GormPartiesRepository) FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error) {
	if len(cells) > repository.MaxScanCells {
		return nil, fmt.Errorf("%w: 一度にスキャンできるセルは%d個までです (%d)", model.ErrInvalidInput, repository.MaxScanCells, len(cells))
	}
	if len(cells) == 0 {
		return []model.Party{}, nil
	}

	db := r.db.WithContext(ctx)
	matching := db.Model(&gormPartyGeocell{}).Select("party_id").Where("cell IN ?", cells)

	var rows []gormParty
	err := db.Preload("Geocells", orderByResolution).
		Where("id IN (?)", matching).
		Where("created_at > ?", createdAfter.UTC()).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, storeError(ctx, "ジオセルによるパーティー検索失敗", err)
	}

	parties := make([]model.Party, len(rows))
	for i := range rows {
		parties[i] = rows[i].toParty()
	}
	return parties, nil
}

func orderByResolution(db *gorm.DB) *gorm.DB {
	return db.Order("resolution")
}
