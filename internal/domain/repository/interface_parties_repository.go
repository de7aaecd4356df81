package repository

import (
	"context"
	"time"

	"PartyTonight-App/internal/domain/model"
)

// MaxScanCells FindByGeocells に一度に渡せるセル数の上限
// Firestore の array-contains-any の上限に合わせている
const MaxScanCells = 30

// PartiesRepository パーティーのレコードストア
// キー検索と属性フィルタ付きスキャンのみを提供し、評価ルールは持たない
type PartiesRepository interface {
	// GetByID IDでパーティーを取得する。存在しない場合は model.ErrNotFound を返す
	GetByID(ctx context.Context, id string) (*model.Party, error)
	// Save パーティーを作成または更新する。緯度経度・ジオセル・作成日時は作成時のみ書き込む
	Save(ctx context.Context, party *model.Party) error
	// FindByGeocells いずれかのセルを持ち、createdAfter より後に作成されたパーティーを返す
	FindByGeocells(ctx context.Context, cells []string, createdAfter time.Time) ([]model.Party, error)
}
