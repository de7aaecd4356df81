package repository

import "context"

// CoordinateLocker 座標キーごとの排他ロック
// 同じ座標へのupsertの読み込みから保存までを直列化するために使う
type CoordinateLocker interface {
	// Lock ロックを取得し、解放関数を返す。ctxの期限切れで失敗する
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
