package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"PartyTonight-App/internal/domain/model"
	"PartyTonight-App/internal/infrastructure/logger"
)

// PostgresAdvisoryLocker PostgreSQLのアドバイザリロックで座標キーを排他する
// ロック中は専用のコネクションを保持する
type PostgresAdvisoryLocker struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgresAdvisoryLocker 新しいPostgresAdvisoryLockerを作成
func NewPostgresAdvisoryLocker(db *sql.DB, log *logger.Logger) *PostgresAdvisoryLocker {
	return &PostgresAdvisoryLocker{db: db, log: log}
}

// Lock pg_advisory_lock はctxのキャンセルでクエリごと中断される
func (l *PostgresAdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ロック待機が中断されました (%s): %w", key, ctx.Err())
		}
		return nil, fmt.Errorf("%w: コネクションの取得に失敗: %v", model.ErrStoreUnavailable, err)
	}

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key); err != nil {
		// 中断されたロックがサーバー側で取得済みの可能性がある
		discardConn(conn)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ロック待機が中断されました (%s): %w", key, ctx.Err())
		}
		return nil, fmt.Errorf("%w: アドバイザリロックの取得に失敗: %v", model.ErrStoreUnavailable, err)
	}

	return func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			l.log.Warn("アドバイザリロックの解放に失敗", "key", key, "error", err)
			discardConn(conn)
			return
		}
		conn.Close()
	}, nil
}

// discardConn セッションをプールに戻さずに切断する
// アドバイザリロックはセッション単位で再入可能なので、ロックを残したセッションは再利用させない
func discardConn(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}
