package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// SQLiteClient 組み込みSQLite（gorm）クライアント
type SQLiteClient struct {
	DB *gorm.DB
}

// NewSQLiteClient SQLiteデータベースを開く
// pathには "parties.db" のようなファイルパスか "file:xxx?mode=memory&cache=shared" を指定する
func NewSQLiteClient(path string) (*SQLiteClient, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLITE_PATH環境変数が設定されていません")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("SQLiteの初期化に失敗: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("SQLiteコネクションの取得に失敗: %w", err)
	}
	// SQLiteは書き込みが1本なのでコネクションも1本に絞る
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteClient{DB: db}, nil
}

// Close データベース接続を閉じる
func (sc *SQLiteClient) Close() error {
	sqlDB, err := sc.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
