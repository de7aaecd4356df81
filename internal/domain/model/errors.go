package model

import "errors"

var (
	// ErrInvalidInput 座標や評価者IDなどの入力が不正
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable レコードストアの読み書きに失敗
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound レコードが存在しない（検索ではエラーにならない）
	ErrNotFound = errors.New("not found")
)
