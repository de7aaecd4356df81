package model

import "time"

// 検索に関するデフォルト値
const (
	// DefaultSearchRadiusMeters パーティーを検索する最大距離（10マイル）
	DefaultSearchRadiusMeters = 16093.44
	// DefaultMaxResults 一覧に返す最大件数
	DefaultMaxResults = 40
	// DefaultMaxPartyAge この時間より前に作成されたパーティーは検索に出さない
	DefaultMaxPartyAge = 16 * time.Hour
)

// RatingClass 評価値の分類（保存はせず、読み出し時に毎回計算する）
type RatingClass string

const (
	RatingLow     RatingClass = "low"
	RatingAverage RatingClass = "average"
	RatingHigh    RatingClass = "high"
)

// averageRatingMax "average" に分類される評価値の上限
const averageRatingMax = 15

// RatingLabelMap 分類から旧クライアント向け表示名へのマッピング
var RatingLabelMap = map[RatingClass]string{
	RatingLow:     "Lame",
	RatingAverage: "Average",
	RatingHigh:    "Awesome",
}

// ClassifyRating 評価値を分類する
// rating <= 0 は low、0 < rating <= 15 は average、それ以上は high
func ClassifyRating(rating int) RatingClass {
	switch {
	case rating <= 0:
		return RatingLow
	case rating <= averageRatingMax:
		return RatingAverage
	default:
		return RatingHigh
	}
}

// Label 分類の表示名を取得する
func (c RatingClass) Label() string {
	if label, ok := RatingLabelMap[c]; ok {
		return label
	}
	return string(c)
}
