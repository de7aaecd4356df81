package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// partyNamespace はパーティーIDを座標から導出するためのUUIDv5名前空間
var partyNamespace = uuid.MustParse("6f1c2a9e-4b7d-5e3f-9a8c-2d1e0b7f6a54")

// LatLng 緯度経度を表す基本的な型
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Party 位置を持つイベント（パーティー）を表すモデル
type Party struct {
	ID         string    `json:"id" db:"id" firestore:"id"`                            // 座標から導出した一意なID
	Latitude   float64   `json:"latitude" db:"latitude" firestore:"latitude"`          // 緯度（作成後不変）
	Longitude  float64   `json:"longitude" db:"longitude" firestore:"longitude"`       // 経度（作成後不変）
	Geocells   []string  `json:"geocells" db:"geocells" firestore:"geocells"`          // 粗い順のジオセル
	Apartment  string    `json:"apartment" db:"apartment" firestore:"apartment"`       // 部屋番号（最初の非空値を保持）
	Rating     int       `json:"rating" db:"rating" firestore:"rating"`                // 評価の累積値
	RatersSeen []string  `json:"raters_seen" db:"raters" firestore:"raters_seen"`      // 評価済みの評価者ID
	Busted     bool      `json:"busted" db:"busted" firestore:"busted"`                // 摘発済みかどうか（最終書き込み優先）
	CreatedAt  time.Time `json:"created_at" db:"created_at" firestore:"created_at"`    // 作成日時（UTC）
}

// PartyRating パーティーへの評価（upsert）リクエスト
type PartyRating struct {
	Latitude    float64
	Longitude   float64
	Apartment   string
	Busted      bool
	RatingDelta int
	RaterID     string
}

// UpsertResult upsertの結果
// Applied=false は「評価済み」を表し、エラーではない
type UpsertResult struct {
	Applied bool
	Created bool
	Party   Party
}

// Location パーティーの位置をLatLng型で返す
func (p *Party) Location() LatLng {
	return LatLng{Lat: p.Latitude, Lng: p.Longitude}
}

// HasRater 指定された評価者が既に評価済みかチェック
func (p *Party) HasRater(raterID string) bool {
	for _, r := range p.RatersSeen {
		if r == raterID {
			return true
		}
	}
	return false
}

// RatingClass 現在の評価値の分類を返す
func (p *Party) RatingClass() RatingClass {
	return ClassifyRating(p.Rating)
}

// Clone スライスを含めてディープコピーしたスナップショットを返す
func (p *Party) Clone() Party {
	c := *p
	if p.Geocells != nil {
		c.Geocells = append([]string(nil), p.Geocells...)
	}
	if p.RatersSeen != nil {
		c.RatersSeen = append([]string(nil), p.RatersSeen...)
	}
	return c
}

// CoordinateKey 座標ペアの正規化されたキーを返す（-0は0として扱う）
func CoordinateKey(lat, lng float64) string {
	return formatCoordinate(lat) + "," + formatCoordinate(lng)
}

// PartyID 座標ペアからパーティーIDを導出する
// 部屋番号はIDに含めない
func PartyID(lat, lng float64) string {
	return uuid.NewSHA1(partyNamespace, []byte(CoordinateKey(lat, lng))).String()
}

func formatCoordinate(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
