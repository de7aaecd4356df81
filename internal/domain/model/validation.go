package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidateCoordinate 緯度経度が有限かつ有効範囲内かチェック
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: 緯度は-90から90の範囲で指定してください (%v)", ErrInvalidInput, lat)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: 経度は-180から180の範囲で指定してください (%v)", ErrInvalidInput, lng)
	}
	return nil
}

// Validate 評価リクエストの入力チェック
func (r *PartyRating) Validate() error {
	if err := ValidateCoordinate(r.Latitude, r.Longitude); err != nil {
		return err
	}
	if strings.TrimSpace(r.RaterID) == "" {
		return fmt.Errorf("%w: 評価者IDは必須です", ErrInvalidInput)
	}
	return nil
}
