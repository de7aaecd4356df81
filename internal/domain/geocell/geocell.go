// Package geocell は緯度経度を階層的なセルトークンに変換する
//
// 各解像度でセルを4x4に分割し、行（緯度）と列（経度）の2ビットずつを
// インターリーブして16進1文字で表す。解像度rのトークンは長さrで、
// 細かい解像度のトークンは粗い解像度のトークンを接頭辞に持つ。
package geocell

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// MaxResolution 生成するトークンの最大解像度（最大長）
	MaxResolution = 13
	// MinResolution 最も粗い解像度（世界全体が16セル）
	MinResolution = 1

	alphabet = "0123456789abcdef"
)

// ErrInvalidToken トークンの長さまたは文字が不正
var ErrInvalidToken = errors.New("invalid geocell token")

// Cell 解像度rにおける行・列インデックスで表したセル
type Cell struct {
	Row        uint64
	Col        uint64
	Resolution int
}

// cellsPerSide 解像度rにおける一辺のセル数（4^r）
func cellsPerSide(res int) uint64 {
	return uint64(1) << (2 * uint(res))
}

// Encode 解像度1から13までのトークンを粗い順に返す
func Encode(lat, lng float64) []string {
	full := EncodeAt(lat, lng, MaxResolution)
	cells := make([]string, MaxResolution)
	for r := MinResolution; r <= MaxResolution; r++ {
		cells[r-1] = full[:r]
	}
	return cells
}

// EncodeAt 指定解像度のトークンを返す
// 最大解像度で一度だけ計算して切り詰めるため、接頭辞関係は常に厳密に成り立つ
func EncodeAt(lat, lng float64, res int) string {
	res = clampResolution(res)
	n := cellsPerSide(MaxResolution)
	full := Cell{
		Row:        rowIndex(lat, n),
		Col:        colIndex(lng, n),
		Resolution: MaxResolution,
	}
	return full.Token()[:res]
}

// Token セルを文字列トークンに変換する
func (c Cell) Token() string {
	buf := make([]byte, c.Resolution)
	for i := 0; i < c.Resolution; i++ {
		shift := 2 * uint(c.Resolution-1-i)
		y := (c.Row >> shift) & 3
		x := (c.Col >> shift) & 3
		buf[i] = alphabet[(y&2)<<2|(x&2)<<1|(y&1)<<1|(x&1)]
	}
	return string(buf)
}

// Parent 一段粗い解像度のセルを返す
func (c Cell) Parent() Cell {
	if c.Resolution <= MinResolution {
		return c
	}
	return Cell{Row: c.Row >> 2, Col: c.Col >> 2, Resolution: c.Resolution - 1}
}

// Bound セルの範囲をorb.Boundとして返す
func (c Cell) Bound() orb.Bound {
	n := float64(cellsPerSide(c.Resolution))
	latSpan := 180 / n
	lngSpan := 360 / n
	minLat := -90 + float64(c.Row)*latSpan
	minLng := -180 + float64(c.Col)*lngSpan
	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{minLng + lngSpan, minLat + latSpan},
	}
}

// Decode トークンをセルに変換する
func Decode(token string) (Cell, error) {
	if len(token) < MinResolution || len(token) > MaxResolution {
		return Cell{}, fmt.Errorf("%w: 長さ %d", ErrInvalidToken, len(token))
	}
	var c Cell
	for i := 0; i < len(token); i++ {
		idx := indexOf(token[i])
		if idx < 0 {
			return Cell{}, fmt.Errorf("%w: 文字 %q", ErrInvalidToken, token[i])
		}
		y := uint64((idx>>3&1)<<1 | (idx >> 1 & 1))
		x := uint64((idx>>2&1)<<1 | (idx & 1))
		c.Row = c.Row<<2 | y
		c.Col = c.Col<<2 | x
	}
	c.Resolution = len(token)
	return c, nil
}

// Bound トークンが表す範囲を返す
func Bound(token string) (orb.Bound, error) {
	c, err := Decode(token)
	if err != nil {
		return orb.Bound{}, err
	}
	return c.Bound(), nil
}

func indexOf(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	}
	return -1
}

func rowIndex(lat float64, n uint64) uint64 {
	lat = math.Max(-90, math.Min(90, lat))
	idx := uint64(math.Floor((lat + 90) / 180 * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func colIndex(lng float64, n uint64) uint64 {
	lng = math.Max(-180, math.Min(180, lng))
	idx := uint64(math.Floor((lng + 180) / 360 * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func clampResolution(res int) int {
	if res < MinResolution {
		return MinResolution
	}
	if res > MaxResolution {
		return MaxResolution
	}
	return res
}
