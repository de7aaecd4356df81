package geocell

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// metersPerDegreeLat 緯度1度あたりのおおよその距離（メートル）
const metersPerDegreeLat = 111320.0

// CellHeightMeters 解像度rのセルの南北方向の高さ（メートル）
func CellHeightMeters(res int) float64 {
	return 180 / float64(cellsPerSide(clampResolution(res))) * metersPerDegreeLat
}

// ResolutionForRadius 半径を覆える最も細かい解像度を返す
// セルの高さが半径以上となる解像度なので、中心セルの周囲3x3で一辺2rの範囲を覆える
// （高緯度では経度方向のセル数が増える）
func ResolutionForRadius(radiusMeters float64) int {
	for res := MaxResolution; res > MinResolution; res-- {
		if CellHeightMeters(res) >= radiusMeters {
			return res
		}
	}
	return MinResolution
}

// Cover 範囲と交差する解像度resのセルを列挙する
// 緯度方向は極でクランプし、経度方向は日付変更線をまたいで折り返す。
// Min.Lon > Max.Lon の範囲は日付変更線をまたぐものとして扱う。
// セル数がlimitを超える場合は列挙せずにfalseを返す
func Cover(b orb.Bound, res int, limit int) ([]string, bool) {
	res = clampResolution(res)
	n := cellsPerSide(res)

	minRow := rowIndex(b.Min.Lat(), n)
	maxRow := rowIndex(b.Max.Lat(), n)
	if maxRow < minRow {
		minRow, maxRow = maxRow, minRow
	}

	minLng, maxLng := b.Min.Lon(), b.Max.Lon()
	if minLng > maxLng {
		maxLng += 360
	}
	startCol := int64(math.Floor((minLng + 180) / 360 * float64(n)))
	endCol := int64(math.Floor((maxLng + 180) / 360 * float64(n)))
	cols := uint64(endCol - startCol + 1)
	if cols > n {
		startCol, cols = 0, n
	}

	rows := maxRow - minRow + 1
	if limit > 0 && rows*cols > uint64(limit) {
		return nil, false
	}

	cells := make([]string, 0, rows*cols)
	for row := minRow; row <= maxRow; row++ {
		for i := uint64(0); i < cols; i++ {
			col := uint64((startCol+int64(i))%int64(n)+int64(n)) % n
			cells = append(cells, Cell{Row: row, Col: col, Resolution: res}.Token())
		}
	}
	return cells, true
}

// MinDistanceMeters 点からセル範囲までの最短距離（メートル）
// 点が範囲内にあれば0を返す。
// 経度が範囲外の場合、最近点は東西どちらかの子午線の辺上にある
func MinDistanceMeters(p orb.Point, b orb.Bound) float64 {
	if lngWithin(p.Lon(), b.Min.Lon(), b.Max.Lon()) {
		lat := clampLat(p.Lat(), b.Min.Lat(), b.Max.Lat())
		return geo.DistanceHaversine(p, orb.Point{p.Lon(), lat})
	}
	return math.Min(
		meridianDistance(p, b.Min.Lon(), b.Min.Lat(), b.Max.Lat()),
		meridianDistance(p, b.Max.Lon(), b.Min.Lat(), b.Max.Lat()),
	)
}

// meridianDistance 経度lngの子午線のうち緯度[minLat, maxLat]の区間までの最短距離
// 子午線上の最近点は緯度 atan(tanφ / cosΔλ) にあり、点と同じ緯度より極側に寄る
func meridianDistance(p orb.Point, lng, minLat, maxLat float64) float64 {
	phi := p.Lat() * math.Pi / 180
	dLng := lngDelta(p.Lon(), lng) * math.Pi / 180
	nearest := math.Atan2(math.Sin(phi), math.Cos(phi)*math.Cos(dLng)) * 180 / math.Pi

	d := geo.DistanceHaversine(p, orb.Point{lng, clampLat(nearest, minLat, maxLat)})
	// Δλが90度を超えると区間内で単峰にならないので端点も見る
	d = math.Min(d, geo.DistanceHaversine(p, orb.Point{lng, minLat}))
	return math.Min(d, geo.DistanceHaversine(p, orb.Point{lng, maxLat}))
}

func clampLat(lat, minLat, maxLat float64) float64 {
	return math.Max(minLat, math.Min(maxLat, lat))
}

// RankedCell 中心からの距離付きのセル
type RankedCell struct {
	Token    string
	Distance float64
}

// RankByDistance セルを中心から近い順に並べ替える（同距離はトークン順）
func RankByDistance(center orb.Point, tokens []string) []RankedCell {
	ranked := make([]RankedCell, 0, len(tokens))
	for _, t := range tokens {
		b, err := Bound(t)
		if err != nil {
			continue
		}
		ranked = append(ranked, RankedCell{Token: t, Distance: MinDistanceMeters(center, b)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].Token < ranked[j].Token
	})
	return ranked
}

func lngWithin(lng, minLng, maxLng float64) bool {
	for _, v := range []float64{lng, lng - 360, lng + 360} {
		if v >= minLng && v <= maxLng {
			return true
		}
	}
	return false
}

// lngDelta 折り返しを考慮した経度差（度）
func lngDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
