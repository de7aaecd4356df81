package helper

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"PartyTonight-App/internal/domain/model"
)

// ToPoint LatLngをorb.Pointに変換する（orbは [経度, 緯度] の順）
func ToPoint(l model.LatLng) orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// DistanceMeters は2地点間の大圏距離を計算する (m)
func DistanceMeters(p1, p2 model.LatLng) float64 {
	return geo.DistanceHaversine(ToPoint(p1), ToPoint(p2))
}

// DistanceToParty は地点からパーティーまでの距離を計算する (m)
func DistanceToParty(from model.LatLng, p *model.Party) float64 {
	return DistanceMeters(from, p.Location())
}
