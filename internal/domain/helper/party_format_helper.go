package helper

import (
	"encoding/json"
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"PartyTonight-App/internal/domain/model"
)

const (
	plistHeader = "<?xml version='1.0' encoding='UTF-8'?>\n" +
		"<!DOCTYPE plist PUBLIC '-//Apple//DTD PLIST 1.0//EN' 'http://www.apple.com/DTDs/PropertyList-1.0.dtd'>\n" +
		"<plist version='1.0'>\n" +
		"<array>\n"
	plistFooter = "</array>\n</plist>"

	stringBuilderCapacity = 200
)

// ToPlist パーティー一覧をAppleのplist形式に変換する（iPhoneアプリ向け）
// 各パーティーは [緯度, 経度, 部屋番号, 評価, 摘発] の配列になる
func ToPlist(parties []model.Party) string {
	var b strings.Builder
	b.Grow(stringBuilderCapacity)

	b.WriteString(plistHeader)
	for i := range parties {
		writePlistParty(&b, &parties[i])
	}
	b.WriteString(plistFooter)

	return b.String()
}

func writePlistParty(b *strings.Builder, p *model.Party) {
	b.WriteString("\t<array>\n")
	b.WriteString("\t\t<real>" + FormatLegacyDouble(p.Latitude) + "</real>\n")
	b.WriteString("\t\t<real>" + FormatLegacyDouble(p.Longitude) + "</real>\n")
	b.WriteString("\t\t<string>" + escapeXML(p.Apartment) + "</string>\n")
	b.WriteString("\t\t<string>" + escapeXML(p.RatingClass().Label()) + "</string>\n")
	if p.Busted {
		b.WriteString("\t\t<true />\n")
	} else {
		b.WriteString("\t\t<false />\n")
	}
	b.WriteString("\t</array>\n")
}

// ToJSON パーティー一覧をJSON配列に変換する
// callbackが指定された場合は "callback(...);" で包む（JSONP）。
// 値はすべて文字列として出力する
func ToJSON(parties []model.Party, callback *string) string {
	var b strings.Builder
	b.Grow(stringBuilderCapacity)

	if callback != nil {
		b.WriteString(*callback + "(")
	}

	// 空の場合は区切り文字を探さずにそのまま閉じる
	if len(parties) == 0 {
		b.WriteString("[\n]")
	} else {
		b.WriteString("[\n")
		for i := range parties {
			if i > 0 {
				b.WriteString(",\n")
			}
			writeJSONParty(&b, &parties[i])
		}
		b.WriteString("\n]")
	}

	if callback != nil {
		b.WriteString(");")
	}

	return b.String()
}

func writeJSONParty(b *strings.Builder, p *model.Party) {
	b.WriteString("\t{\n")
	b.WriteString("\t\"latitude\": " + quoteJSON(FormatLegacyDouble(p.Latitude)) + ",\n")
	b.WriteString("\t\"longitude\": " + quoteJSON(FormatLegacyDouble(p.Longitude)) + ",\n")
	b.WriteString("\t\"apartment\": " + quoteJSON(p.Apartment) + ",\n")
	b.WriteString("\t\"rating\": " + quoteJSON(p.RatingClass().Label()) + ",\n")
	b.WriteString("\t\"busted\": " + quoteJSON(strconv.FormatBool(p.Busted)) + "\n")
	b.WriteString("\t}")
}

// ToGeoJSON パーティー一覧をGeoJSONのFeatureCollectionに変換する
func ToGeoJSON(parties []model.Party) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, p := range parties {
		f := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
		f.ID = p.ID
		f.Properties["apartment"] = p.Apartment
		f.Properties["rating"] = string(p.RatingClass())
		f.Properties["rating_label"] = p.RatingClass().Label()
		f.Properties["busted"] = p.Busted
		f.Properties["created_at"] = p.CreatedAt
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

// FormatLegacyDouble 旧クライアントと同じ書式で浮動小数点数を文字列化する
// 整数値には ".0" を付け、1e-3未満または1e7以上は "1.0E-4" のような指数表記にする
func FormatLegacyDouble(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}

	abs := math.Abs(v)
	if v == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(n)
}

func quoteJSON(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(out)
}

func escapeXML(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return ""
	}
	return b.String()
}
