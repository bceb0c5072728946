package geometry

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseGeoJSON принимает уже разобранную геометрию (*Geometry,
// map[string]any) или JSON-строку. Возвращает nil если значение
// не несёт ни "type", ни "coordinates"/"geometries".
func ParseGeoJSON(value any) *Geometry {
	switch v := value.(type) {
	case nil:
		return nil

	case *Geometry:
		if Validate(v) {
			return v
		}
		return nil

	case Geometry:
		g := v
		if Validate(&g) {
			return &g
		}
		return nil

	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		var g Geometry
		if err := json.Unmarshal([]byte(s), &g); err != nil {
			return nil
		}
		if !Validate(&g) {
			return nil
		}
		return &g

	case map[string]any:
		if _, hasType := v["type"]; !hasType {
			return nil
		}
		_, hasCoords := v["coordinates"]
		_, hasGeoms := v["geometries"]
		if !hasCoords && !hasGeoms {
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var g Geometry
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil
		}
		if !Validate(&g) {
			return nil
		}
		return &g

	case json.RawMessage:
		return ParseGeoJSON(string(v))
	}
	return nil
}

// ParseLatLng строит Point из пары широта/долгота.
// Оба аргумента парсятся как числа; nil если хотя бы одно не число
// или выходит за канонический диапазон (lat ±90, lng ±180).
// Координаты результата всегда [lng, lat] — инвариант порядка.
func ParseLatLng(lat, lng any) *Geometry {
	latVal, ok := toFloat(lat)
	if !ok {
		return nil
	}
	lngVal, ok := toFloat(lng)
	if !ok {
		return nil
	}
	if latVal < -90 || latVal > 90 || lngVal < -180 || lngVal > 180 {
		return nil
	}
	return NewPoint(lngVal, latVal)
}

// toFloat приводит произвольное значение к float64
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// AutoDetect — строгая упорядоченная цепочка попыток распознавания:
//
//  1. lat/lng пара — если заданы обе колонки и исходная запись;
//  2. уже структурная геометрия — возвращается как есть;
//  3. текст с WKT-префиксом → ParseWKT;
//  4. текст с ведущей '{' или '[' → ParseGeoJSON;
//  5. иначе nil.
//
// При одновременном наличии lat/lng колонок и геометрического значения
// приоритет у пары; значение рассматривается только если пара не дала Point.
func AutoDetect(value any, latColumn, lngColumn string, record map[string]any) *Geometry {
	if latColumn != "" && lngColumn != "" && record != nil {
		if p := ParseLatLng(record[latColumn], record[lngColumn]); p != nil {
			return p
		}
	}

	switch v := value.(type) {
	case nil:
		return nil

	case *Geometry, Geometry:
		return ParseGeoJSON(v)

	case map[string]any:
		if _, hasType := v["type"]; hasType {
			return ParseGeoJSON(v)
		}
		return nil

	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if HasWKTPrefix(s) {
			return ParseWKT(s)
		}
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
			return ParseGeoJSON(s)
		}
	}
	return nil
}
