// Package geometry — кодек геометрий для адаптерного слоя.
//
// Одно представление Geometry для всех бэкендов: GeoJSON-совместимая
// структура с координатами в порядке [longitude, latitude].
// Парсеры (WKT, GeoJSON, lat/lng) возвращают nil на любом мусоре —
// "нет геометрии" не является ошибкой, решение остаётся за вызывающим.
package geometry

import (
	"encoding/json"
	"fmt"
)

// Type — канонический тип геометрии (семь вариантов GeoJSON)
type Type string

const (
	TypePoint              Type = "Point"
	TypeMultiPoint         Type = "MultiPoint"
	TypeLineString         Type = "LineString"
	TypeMultiLineString    Type = "MultiLineString"
	TypePolygon            Type = "Polygon"
	TypeMultiPolygon       Type = "MultiPolygon"
	TypeGeometryCollection Type = "GeometryCollection"
)

// Geometry — структурная геометрия. Заполнено ровно одно координатное
// поле, соответствующее Type (для GeometryCollection — Geometries).
// Координаты всегда [lng, lat].
type Geometry struct {
	Type Type

	Point           []float64
	MultiPoint      [][]float64
	LineString      [][]float64
	MultiLineString [][][]float64
	Polygon         [][][]float64
	MultiPolygon    [][][][]float64
	Geometries      []*Geometry
}

// Bounds — ограничивающий прямоугольник геометрии
type Bounds struct {
	MinLng float64 `json:"minLng"`
	MinLat float64 `json:"minLat"`
	MaxLng float64 `json:"maxLng"`
	MaxLat float64 `json:"maxLat"`
}

// NewPoint создает Point с координатами [lng, lat]
func NewPoint(lng, lat float64) *Geometry {
	return &Geometry{Type: TypePoint, Point: []float64{lng, lat}}
}

// Validate проверяет структурную корректность геометрии:
// тип — один из семи канонических, координатное поле непустое,
// для GeometryCollection — непустой список валидных геометрий.
func Validate(g *Geometry) bool {
	if g == nil {
		return false
	}
	switch g.Type {
	case TypePoint:
		return len(g.Point) >= 2
	case TypeMultiPoint:
		return len(g.MultiPoint) > 0
	case TypeLineString:
		return len(g.LineString) > 0
	case TypeMultiLineString:
		return len(g.MultiLineString) > 0
	case TypePolygon:
		return len(g.Polygon) > 0
	case TypeMultiPolygon:
		return len(g.MultiPolygon) > 0
	case TypeGeometryCollection:
		if len(g.Geometries) == 0 {
			return false
		}
		for _, sub := range g.Geometries {
			if !Validate(sub) {
				return false
			}
		}
		return true
	}
	return false
}

// ComputeBounds собирает все координатные пары (рекурсивно для коллекций)
// и сводит их в bounding box. nil если координат нет.
func ComputeBounds(g *Geometry) *Bounds {
	positions := flatten(g)
	if len(positions) == 0 {
		return nil
	}
	b := &Bounds{
		MinLng: positions[0][0], MaxLng: positions[0][0],
		MinLat: positions[0][1], MaxLat: positions[0][1],
	}
	for _, p := range positions[1:] {
		if p[0] < b.MinLng {
			b.MinLng = p[0]
		}
		if p[0] > b.MaxLng {
			b.MaxLng = p[0]
		}
		if p[1] < b.MinLat {
			b.MinLat = p[1]
		}
		if p[1] > b.MaxLat {
			b.MaxLat = p[1]
		}
	}
	return b
}

// flatten возвращает все координатные пары геометрии
func flatten(g *Geometry) [][]float64 {
	if g == nil {
		return nil
	}
	var out [][]float64
	appendValid := func(p []float64) {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	switch g.Type {
	case TypePoint:
		appendValid(g.Point)
	case TypeMultiPoint:
		for _, p := range g.MultiPoint {
			appendValid(p)
		}
	case TypeLineString:
		for _, p := range g.LineString {
			appendValid(p)
		}
	case TypeMultiLineString:
		for _, line := range g.MultiLineString {
			for _, p := range line {
				appendValid(p)
			}
		}
	case TypePolygon:
		for _, ring := range g.Polygon {
			for _, p := range ring {
				appendValid(p)
			}
		}
	case TypeMultiPolygon:
		for _, poly := range g.MultiPolygon {
			for _, ring := range poly {
				for _, p := range ring {
					appendValid(p)
				}
			}
		}
	case TypeGeometryCollection:
		for _, sub := range g.Geometries {
			out = append(out, flatten(sub)...)
		}
	}
	return out
}

// geometryJSON — промежуточная форма для (un)marshal GeoJSON
type geometryJSON struct {
	Type        Type            `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// MarshalJSON сериализует геометрию в GeoJSON
func (g *Geometry) MarshalJSON() ([]byte, error) {
	out := geometryJSON{Type: g.Type}

	var coords any
	switch g.Type {
	case TypePoint:
		coords = g.Point
	case TypeMultiPoint:
		coords = g.MultiPoint
	case TypeLineString:
		coords = g.LineString
	case TypeMultiLineString:
		coords = g.MultiLineString
	case TypePolygon:
		coords = g.Polygon
	case TypeMultiPolygon:
		coords = g.MultiPolygon
	case TypeGeometryCollection:
		out.Geometries = g.Geometries
		if out.Geometries == nil {
			out.Geometries = []*Geometry{}
		}
	default:
		return nil, fmt.Errorf("marshal geometry: unknown type %q", g.Type)
	}

	if coords != nil {
		raw, err := json.Marshal(coords)
		if err != nil {
			return nil, fmt.Errorf("marshal geometry coordinates: %w", err)
		}
		out.Coordinates = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON разбирает GeoJSON геометрию
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var in geometryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal geometry: %w", err)
	}

	g.Type = in.Type
	g.Geometries = in.Geometries

	if in.Type == TypeGeometryCollection {
		return nil
	}
	if len(in.Coordinates) == 0 {
		return fmt.Errorf("unmarshal geometry: %s without coordinates", in.Type)
	}

	var err error
	switch in.Type {
	case TypePoint:
		err = json.Unmarshal(in.Coordinates, &g.Point)
	case TypeMultiPoint:
		err = json.Unmarshal(in.Coordinates, &g.MultiPoint)
	case TypeLineString:
		err = json.Unmarshal(in.Coordinates, &g.LineString)
	case TypeMultiLineString:
		err = json.Unmarshal(in.Coordinates, &g.MultiLineString)
	case TypePolygon:
		err = json.Unmarshal(in.Coordinates, &g.Polygon)
	case TypeMultiPolygon:
		err = json.Unmarshal(in.Coordinates, &g.MultiPolygon)
	default:
		return fmt.Errorf("unmarshal geometry: unknown type %q", in.Type)
	}
	if err != nil {
		return fmt.Errorf("unmarshal geometry coordinates: %w", err)
	}
	return nil
}

// Equal сравнивает две геометрии структурно (по сериализованной форме)
func Equal(a, b *Geometry) bool {
	if a == nil || b == nil {
		return a == b
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
