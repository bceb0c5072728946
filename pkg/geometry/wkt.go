package geometry

import (
	"strconv"
	"strings"
)

// Префиксы WKT в порядке проверки: MULTI* раньше одиночных,
// иначе LINESTRING перехватит MULTILINESTRING.
var wktPrefixes = []string{
	"GEOMETRYCOLLECTION",
	"MULTILINESTRING",
	"MULTIPOLYGON",
	"MULTIPOINT",
	"LINESTRING",
	"POLYGON",
	"POINT",
}

// HasWKTPrefix проверяет что строка начинается с известного WKT-ключевого слова
func HasWKTPrefix(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range wktPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// ParseWKT разбирает well-known text в структурную геометрию.
// Возвращает nil на пустом/некорректном входе — не ошибку.
func ParseWKT(text string) *Geometry {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}
	upper := strings.ToUpper(s)

	for _, prefix := range wktPrefixes {
		if !strings.HasPrefix(upper, prefix) {
			continue
		}
		body, ok := wktBody(s[len(prefix):])
		if !ok {
			return nil
		}
		g := parseWKTBody(prefix, body)
		if g == nil || !Validate(g) {
			return nil
		}
		return g
	}
	return nil
}

// wktBody извлекает содержимое внешних скобок: " ( ... ) " → "..."
func wktBody(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

func parseWKTBody(keyword, body string) *Geometry {
	switch keyword {
	case "POINT":
		p := parseWKTPosition(body)
		if p == nil {
			return nil
		}
		return &Geometry{Type: TypePoint, Point: p}

	case "LINESTRING":
		line := parseWKTPositionList(body)
		if line == nil {
			return nil
		}
		return &Geometry{Type: TypeLineString, LineString: line}

	case "POLYGON":
		rings := parseWKTRingList(body)
		if rings == nil {
			return nil
		}
		return &Geometry{Type: TypePolygon, Polygon: rings}

	case "MULTIPOINT":
		// Оба варианта WKT: MULTIPOINT((1 2),(3 4)) и MULTIPOINT(1 2, 3 4)
		var points [][]float64
		for _, part := range splitTopLevel(body) {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "(") && strings.HasSuffix(part, ")") {
				part = strings.TrimSpace(part[1 : len(part)-1])
			}
			p := parseWKTPosition(part)
			if p == nil {
				return nil
			}
			points = append(points, p)
		}
		if points == nil {
			return nil
		}
		return &Geometry{Type: TypeMultiPoint, MultiPoint: points}

	case "MULTILINESTRING":
		lines := parseWKTRingList(body)
		if lines == nil {
			return nil
		}
		return &Geometry{Type: TypeMultiLineString, MultiLineString: lines}

	case "MULTIPOLYGON":
		var polys [][][][]float64
		for _, part := range splitTopLevel(body) {
			// часть имеет вид "((кольцо), (кольцо))" — снимаем внешние скобки
			inner, ok := wktBody(part)
			if !ok {
				return nil
			}
			rings := parseWKTRingList(inner)
			if rings == nil {
				return nil
			}
			polys = append(polys, rings)
		}
		if polys == nil {
			return nil
		}
		return &Geometry{Type: TypeMultiPolygon, MultiPolygon: polys}

	case "GEOMETRYCOLLECTION":
		var subs []*Geometry
		for _, part := range splitTopLevel(body) {
			sub := ParseWKT(part)
			if sub == nil {
				return nil
			}
			subs = append(subs, sub)
		}
		if subs == nil {
			return nil
		}
		return &Geometry{Type: TypeGeometryCollection, Geometries: subs}
	}
	return nil
}

// parseWKTPosition разбирает "lng lat" в пару координат
func parseWKTPosition(s string) []float64 {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 2 {
		return nil
	}
	coords := make([]float64, 0, len(parts))
	// Берём только lng и lat; Z/M измерения отбрасываются
	for _, part := range parts[:2] {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil
		}
		coords = append(coords, v)
	}
	return coords
}

// parseWKTPositionList разбирает "x y, x y, ..." в список пар
func parseWKTPositionList(s string) [][]float64 {
	var out [][]float64
	for _, part := range strings.Split(s, ",") {
		p := parseWKTPosition(part)
		if p == nil {
			return nil
		}
		out = append(out, p)
	}
	return out
}

// parseWKTRingList разбирает "(x y, ...), (x y, ...)" в список колец/линий
func parseWKTRingList(s string) [][][]float64 {
	var out [][][]float64
	for _, part := range splitTopLevel(s) {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "(") || !strings.HasSuffix(part, ")") {
			return nil
		}
		list := parseWKTPositionList(part[1 : len(part)-1])
		if list == nil {
			return nil
		}
		out = append(out, list)
	}
	return out
}

// splitTopLevel разбивает строку по запятым на нулевой глубине скобок
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" || len(parts) > 0 {
		parts = append(parts, s[start:])
	}
	return parts
}

// ToWKT сериализует геометрию обратно в well-known text.
// nil на входе → пустая строка. Round-trip стабилен для всех семи вариантов.
func ToWKT(g *Geometry) string {
	if g == nil {
		return ""
	}
	switch g.Type {
	case TypePoint:
		if len(g.Point) < 2 {
			return ""
		}
		return "POINT(" + formatPosition(g.Point) + ")"
	case TypeMultiPoint:
		return "MULTIPOINT(" + formatPositionList(g.MultiPoint) + ")"
	case TypeLineString:
		return "LINESTRING(" + formatPositionList(g.LineString) + ")"
	case TypeMultiLineString:
		return "MULTILINESTRING(" + formatRingList(g.MultiLineString) + ")"
	case TypePolygon:
		return "POLYGON(" + formatRingList(g.Polygon) + ")"
	case TypeMultiPolygon:
		parts := make([]string, len(g.MultiPolygon))
		for i, poly := range g.MultiPolygon {
			parts[i] = "(" + formatRingList(poly) + ")"
		}
		return "MULTIPOLYGON(" + strings.Join(parts, ", ") + ")"
	case TypeGeometryCollection:
		parts := make([]string, len(g.Geometries))
		for i, sub := range g.Geometries {
			parts[i] = ToWKT(sub)
		}
		return "GEOMETRYCOLLECTION(" + strings.Join(parts, ", ") + ")"
	}
	return ""
}

func formatPosition(p []float64) string {
	return strconv.FormatFloat(p[0], 'g', -1, 64) + " " + strconv.FormatFloat(p[1], 'g', -1, 64)
}

func formatPositionList(list [][]float64) string {
	parts := make([]string, len(list))
	for i, p := range list {
		parts[i] = formatPosition(p)
	}
	return strings.Join(parts, ", ")
}

func formatRingList(rings [][][]float64) string {
	parts := make([]string, len(rings))
	for i, ring := range rings {
		parts[i] = "(" + formatPositionList(ring) + ")"
	}
	return strings.Join(parts, ", ")
}
