// Package detect — эвристика распознавания географических колонок.
//
// По заголовкам и небольшой выборке строк эвристика ранжирует кандидатов
// на роли geometry / latitude / longitude / address / id / name, считает
// суммарную уверенность и формирует подсказки для оператора.
// "Локация не найдена" — штатный результат, а не ошибка: дальнейший
// маршрут решает вызывающий поток (эскалация на человека).
package detect

import (
	"fmt"
	"strings"

	"github.com/geogismaps/geoadapter/pkg/geometry"
)

// Result — результат эвристики по одному набору колонок
type Result struct {
	GeometryColumn  string `json:"geometry_column,omitempty"`
	LatitudeColumn  string `json:"latitude_column,omitempty"`
	LongitudeColumn string `json:"longitude_column,omitempty"`
	AddressColumn   string `json:"address_column,omitempty"`
	IDColumn        string `json:"id_column,omitempty"`
	NameColumn      string `json:"name_column,omitempty"`

	// Confidence — суммарная уверенность 0..100
	Confidence int `json:"confidence"`

	// Suggestions — человекочитаемые подсказки для оператора
	Suggestions []string `json:"suggestions"`

	// HasLocationData — найдена ли хоть какая-то локация:
	// geometry ИЛИ (latitude И longitude) ИЛИ address
	HasLocationData bool `json:"has_location_data"`
}

// Списки синонимов по ролям. Сопоставление регистронезависимое,
// по точному совпадению либо вхождению.
var (
	geometryKeywords  = []string{"geometry", "geom", "wkt", "shape", "the_geom", "spatial"}
	latitudeKeywords  = []string{"latitude", "lat", "y_coord", "ycoord"}
	longitudeKeywords = []string{"longitude", "lng", "lon", "long", "x_coord", "xcoord"}
	addressKeywords   = []string{"address", "addr", "street", "location", "place", "city"}
	idKeywords        = []string{"id", "key", "code", "uuid", "number"}
	nameKeywords      = []string{"name", "title", "label", "caption"}
)

// Веса ролей: геометрия дороже пары lat/lng, пара дороже адреса
const (
	scoreGeometry = 50
	scoreLatLng   = 40
	scoreAddress  = 15
	scoreAux      = 5 // id / name
)

// Detect прогоняет эвристику по заголовкам и выборке строк.
// rows — построчные значения в порядке заголовков; допустимо nil.
func Detect(headers []string, rows [][]string) *Result {
	res := &Result{Suggestions: []string{}}
	if len(headers) == 0 {
		res.Suggestions = append(res.Suggestions, "No columns to analyze")
		return res
	}

	for i, header := range headers {
		switch {
		case res.GeometryColumn == "" && matchKeyword(header, geometryKeywords):
			// Совпадение по имени принимается только если в выборке
			// есть значение с WKT-префиксом — иначе ложное срабатывание
			if columnHasWKT(rows, i) {
				res.GeometryColumn = header
			}
		case res.LatitudeColumn == "" && matchKeyword(header, latitudeKeywords):
			res.LatitudeColumn = header
		case res.LongitudeColumn == "" && matchKeyword(header, longitudeKeywords):
			res.LongitudeColumn = header
		case res.AddressColumn == "" && matchKeyword(header, addressKeywords):
			res.AddressColumn = header
		case res.IDColumn == "" && matchKeyword(header, idKeywords):
			res.IDColumn = header
		case res.NameColumn == "" && matchKeyword(header, nameKeywords):
			res.NameColumn = header
		}
	}

	if res.GeometryColumn != "" {
		res.Confidence += scoreGeometry
		res.Suggestions = append(res.Suggestions,
			fmt.Sprintf("Column %q contains WKT geometry values", res.GeometryColumn))
	}
	if res.LatitudeColumn != "" && res.LongitudeColumn != "" {
		res.Confidence += scoreLatLng
		res.Suggestions = append(res.Suggestions,
			fmt.Sprintf("Columns %q/%q look like a latitude/longitude pair",
				res.LatitudeColumn, res.LongitudeColumn))
	}
	if res.AddressColumn != "" {
		res.Confidence += scoreAddress
		res.Suggestions = append(res.Suggestions,
			fmt.Sprintf("Column %q may hold addresses (geocoding required)", res.AddressColumn))
	}

	// Разумные умолчания: id — первая колонка, name — вторая
	if res.IDColumn == "" {
		res.IDColumn = headers[0]
		res.Suggestions = append(res.Suggestions,
			fmt.Sprintf("No id column recognized, defaulting to first column %q", res.IDColumn))
	} else {
		res.Confidence += scoreAux
	}
	if res.NameColumn == "" && len(headers) > 1 {
		res.NameColumn = headers[1]
		res.Suggestions = append(res.Suggestions,
			fmt.Sprintf("No name column recognized, defaulting to second column %q", res.NameColumn))
	} else if res.NameColumn != "" {
		res.Confidence += scoreAux
	}

	if res.Confidence > 100 {
		res.Confidence = 100
	}

	res.HasLocationData = res.GeometryColumn != "" ||
		(res.LatitudeColumn != "" && res.LongitudeColumn != "") ||
		res.AddressColumn != ""

	if !res.HasLocationData {
		res.Suggestions = append(res.Suggestions,
			"No location data found: map geometry, latitude/longitude or address columns manually")
	}

	return res
}

// matchKeyword — регистронезависимое совпадение заголовка со списком
// синонимов: точное или по вхождению/суффиксу
func matchKeyword(header string, keywords []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return false
	}
	for _, kw := range keywords {
		if h == kw || strings.Contains(h, kw) {
			return true
		}
	}
	return false
}

// columnHasWKT проверяет что хотя бы одно значение колонки в выборке
// начинается с распознаваемого WKT-префикса
func columnHasWKT(rows [][]string, col int) bool {
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if geometry.HasWKTPrefix(row[col]) {
			return true
		}
	}
	return false
}
