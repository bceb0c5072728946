package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/geogismaps/geoadapter/pkg/geometry"
)

// Feature - одна географическая запись в общем формате.
// ID — первичный ключ бэкенда в каноническом строковом виде.
// Properties не содержит колонку, израсходованную как геометрия.
type Feature struct {
	ID         string             `json:"id"`
	Geometry   *geometry.Geometry `json:"geometry,omitempty"`
	Properties map[string]any     `json:"properties"`
}

// featureJSON — проводной формат GeoJSON Feature
type featureJSON struct {
	Type       string             `json:"type"`
	ID         string             `json:"id,omitempty"`
	Geometry   *geometry.Geometry `json:"geometry"`
	Properties map[string]any     `json:"properties"`
}

// MarshalJSON сериализует Feature в GeoJSON
func (f *Feature) MarshalJSON() ([]byte, error) {
	props := f.Properties
	if props == nil {
		props = map[string]any{}
	}
	return json.Marshal(featureJSON{
		Type:       "Feature",
		ID:         f.ID,
		Geometry:   f.Geometry,
		Properties: props,
	})
}

// UnmarshalJSON разбирает GeoJSON Feature
func (f *Feature) UnmarshalJSON(data []byte) error {
	var in featureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal feature: %w", err)
	}
	if in.Type != "" && in.Type != "Feature" {
		return fmt.Errorf("unmarshal feature: unexpected type %q", in.Type)
	}
	f.ID = in.ID
	f.Geometry = in.Geometry
	f.Properties = in.Properties
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}
	return nil
}

// FeatureCollection - упорядоченный набор Feature с метаданными пагинации
// и тегом источника данных
type FeatureCollection struct {
	Features   []*Feature `json:"features"`
	Total      int        `json:"total"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
	HasMore    bool       `json:"hasMore"`
	DataSource string     `json:"dataSource,omitempty"`
}

// MarshalJSON сериализует коллекцию в GeoJSON FeatureCollection
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	features := fc.Features
	if features == nil {
		features = []*Feature{}
	}
	return json.Marshal(struct {
		Type       string     `json:"type"`
		Features   []*Feature `json:"features"`
		Total      int        `json:"total"`
		Limit      int        `json:"limit,omitempty"`
		Offset     int        `json:"offset,omitempty"`
		HasMore    bool       `json:"hasMore"`
		DataSource string     `json:"dataSource,omitempty"`
	}{
		Type:       "FeatureCollection",
		Features:   features,
		Total:      fc.Total,
		Limit:      fc.Limit,
		Offset:     fc.Offset,
		HasMore:    fc.HasMore,
		DataSource: fc.DataSource,
	})
}

// FieldMapping - какие колонки бэкенда играют географические роли.
// Все поля опциональны; заполняется эвристикой детекции или оператором.
type FieldMapping struct {
	GeometryColumn  string `json:"geometry_column,omitempty" yaml:"geometry_column,omitempty"`
	LatitudeColumn  string `json:"latitude_column,omitempty" yaml:"latitude_column,omitempty"`
	LongitudeColumn string `json:"longitude_column,omitempty" yaml:"longitude_column,omitempty"`
	AddressColumn   string `json:"address_column,omitempty" yaml:"address_column,omitempty"`
	IDColumn        string `json:"id_column,omitempty" yaml:"id_column,omitempty"`
	NameColumn      string `json:"name_column,omitempty" yaml:"name_column,omitempty"`
}

// FieldDescriptor - описание поля схемы бэкенда
type FieldDescriptor struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// TableDescriptor - описание таблицы/листа бэкенда
type TableDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchOptions - параметры постраничной выборки
type FetchOptions struct {
	// Limit - максимум записей (0 = значение по умолчанию бэкенда)
	Limit int

	// Offset - смещение от начала набора
	Offset int

	// Filter - выражение фильтра в нотации бэкенда (опционально)
	Filter string

	// Sort - поле сортировки, префикс "-" для убывания (опционально)
	Sort string
}

// ConnectionStatus - результат проверки соединения
type ConnectionStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DeleteResult - результат удаления записи
type DeleteResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}
