// Package teable — адаптер типизированного table API (Teable).
//
// Записи бэкенда имеют вид {id, fields{...}} с типизированными полями.
// Геометрическая колонка не объявлена схемой: на чтении она ищется по
// набору синонимов имен, затем сканированием строковых значений на
// WKT-префикс; на записи геометрия сериализуется в WKT под ключом
// "geometry".
package teable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/adapters/base"
	"github.com/geogismaps/geoadapter/pkg/geometry"
)

// Синонимы имени геометрической колонки, в порядке предпочтения
var geometrySynonyms = []string{"geometry", "geom", "shape", "wkt", "the_geom"}

const defaultTimeout = 30 * time.Second

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальном реестре
func init() {
	adapters.Register(adapters.TypeTeable, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter - адаптер Teable table API
type Adapter struct {
	base.Adapter

	cfg    adapters.Config
	client *http.Client
}

// apiError - ошибка HTTP-уровня с кодом ответа бэкенда
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("teable: backend returned %d: %s", e.Status, e.Body)
}

// teableRecord - нативная запись Teable
type teableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Connect сохраняет конфигурацию и готовит HTTP-клиент
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("teable: base URL is required")
	}
	if cfg.APIToken == "" {
		return fmt.Errorf("teable: API token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	a.cfg = cfg
	a.client = &http.Client{Timeout: timeout}
	return nil
}

// Close освобождает ресурсы (HTTP-клиент не держит соединений явно)
func (a *Adapter) Close(ctx context.Context) error {
	return nil
}

// TestConnection пробует короткий список известных read-эндпоинтов и
// успешен на первом ответившем без ошибки. Эндпоинты бэкенда нестабильны
// между версиями, поэтому один 404 ещё не означает недоступность.
func (a *Adapter) TestConnection(ctx context.Context) adapters.ConnectionStatus {
	var endpoints []string
	if a.cfg.TableID != "" {
		endpoints = append(endpoints,
			"/api/table/"+a.cfg.TableID+"/record?take=1",
			"/api/table/"+a.cfg.TableID+"/field",
		)
	}
	if a.cfg.BaseID != "" {
		endpoints = append(endpoints, "/api/base/"+a.cfg.BaseID+"/table")
	}
	if len(endpoints) == 0 {
		return adapters.ConnectionStatus{Success: false, Error: "teable: no table or base configured"}
	}

	var lastErr error
	for _, ep := range endpoints {
		if err := a.doRequest(ctx, http.MethodGet, ep, nil, nil); err != nil {
			lastErr = err
			continue
		}
		return adapters.ConnectionStatus{Success: true}
	}
	return adapters.ConnectionStatus{Success: false, Error: lastErr.Error()}
}

// FetchRecords возвращает страницу записей таблицы
func (a *Adapter) FetchRecords(ctx context.Context, opts adapters.FetchOptions) (*adapters.FeatureCollection, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	q := url.Values{}
	q.Set("take", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(opts.Offset))
	q.Set("fieldKeyType", "name")
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Sort != "" {
		q.Set("orderBy", opts.Sort)
	}

	var resp struct {
		Records []teableRecord `json:"records"`
	}
	path := "/api/table/" + a.cfg.TableID + "/record?" + q.Encode()
	if err := a.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	fc, err := a.ToFeatureCollection(nativeRecords(resp.Records))
	if err != nil {
		return nil, err
	}
	fc.Limit = limit
	fc.Offset = opts.Offset
	fc.Total = opts.Offset + len(resp.Records)
	fc.HasMore = len(resp.Records) == limit
	return fc, nil
}

// GetRecord возвращает одну запись; nil без ошибки если записи нет
func (a *Adapter) GetRecord(ctx context.Context, id string) (*adapters.Feature, error) {
	var rec teableRecord
	path := "/api/table/" + a.cfg.TableID + "/record/" + url.PathEscape(id) + "?fieldKeyType=name"
	err := a.doRequest(ctx, http.MethodGet, path, nil, &rec)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return a.recordToFeature(rec), nil
}

// CreateRecord создает запись из Feature
func (a *Adapter) CreateRecord(ctx context.Context, f *adapters.Feature) (*adapters.Feature, error) {
	fields, err := a.FromFeature(f)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"fieldKeyType": "name",
		"records":      []map[string]any{{"fields": fields}},
	}
	var resp struct {
		Records []teableRecord `json:"records"`
	}
	path := "/api/table/" + a.cfg.TableID + "/record"
	if err := a.doRequestBody(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if len(resp.Records) == 0 {
		return nil, fmt.Errorf("create record: backend returned no records")
	}
	return a.recordToFeature(resp.Records[0]), nil
}

// UpdateRecord обновляет запись. Бэкенд имеет две формы PATCH:
// сначала пробуем per-record, при ошибке — батчевую форму, и только
// после неудачи обеих отдаём ошибку наверх.
func (a *Adapter) UpdateRecord(ctx context.Context, id string, f *adapters.Feature) (*adapters.Feature, error) {
	fields, err := a.FromFeature(f)
	if err != nil {
		return nil, err
	}

	var rec teableRecord
	single := map[string]any{
		"fieldKeyType": "name",
		"record":       map[string]any{"fields": fields},
	}
	singlePath := "/api/table/" + a.cfg.TableID + "/record/" + url.PathEscape(id)
	singleErr := a.doRequestBody(ctx, http.MethodPatch, singlePath, single, &rec)
	if singleErr == nil {
		return a.recordToFeature(rec), nil
	}

	batch := map[string]any{
		"fieldKeyType": "name",
		"records":      []map[string]any{{"id": id, "fields": fields}},
	}
	var resp struct {
		Records []teableRecord `json:"records"`
	}
	batchPath := "/api/table/" + a.cfg.TableID + "/record"
	if err := a.doRequestBody(ctx, http.MethodPatch, batchPath, batch, &resp); err != nil {
		return nil, fmt.Errorf("update record %s: %w (single form also failed: %v)", id, err, singleErr)
	}
	if len(resp.Records) == 0 {
		return nil, fmt.Errorf("update record %s: backend returned no records", id)
	}
	return a.recordToFeature(resp.Records[0]), nil
}

// DeleteRecord удаляет запись по id
func (a *Adapter) DeleteRecord(ctx context.Context, id string) (adapters.DeleteResult, error) {
	path := "/api/table/" + a.cfg.TableID + "/record/" + url.PathEscape(id)
	if err := a.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return adapters.DeleteResult{ID: id}, fmt.Errorf("delete record %s: %w", id, err)
	}
	return adapters.DeleteResult{Success: true, ID: id}, nil
}

// GetSchema возвращает поля таблицы
func (a *Adapter) GetSchema(ctx context.Context) ([]adapters.FieldDescriptor, error) {
	var fields []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Type    string `json:"type"`
		NotNull bool   `json:"notNull"`
	}
	path := "/api/table/" + a.cfg.TableID + "/field"
	if err := a.doRequest(ctx, http.MethodGet, path, nil, &fields); err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}

	out := make([]adapters.FieldDescriptor, len(fields))
	for i, f := range fields {
		out[i] = adapters.FieldDescriptor{
			ID:       f.ID,
			Name:     f.Name,
			Type:     f.Type,
			Required: f.NotNull,
		}
	}
	return out, nil
}

// GetTableList возвращает таблицы base
func (a *Adapter) GetTableList(ctx context.Context) ([]adapters.TableDescriptor, error) {
	if a.cfg.BaseID == "" {
		return nil, fmt.Errorf("get table list: base id is not configured")
	}
	var tables []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	path := "/api/base/" + a.cfg.BaseID + "/table"
	if err := a.doRequest(ctx, http.MethodGet, path, nil, &tables); err != nil {
		return nil, fmt.Errorf("get table list: %w", err)
	}

	out := make([]adapters.TableDescriptor, len(tables))
	for i, t := range tables {
		out[i] = adapters.TableDescriptor{ID: t.ID, Name: t.Name}
	}
	return out, nil
}

// ToFeatureCollection переводит нативные записи в общий формат.
// Нативная запись: {"id": string, "fields": map[string]any}.
func (a *Adapter) ToFeatureCollection(records []map[string]any) (*adapters.FeatureCollection, error) {
	features := make([]*adapters.Feature, 0, len(records))
	for _, native := range records {
		rec := teableRecord{}
		if id, ok := native["id"].(string); ok {
			rec.ID = id
		}
		if fields, ok := native["fields"].(map[string]any); ok {
			rec.Fields = fields
		}
		features = append(features, a.recordToFeature(rec))
	}
	return &adapters.FeatureCollection{
		Features:   features,
		Total:      len(features),
		DataSource: adapters.TypeTeable,
	}, nil
}

// recordToFeature нормализует одну нативную запись
func (a *Adapter) recordToFeature(rec teableRecord) *adapters.Feature {
	props := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		props[k] = v
	}

	geomColumn, geomValue := findGeometryColumn(props)

	var geom *geometry.Geometry
	if geomColumn != "" {
		geom = a.NormalizeGeometry(geomValue)
		// Колонка израсходована как геометрия — из свойств убирается
		delete(props, geomColumn)
	}
	if geom == nil {
		m := a.cfg.Mapping
		if m.LatitudeColumn != "" && m.LongitudeColumn != "" {
			geom = geometry.ParseLatLng(props[m.LatitudeColumn], props[m.LongitudeColumn])
		}
	}

	return &adapters.Feature{
		ID:         rec.ID,
		Geometry:   geom,
		Properties: props,
	}
}

// findGeometryColumn ищет геометрическую колонку: сначала по синонимам
// имени, затем сканированием строковых значений на WKT-префикс
func findGeometryColumn(fields map[string]any) (string, any) {
	for _, synonym := range geometrySynonyms {
		if v, ok := fields[synonym]; ok {
			return synonym, v
		}
	}
	// Скан по отсортированным именам: порядок обхода map случаен,
	// а выбор колонки должен быть детерминированным
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s, ok := fields[name].(string); ok && geometry.HasWKTPrefix(s) {
			return name, fields[name]
		}
	}
	return "", nil
}

// FromFeature переводит Feature в нативные поля записи.
// Геометрия сериализуется в WKT под ключом "geometry".
func (a *Adapter) FromFeature(f *adapters.Feature) (map[string]any, error) {
	if f == nil {
		return nil, fmt.Errorf("from feature: feature is nil")
	}
	fields := make(map[string]any, len(f.Properties)+1)
	for k, v := range f.Properties {
		fields[k] = v
	}
	if f.Geometry != nil {
		wkt := geometry.ToWKT(f.Geometry)
		if wkt == "" {
			return nil, fmt.Errorf("from feature: cannot serialize geometry of type %q", f.Geometry.Type)
		}
		fields["geometry"] = wkt
	}
	return fields, nil
}

// NormalizeGeometry приводит сырое значение к геометрии (nil = нет)
func (a *Adapter) NormalizeGeometry(value any) *geometry.Geometry {
	return geometry.AutoDetect(value, "", "", nil)
}

// DataSourceType возвращает тег источника
func (a *Adapter) DataSourceType() string {
	return adapters.TypeTeable
}

// ========== HTTP ==========

// doRequest выполняет запрос без тела
func (a *Adapter) doRequest(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("teable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("teable: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("teable: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("teable: decode response: %w", err)
		}
	}
	return nil
}

// doRequestBody выполняет запрос с JSON-телом
func (a *Adapter) doRequestBody(ctx context.Context, method, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("teable: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("teable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("teable: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("teable: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("teable: decode response: %w", err)
		}
	}
	return nil
}

// nativeRecords переводит ответ API в формат ToFeatureCollection
func nativeRecords(records []teableRecord) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = map[string]any{"id": r.ID, "fields": r.Fields}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
