// Package gsheets — адаптер spreadsheet API (Google Sheets).
//
// У таблицы нет типов: только заголовочная строка и текстовые ячейки,
// поэтому перевод строка↔Feature требует явного FieldMapping. Квоты
// API жесткие, и адаптер держит короткоживущий (30 с) сквозной кеш
// заголовка и данных; любая мутация инвалидирует кеш синхронно —
// следующее чтение никогда не видит устаревшую строку.
//
// Канонический id записи — номер строки листа (1-индексированный,
// данные начинаются со строки 2); при маппинге id-колонки её значение
// используется как внешний идентификатор поиска.
package gsheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/adapters/base"
	"github.com/geogismaps/geoadapter/pkg/geometry"
	"github.com/geogismaps/geoadapter/pkg/retry"
)

const (
	defaultAPIBase = "https://sheets.googleapis.com/v4/spreadsheets"
	defaultSheet   = "Sheet1"
	defaultTimeout = 30 * time.Second

	// cacheTTL ограничивает частоту обращений к квотированному API
	cacheTTL = 30 * time.Second

	// rowKey - служебный ключ нативной записи с номером строки листа
	rowKey = "_row"
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальном реестре
func init() {
	adapters.Register(adapters.TypeGSheets, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter - адаптер Google Sheets
type Adapter struct {
	base.Adapter

	cfg     adapters.Config
	apiBase string
	client  *http.Client
	retryer *retry.Retryer

	// Кеш снапшота листа. Единственное разделяемое между вызовами
	// состояние адаптера; защищено mu.
	mu       sync.Mutex
	snapshot *sheetSnapshot
}

// sheetSnapshot - закешированный заголовок и данные листа
type sheetSnapshot struct {
	headers   []string
	rows      [][]string
	fetchedAt time.Time
}

// apiError - ошибка HTTP-уровня с кодом ответа
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gsheets: backend returned %d: %s", e.Status, e.Body)
}

// HTTPStatus реализует классификатор pkg/retry
func (e *apiError) HTTPStatus() int { return e.Status }

// Connect сохраняет конфигурацию и готовит HTTP-клиент
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if cfg.SpreadsheetID == "" {
		return fmt.Errorf("gsheets: spreadsheet id is required")
	}
	if cfg.AccessToken == "" {
		return fmt.Errorf("gsheets: access token is required")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = defaultSheet
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	a.cfg = cfg
	a.apiBase = defaultAPIBase
	if cfg.BaseURL != "" {
		a.apiBase = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	a.client = &http.Client{Timeout: timeout}

	retryer, err := retry.NewRetryer(retry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("gsheets: %w", err)
	}
	a.retryer = retryer
	return nil
}

// Close сбрасывает кеш
func (a *Adapter) Close(ctx context.Context) error {
	a.invalidate()
	return nil
}

// TestConnection проверяет доступность книги. У spreadsheet API одна
// каноническая семья эндпоинтов — fallback-списка нет, ошибка уходит как есть.
func (a *Adapter) TestConnection(ctx context.Context) adapters.ConnectionStatus {
	var meta struct {
		SpreadsheetID string `json:"spreadsheetId"`
	}
	err := a.get(ctx, a.spreadsheetURL("?fields=spreadsheetId"), &meta)
	if err != nil {
		return adapters.ConnectionStatus{Success: false, Error: err.Error()}
	}
	return adapters.ConnectionStatus{Success: true}
}

// FetchRecords возвращает страницу строк листа
func (a *Adapter) FetchRecords(ctx context.Context, opts adapters.FetchOptions) (*adapters.FeatureCollection, error) {
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	total := len(snap.rows)

	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	features := make([]*adapters.Feature, 0, end-start)
	for i := start; i < end; i++ {
		native := a.nativeRecord(snap.headers, snap.rows[i], i)
		features = append(features, a.recordToFeature(native))
	}

	return &adapters.FeatureCollection{
		Features:   features,
		Total:      total,
		Limit:      limit,
		Offset:     opts.Offset,
		HasMore:    end < total,
		DataSource: adapters.TypeGSheets,
	}, nil
}

// GetRecord возвращает строку по каноническому id; nil если строки нет
func (a *Adapter) GetRecord(ctx context.Context, id string) (*adapters.Feature, error) {
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := a.findRow(snap, id)
	if idx < 0 {
		return nil, nil
	}
	return a.recordToFeature(a.nativeRecord(snap.headers, snap.rows[idx], idx)), nil
}

// CreateRecord добавляет строку в конец листа
func (a *Adapter) CreateRecord(ctx context.Context, f *adapters.Feature) (*adapters.Feature, error) {
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	native, err := a.FromFeature(f)
	if err != nil {
		return nil, err
	}

	row := make([]string, len(snap.headers))
	for i, h := range snap.headers {
		if v, ok := native[h]; ok {
			row[i] = stringify(v)
		}
	}

	body := map[string]any{"values": [][]string{row}}
	var resp struct {
		Updates struct {
			UpdatedRange string `json:"updatedRange"`
		} `json:"updates"`
	}
	u := a.valuesURL(a.cfg.SheetName+"!A1") + ":append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS"
	if err := a.post(ctx, u, body, &resp); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	// Мутация — кеш сбрасывается до возврата
	a.invalidate()

	rowNum := parseRowNumber(resp.Updates.UpdatedRange)
	if rowNum == 0 {
		rowNum = len(snap.rows) + 2
	}
	return a.recordToFeature(a.nativeRecord(snap.headers, row, rowNum-2)), nil
}

// UpdateRecord мутирует существующую строку на месте: позиции колонок
// сохраняются, неотображенные колонки не трогаются
func (a *Adapter) UpdateRecord(ctx context.Context, id string, f *adapters.Feature) (*adapters.Feature, error) {
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := a.findRow(snap, id)
	if idx < 0 {
		return nil, fmt.Errorf("update record %s: row not found", id)
	}
	native, err := a.FromFeature(f)
	if err != nil {
		return nil, err
	}

	// Копия существующей строки, выровненная по ширине заголовка
	row := make([]string, len(snap.headers))
	copy(row, snap.rows[idx])
	for i, h := range snap.headers {
		if v, ok := native[h]; ok {
			row[i] = stringify(v)
		}
	}

	sheetRow := idx + 2
	u := a.valuesURL(rowRange(a.cfg.SheetName, sheetRow, len(snap.headers))) + "?valueInputOption=USER_ENTERED"
	if err := a.put(ctx, u, map[string]any{"values": [][]string{row}}); err != nil {
		return nil, fmt.Errorf("update record %s: %w", id, err)
	}

	a.invalidate()
	return a.recordToFeature(a.nativeRecord(snap.headers, row, idx)), nil
}

// DeleteRecord удаляет строку нативной dimension-delete операцией.
// Операция адресует целочисленный sheetId вкладки, не её имя, поэтому
// id резолвится из метаданных книги.
func (a *Adapter) DeleteRecord(ctx context.Context, id string) (adapters.DeleteResult, error) {
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return adapters.DeleteResult{ID: id}, err
	}
	idx := a.findRow(snap, id)
	if idx < 0 {
		return adapters.DeleteResult{ID: id}, fmt.Errorf("delete record %s: row not found", id)
	}

	sheetID, err := a.resolveSheetID(ctx)
	if err != nil {
		return adapters.DeleteResult{ID: id}, fmt.Errorf("delete record %s: %w", id, err)
	}

	sheetRow := idx + 2
	body := map[string]any{
		"requests": []map[string]any{{
			"deleteDimension": map[string]any{
				"range": map[string]any{
					"sheetId":    sheetID,
					"dimension":  "ROWS",
					"startIndex": sheetRow - 1, // 0-based, включительно
					"endIndex":   sheetRow,     // исключительно
				},
			},
		}},
	}
	if err := a.post(ctx, a.spreadsheetURL(":batchUpdate"), body, nil); err != nil {
		return adapters.DeleteResult{ID: id}, fmt.Errorf("delete record %s: %w", id, err)
	}

	a.invalidate()
	return adapters.DeleteResult{Success: true, ID: id}, nil
}

// GetSchema возвращает колонки листа; роли берутся из маппинга,
// остальное — нетипизированный текст
func (a *Adapter) GetSchema(ctx context.Context) ([]adapters.FieldDescriptor, error) {
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	m := a.cfg.Mapping
	out := make([]adapters.FieldDescriptor, len(snap.headers))
	for i, h := range snap.headers {
		fieldType := "text"
		switch h {
		case m.GeometryColumn:
			fieldType = "geometry"
		case m.LatitudeColumn:
			fieldType = "latitude"
		case m.LongitudeColumn:
			fieldType = "longitude"
		}
		out[i] = adapters.FieldDescriptor{Name: h, Type: fieldType}
	}
	return out, nil
}

// GetTableList возвращает вкладки книги
func (a *Adapter) GetTableList(ctx context.Context) ([]adapters.TableDescriptor, error) {
	sheets, err := a.sheetProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("get table list: %w", err)
	}
	out := make([]adapters.TableDescriptor, len(sheets))
	for i, s := range sheets {
		out[i] = adapters.TableDescriptor{ID: strconv.FormatInt(s.SheetID, 10), Name: s.Title}
	}
	return out, nil
}

// ToFeatureCollection переводит нативные записи (map заголовок→значение,
// служебный ключ "_row" — номер строки листа) в общий формат
func (a *Adapter) ToFeatureCollection(records []map[string]any) (*adapters.FeatureCollection, error) {
	features := make([]*adapters.Feature, 0, len(records))
	for _, native := range records {
		features = append(features, a.recordToFeature(native))
	}
	return &adapters.FeatureCollection{
		Features:   features,
		Total:      len(features),
		DataSource: adapters.TypeGSheets,
	}, nil
}

// FromFeature переводит Feature в нативную запись (map заголовок→значение).
// Геометрия уходит в geometry-колонку как WKT, либо раскладывается в
// lat/lng колонки для Point.
func (a *Adapter) FromFeature(f *adapters.Feature) (map[string]any, error) {
	if f == nil {
		return nil, fmt.Errorf("from feature: feature is nil")
	}
	m := a.cfg.Mapping

	native := make(map[string]any, len(f.Properties)+3)
	for k, v := range f.Properties {
		native[k] = v
	}

	if f.Geometry != nil {
		switch {
		case m.GeometryColumn != "":
			wkt := geometry.ToWKT(f.Geometry)
			if wkt == "" {
				return nil, fmt.Errorf("from feature: cannot serialize geometry of type %q", f.Geometry.Type)
			}
			native[m.GeometryColumn] = wkt
		case m.LatitudeColumn != "" && m.LongitudeColumn != "" && f.Geometry.Type == geometry.TypePoint:
			native[m.LongitudeColumn] = strconv.FormatFloat(f.Geometry.Point[0], 'g', -1, 64)
			native[m.LatitudeColumn] = strconv.FormatFloat(f.Geometry.Point[1], 'g', -1, 64)
		default:
			return nil, fmt.Errorf("from feature: no geometry column mapped for %q", f.Geometry.Type)
		}
	}
	return native, nil
}

// NormalizeGeometry приводит сырое значение к геометрии (nil = нет)
func (a *Adapter) NormalizeGeometry(value any) *geometry.Geometry {
	return geometry.AutoDetect(value, "", "", nil)
}

// DataSourceType возвращает тег источника
func (a *Adapter) DataSourceType() string {
	return adapters.TypeGSheets
}

// ========== Перевод строк ==========

// nativeRecord собирает нативную запись из строки листа.
// dataIndex — 0-based индекс в данных (строка листа = dataIndex+2).
func (a *Adapter) nativeRecord(headers []string, row []string, dataIndex int) map[string]any {
	native := make(map[string]any, len(headers)+1)
	for i, h := range headers {
		if i < len(row) {
			native[h] = row[i]
		} else {
			native[h] = ""
		}
	}
	native[rowKey] = dataIndex + 2
	return native
}

// recordToFeature нормализует нативную запись: геометрическая колонка
// в приоритете, иначе пара lat/lng
func (a *Adapter) recordToFeature(native map[string]any) *adapters.Feature {
	m := a.cfg.Mapping

	props := make(map[string]any, len(native))
	for k, v := range native {
		if k == rowKey {
			continue
		}
		props[k] = v
	}

	var geom *geometry.Geometry
	if m.GeometryColumn != "" {
		if v, ok := props[m.GeometryColumn]; ok {
			geom = a.NormalizeGeometry(v)
			delete(props, m.GeometryColumn)
		}
	}
	if geom == nil && m.LatitudeColumn != "" && m.LongitudeColumn != "" {
		geom = geometry.ParseLatLng(props[m.LatitudeColumn], props[m.LongitudeColumn])
	}

	id := ""
	if m.IDColumn != "" {
		if v, ok := props[m.IDColumn]; ok {
			id = strings.TrimSpace(stringify(v))
		}
	}
	if id == "" {
		if rowNum, ok := native[rowKey]; ok {
			id = stringify(rowNum)
		}
	}

	return &adapters.Feature{ID: id, Geometry: geom, Properties: props}
}

// findRow ищет 0-based индекс строки данных по каноническому id:
// сначала по значению id-колонки, затем по номеру строки листа
func (a *Adapter) findRow(snap *sheetSnapshot, id string) int {
	m := a.cfg.Mapping
	if m.IDColumn != "" {
		col := -1
		for i, h := range snap.headers {
			if h == m.IDColumn {
				col = i
				break
			}
		}
		if col >= 0 {
			for i, row := range snap.rows {
				if col < len(row) && strings.TrimSpace(row[col]) == id {
					return i
				}
			}
		}
	}
	if rowNum, err := strconv.Atoi(id); err == nil {
		idx := rowNum - 2
		if idx >= 0 && idx < len(snap.rows) {
			return idx
		}
	}
	return -1
}

// ========== Кеш ==========

// loadSnapshot возвращает кешированный снапшот листа либо перечитывает
// его из API по истечении TTL
func (a *Adapter) loadSnapshot(ctx context.Context) (*sheetSnapshot, error) {
	a.mu.Lock()
	if a.snapshot != nil && time.Since(a.snapshot.fetchedAt) < cacheTTL {
		snap := a.snapshot
		a.mu.Unlock()
		return snap, nil
	}
	a.mu.Unlock()

	var resp struct {
		Values [][]any `json:"values"`
	}
	if err := a.get(ctx, a.valuesURL(a.cfg.SheetName), &resp); err != nil {
		return nil, fmt.Errorf("load sheet data: %w", err)
	}

	snap := &sheetSnapshot{fetchedAt: time.Now()}
	if len(resp.Values) > 0 {
		snap.headers = make([]string, len(resp.Values[0]))
		for i, v := range resp.Values[0] {
			snap.headers[i] = stringify(v)
		}
		snap.rows = make([][]string, 0, len(resp.Values)-1)
		for _, raw := range resp.Values[1:] {
			row := make([]string, len(raw))
			for i, v := range raw {
				row[i] = stringify(v)
			}
			snap.rows = append(snap.rows, row)
		}
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()
	return snap, nil
}

// invalidate сбрасывает кеш; вызывается синхронно внутри мутаций
func (a *Adapter) invalidate() {
	a.mu.Lock()
	a.snapshot = nil
	a.mu.Unlock()
}

// ========== Метаданные ==========

type sheetProps struct {
	SheetID int64  `json:"sheetId"`
	Title   string `json:"title"`
}

// sheetProperties возвращает свойства вкладок книги
func (a *Adapter) sheetProperties(ctx context.Context) ([]sheetProps, error) {
	var meta struct {
		Sheets []struct {
			Properties sheetProps `json:"properties"`
		} `json:"sheets"`
	}
	if err := a.get(ctx, a.spreadsheetURL("?fields=sheets.properties"), &meta); err != nil {
		return nil, err
	}
	out := make([]sheetProps, len(meta.Sheets))
	for i, s := range meta.Sheets {
		out[i] = s.Properties
	}
	return out, nil
}

// resolveSheetID находит целочисленный sheetId вкладки по её имени
func (a *Adapter) resolveSheetID(ctx context.Context) (int64, error) {
	sheets, err := a.sheetProperties(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range sheets {
		if s.Title == a.cfg.SheetName {
			return s.SheetID, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", a.cfg.SheetName)
}

// ========== HTTP ==========

func (a *Adapter) spreadsheetURL(suffix string) string {
	return a.apiBase + "/" + a.cfg.SpreadsheetID + suffix
}

func (a *Adapter) valuesURL(rangeA1 string) string {
	return a.apiBase + "/" + a.cfg.SpreadsheetID + "/values/" + url.PathEscape(rangeA1)
}

// get выполняет идемпотентное чтение с повторами по квоте (429/5xx)
func (a *Adapter) get(ctx context.Context, rawURL string, out any) error {
	return a.retryer.Do(ctx, func(ctx context.Context) error {
		return a.do(ctx, http.MethodGet, rawURL, nil, out)
	})
}

// post/put — мутации без повторов: повтор после неясного исхода
// может задублировать строку
func (a *Adapter) post(ctx context.Context, rawURL string, body, out any) error {
	return a.do(ctx, http.MethodPost, rawURL, body, out)
}

func (a *Adapter) put(ctx context.Context, rawURL string, body any) error {
	return a.do(ctx, http.MethodPut, rawURL, body, nil)
}

func (a *Adapter) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gsheets: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("gsheets: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("gsheets: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gsheets: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("gsheets: decode response: %w", err)
		}
	}
	return nil
}

// parseRowNumber извлекает номер строки из A1-диапазона "Sheet1!A7:E7"
func parseRowNumber(updatedRange string) int {
	i := strings.LastIndexByte(updatedRange, '!')
	if i < 0 {
		return 0
	}
	cell := updatedRange[i+1:]
	if j := strings.IndexByte(cell, ':'); j >= 0 {
		cell = cell[:j]
	}
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return fmt.Sprint(v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
