package teable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/geometry"
)

func newTestAdapter(t *testing.T, handler http.Handler) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := &Adapter{}
	err := a.Connect(context.Background(), adapters.Config{
		Type:     adapters.TypeTeable,
		BaseURL:  srv.URL,
		APIToken: "test-token",
		BaseID:   "bseTest",
		TableID:  "tblTest",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return a, srv
}

func TestConnect_Validation(t *testing.T) {
	a := &Adapter{}
	if err := a.Connect(context.Background(), adapters.Config{Type: adapters.TypeTeable}); err == nil {
		t.Error("Connect without base URL should fail")
	}
	if err := a.Connect(context.Background(), adapters.Config{
		Type: adapters.TypeTeable, BaseURL: "https://example.com",
	}); err == nil {
		t.Error("Connect without API token should fail")
	}
}

func TestFetchRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/table/tblTest/record", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "rec1", "fields": map[string]any{
					"name":     "Plot A",
					"geometry": "POINT(-122.42 37.77)",
				}},
				{"id": "rec2", "fields": map[string]any{
					"name": "Plot B",
				}},
			},
		})
	})
	a, _ := newTestAdapter(t, mux)

	fc, err := a.FetchRecords(context.Background(), adapters.FetchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}
	if fc.DataSource != "teable" {
		t.Errorf("DataSource = %q, want \"teable\"", fc.DataSource)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("len(Features) = %d, want 2", len(fc.Features))
	}

	first := fc.Features[0]
	if first.ID != "rec1" {
		t.Errorf("ID = %q, want \"rec1\"", first.ID)
	}
	if first.Geometry == nil || first.Geometry.Type != geometry.TypePoint {
		t.Fatalf("Geometry = %+v, want Point", first.Geometry)
	}
	if first.Geometry.Point[0] != -122.42 || first.Geometry.Point[1] != 37.77 {
		t.Errorf("coordinates = %v, want [-122.42 37.77]", first.Geometry.Point)
	}
	// Израсходованная геометрическая колонка исчезает из свойств
	if _, ok := first.Properties["geometry"]; ok {
		t.Error("consumed geometry column still present in properties")
	}
	if first.Properties["name"] != "Plot A" {
		t.Errorf("properties.name = %v, want \"Plot A\"", first.Properties["name"])
	}

	if fc.Features[1].Geometry != nil {
		t.Error("record without geometry should yield nil geometry")
	}
}

// колонка с WKT-значением находится сканированием даже без имени-синонима
func TestToFeatureCollection_PrefixScan(t *testing.T) {
	a := &Adapter{}
	_ = a.Connect(context.Background(), adapters.Config{
		Type: adapters.TypeTeable, BaseURL: "http://x", APIToken: "t", TableID: "tbl",
	})

	fc, err := a.ToFeatureCollection([]map[string]any{
		{"id": "rec1", "fields": map[string]any{
			"boundary": "POLYGON((0 0, 1 0, 1 1, 0 0))",
			"name":     "zone",
		}},
	})
	if err != nil {
		t.Fatalf("ToFeatureCollection() error = %v", err)
	}
	f := fc.Features[0]
	if f.Geometry == nil || f.Geometry.Type != geometry.TypePolygon {
		t.Fatalf("Geometry = %+v, want Polygon", f.Geometry)
	}
	if _, ok := f.Properties["boundary"]; ok {
		t.Error("scanned geometry column should be removed from properties")
	}
	if f.Properties["name"] != "zone" {
		t.Error("non-geometry property lost")
	}
}

// синоним имени предпочитается скану значений
func TestToFeatureCollection_SynonymPriority(t *testing.T) {
	a := &Adapter{}
	_ = a.Connect(context.Background(), adapters.Config{
		Type: adapters.TypeTeable, BaseURL: "http://x", APIToken: "t", TableID: "tbl",
	})

	fc, _ := a.ToFeatureCollection([]map[string]any{
		{"id": "r", "fields": map[string]any{
			"the_geom": "POINT(1 2)",
			"backup":   "POINT(9 9)",
		}},
	})
	f := fc.Features[0]
	if f.Geometry == nil || f.Geometry.Point[0] != 1 {
		t.Fatalf("expected geometry from the_geom, got %+v", f.Geometry)
	}
	if _, ok := f.Properties["backup"]; !ok {
		t.Error("non-synonym WKT column should stay in properties")
	}
}

func TestFromFeature(t *testing.T) {
	a := &Adapter{}
	_ = a.Connect(context.Background(), adapters.Config{
		Type: adapters.TypeTeable, BaseURL: "http://x", APIToken: "t", TableID: "tbl",
	})

	f := &adapters.Feature{
		ID:         "rec1",
		Geometry:   geometry.NewPoint(-122.42, 37.77),
		Properties: map[string]any{"name": "Plot A"},
	}
	fields, err := a.FromFeature(f)
	if err != nil {
		t.Fatalf("FromFeature() error = %v", err)
	}
	if fields["name"] != "Plot A" {
		t.Errorf("fields.name = %v", fields["name"])
	}
	wkt, _ := fields["geometry"].(string)
	if geometry.ParseWKT(wkt) == nil {
		t.Errorf("fields.geometry = %q, not parseable WKT", wkt)
	}

	// Feature без геометрии не получает ключ geometry
	bare, err := a.FromFeature(&adapters.Feature{ID: "x", Properties: map[string]any{"a": 1}})
	if err != nil {
		t.Fatalf("FromFeature() error = %v", err)
	}
	if _, ok := bare["geometry"]; ok {
		t.Error("feature without geometry must not emit geometry field")
	}
}

// per-record PATCH падает → батчевая форма выполняется
func TestUpdateRecord_BatchFallback(t *testing.T) {
	singleCalled, batchCalled := false, false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/table/tblTest/record/rec1", func(w http.ResponseWriter, r *http.Request) {
		singleCalled = true
		http.Error(w, `{"message":"not supported"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/api/table/tblTest/record", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("batch method = %s, want PATCH", r.Method)
		}
		batchCalled = true
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "rec1", "fields": map[string]any{"name": "updated"}},
			},
		})
	})
	a, _ := newTestAdapter(t, mux)

	got, err := a.UpdateRecord(context.Background(), "rec1", &adapters.Feature{
		Properties: map[string]any{"name": "updated"},
	})
	if err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	if !singleCalled || !batchCalled {
		t.Errorf("singleCalled=%v batchCalled=%v, want both", singleCalled, batchCalled)
	}
	if got.Properties["name"] != "updated" {
		t.Errorf("properties.name = %v", got.Properties["name"])
	}
}

func TestUpdateRecord_BothFormsFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	a, _ := newTestAdapter(t, mux)

	if _, err := a.UpdateRecord(context.Background(), "rec1", &adapters.Feature{}); err == nil {
		t.Error("UpdateRecord should propagate error when both forms fail")
	}
}

// health-check пробует эндпоинты по порядку и успешен на первом живом
func TestTestConnection_EndpointFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/table/tblTest/record", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/api/table/tblTest/field", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	})
	a, _ := newTestAdapter(t, mux)

	status := a.TestConnection(context.Background())
	if !status.Success {
		t.Errorf("TestConnection failed: %s", status.Error)
	}
}

func TestTestConnection_AllEndpointsFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	a, _ := newTestAdapter(t, mux)

	status := a.TestConnection(context.Background())
	if status.Success {
		t.Error("TestConnection should fail when every endpoint fails")
	}
	if status.Error == "" {
		t.Error("failed status must carry the last error")
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no such record"}`, http.StatusNotFound)
	})
	a, _ := newTestAdapter(t, mux)

	f, err := a.GetRecord(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRecord() error = %v, want nil for 404", err)
	}
	if f != nil {
		t.Errorf("GetRecord() = %+v, want nil", f)
	}
}

func TestCreateRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/table/tblTest/record", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body struct {
			Records []struct {
				Fields map[string]any `json:"fields"`
			} `json:"records"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Records) != 1 {
			t.Fatalf("records in body = %d, want 1", len(body.Records))
		}
		if _, ok := body.Records[0].Fields["geometry"]; !ok {
			t.Error("create body must carry serialized WKT geometry")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "recNew", "fields": body.Records[0].Fields},
			},
		})
	})
	a, _ := newTestAdapter(t, mux)

	created, err := a.CreateRecord(context.Background(), &adapters.Feature{
		Geometry:   geometry.NewPoint(-122.42, 37.77),
		Properties: map[string]any{"name": "Plot A"},
	})
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if created.ID != "recNew" {
		t.Errorf("ID = %q, want \"recNew\"", created.ID)
	}
	// Геометрия выжила round-trip через WKT
	if created.Geometry == nil || created.Geometry.Point[0] != -122.42 || created.Geometry.Point[1] != 37.77 {
		t.Errorf("geometry did not round-trip: %+v", created.Geometry)
	}
	if created.Properties["name"] != "Plot A" {
		t.Errorf("properties.name = %v, want \"Plot A\"", created.Properties["name"])
	}
}

func TestDeleteRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/table/tblTest/record/rec9", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	})
	a, _ := newTestAdapter(t, mux)

	res, err := a.DeleteRecord(context.Background(), "rec9")
	if err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if !res.Success || res.ID != "rec9" {
		t.Errorf("result = %+v", res)
	}
}

func TestGetSchema(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/table/tblTest/field", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "fld1", "name": "name", "type": "singleLineText", "notNull": true},
			{"id": "fld2", "name": "geometry", "type": "longText"},
		})
	})
	a, _ := newTestAdapter(t, mux)

	fields, err := a.GetSchema(context.Background())
	if err != nil {
		t.Fatalf("GetSchema() error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("len(fields) = %d, want 2", len(fields))
	}
	if fields[0].Name != "name" || !fields[0].Required {
		t.Errorf("fields[0] = %+v", fields[0])
	}
}

func TestGetTableList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/base/bseTest/table", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "tblTest", "name": "Parcels"},
		})
	})
	a, _ := newTestAdapter(t, mux)

	tables, err := a.GetTableList(context.Background())
	if err != nil {
		t.Fatalf("GetTableList() error = %v", err)
	}
	if len(tables) != 1 || tables[0].Name != "Parcels" {
		t.Errorf("tables = %+v", tables)
	}
}

func TestDataSourceType(t *testing.T) {
	a := &Adapter{}
	if got := a.DataSourceType(); got != "teable" {
		t.Errorf("DataSourceType() = %q, want \"teable\"", got)
	}
}
