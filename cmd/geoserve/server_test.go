package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/adapters/base"
	"github.com/geogismaps/geoadapter/pkg/geometry"
	"github.com/geogismaps/geoadapter/pkg/oauth"
	"github.com/geogismaps/geoadapter/pkg/tenant"
	"github.com/geogismaps/geoadapter/pkg/vault"
)

// fakeAdapter отдает фиксированный набор записей
type fakeAdapter struct {
	base.Adapter
	features map[string]*adapters.Feature
	order    []string
}

func newFakeAdapter() *fakeAdapter {
	f := &fakeAdapter{features: map[string]*adapters.Feature{}}
	f.put(&adapters.Feature{
		ID:         "r1",
		Geometry:   geometry.NewPoint(37.62, 55.75),
		Properties: map[string]any{"name": "Office"},
	})
	return f
}

func (f *fakeAdapter) put(feat *adapters.Feature) {
	if _, ok := f.features[feat.ID]; !ok {
		f.order = append(f.order, feat.ID)
	}
	f.features[feat.ID] = feat
}

func (f *fakeAdapter) FetchRecords(ctx context.Context, opts adapters.FetchOptions) (*adapters.FeatureCollection, error) {
	feats := make([]*adapters.Feature, 0, len(f.order))
	for _, id := range f.order {
		feats = append(feats, f.features[id])
	}
	return &adapters.FeatureCollection{
		Features:   feats,
		Total:      len(feats),
		DataSource: "fake",
	}, nil
}

func (f *fakeAdapter) GetRecord(ctx context.Context, id string) (*adapters.Feature, error) {
	return f.features[id], nil
}

func (f *fakeAdapter) CreateRecord(ctx context.Context, feat *adapters.Feature) (*adapters.Feature, error) {
	if feat.ID == "" {
		feat.ID = "new-1"
	}
	f.put(feat)
	return feat, nil
}

func (f *fakeAdapter) DeleteRecord(ctx context.Context, id string) (adapters.DeleteResult, error) {
	delete(f.features, id)
	return adapters.DeleteResult{Success: true, ID: id}, nil
}

func (f *fakeAdapter) GetSchema(ctx context.Context) ([]adapters.FieldDescriptor, error) {
	return []adapters.FieldDescriptor{{Name: "name", Type: "text"}}, nil
}

func (f *fakeAdapter) DataSourceType() string { return "fake" }

// fakeProvider раздает адаптеры по арендатору
type fakeProvider struct {
	adapters map[string]adapters.Adapter
	cleared  []string
}

func (p *fakeProvider) GetAdapter(ctx context.Context, tenantID, tableID string) (adapters.Adapter, error) {
	a, ok := p.adapters[tenantID]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return a, nil
}

func (p *fakeProvider) ClearCache(tenantID string) {
	p.cleared = append(p.cleared, tenantID)
}

func newTestServer(t *testing.T) (*Server, *fakeAdapter, *fakeProvider) {
	t.Helper()
	fa := newFakeAdapter()
	fp := &fakeProvider{adapters: map[string]adapters.Adapter{"tenant-a": fa}}
	srv := &Server{
		cfg:      &ServeConfig{Server: ServerSection{Name: "test"}},
		provider: fp,
	}
	return srv, fa, fp
}

func doRequest(t *testing.T, srv *Server, method, path, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *strings.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	} else {
		reqBody = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reqBody)
	if tenantID != "" {
		req.Header.Set(tenantHeader, tenantID)
	}
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func TestListRecords(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/records", "tenant-a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry *geometry.Geometry `json:"geometry"`
		} `json:"features"`
		DataSource string `json:"dataSource"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	// На проводе GeoJSON
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 || fc.Features[0].Type != "Feature" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if fc.DataSource != "fake" {
		t.Errorf("dataSource = %q", fc.DataSource)
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/records", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing header: status = %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/records", "unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tenant: status = %d", w.Code)
	}
}

func TestCreateRecord(t *testing.T) {
	srv, fa, _ := newTestServer(t)

	body := `{"type":"Feature","geometry":{"type":"Point","coordinates":[30.31,59.94]},"properties":{"name":"Depot"}}`
	w := doRequest(t, srv, http.MethodPost, "/api/records", "tenant-a", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	created, ok := fa.features["new-1"]
	if !ok {
		t.Fatal("record not created")
	}
	if created.Geometry == nil || created.Geometry.Point[0] != 30.31 {
		t.Errorf("geometry lost: %+v", created.Geometry)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/records", "tenant-a", "{broken")
	if w.Code != http.StatusBadRequest {
		t.Errorf("broken body: status = %d", w.Code)
	}
}

func TestGetAndDeleteRecord(t *testing.T) {
	srv, fa, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/records/r1", "tenant-a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/records/missing", "tenant-a", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing record: status = %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/records/r1", "tenant-a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	if _, ok := fa.features["r1"]; ok {
		t.Error("record not deleted")
	}
}

func TestSchemaAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/schema", "tenant-a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"dataSource":"fake"`) {
		t.Errorf("schema body: %s", w.Body.String())
	}

	w = doRequest(t, srv, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health body: %s", w.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPatch, "/api/records", "tenant-a", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", w.Code)
	}
	w = doRequest(t, srv, http.MethodPost, "/api/schema", "tenant-a", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("schema post: status = %d", w.Code)
	}
}

func TestOAuthFlow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(oauth.Token{
			AccessToken:  "ya29.exchanged",
			RefreshToken: "1//refresh",
			ExpiresIn:    3599,
		})
	}))
	defer tokenSrv.Close()

	v, err := vault.New("server-secret")
	if err != nil {
		t.Fatalf("vault.New failed: %v", err)
	}
	store := tenant.NewMemoryStore()
	store.PutTenant(
		&tenant.Tenant{ID: "tenant-a", DataSource: adapters.TypeGSheets},
		nil,
		&tenant.SheetsConfig{SpreadsheetID: "sp-1", SheetName: "Points"},
	)

	client, err := oauth.NewClient(oauth.Config{
		ClientID:      "c",
		ClientSecret:  "s",
		RedirectURI:   "http://localhost/api/oauth/callback",
		TokenEndpoint: tokenSrv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	fp := &fakeProvider{adapters: map[string]adapters.Adapter{}}
	srv := &Server{
		cfg:         &ServeConfig{Server: ServerSection{Name: "test"}},
		provider:    fp,
		oauthClient: client,
		states:      oauth.NewMemoryStateStore(),
		refresher:   oauth.NewRefresher(client, store, v),
	}

	// Authorize → redirect со state
	w := doRequest(t, srv, http.MethodGet, "/api/oauth/authorize", "tenant-a", "")
	if w.Code != http.StatusFound {
		t.Fatalf("authorize: status = %d", w.Code)
	}
	loc := w.Header().Get("Location")
	stateIdx := strings.Index(loc, "state=")
	if stateIdx < 0 {
		t.Fatalf("no state in redirect: %s", loc)
	}
	state := loc[stateIdx+len("state="):]
	if amp := strings.IndexByte(state, '&'); amp >= 0 {
		state = state[:amp]
	}

	// Callback → обмен кода, сохранение токенов, сброс кеша
	w = doRequest(t, srv, http.MethodGet, "/api/oauth/callback?state="+state+"&code=auth-code", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("callback: status = %d, body %s", w.Code, w.Body.String())
	}

	cfg, err := store.GetSheetsConfig(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("GetSheetsConfig failed: %v", err)
	}
	got, err := v.Decrypt(cfg.AccessTokenEnc)
	if err != nil || got != "ya29.exchanged" {
		t.Errorf("stored access token: %v %q", err, got)
	}
	if len(fp.cleared) != 1 || fp.cleared[0] != "tenant-a" {
		t.Errorf("cache not cleared: %v", fp.cleared)
	}

	// Повторный callback с тем же state — одноразовость
	w = doRequest(t, srv, http.MethodGet, "/api/oauth/callback?state="+state+"&code=auth-code", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("reused state: status = %d", w.Code)
	}
}
