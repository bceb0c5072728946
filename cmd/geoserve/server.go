package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/factory"
	"github.com/geogismaps/geoadapter/pkg/oauth"
	"github.com/geogismaps/geoadapter/pkg/tenant"
	"github.com/geogismaps/geoadapter/pkg/vault"
)

// tenantHeader несет идентификатор арендатора в каждом API-запросе
const tenantHeader = "X-Tenant-ID"

// ─────────────────────────────────────────────────────────────────────────────
// Server
// ─────────────────────────────────────────────────────────────────────────────

// AdapterProvider — интерфейс фабрики адаптеров (подменяется в тестах)
type AdapterProvider interface {
	GetAdapter(ctx context.Context, tenantID, tableID string) (adapters.Adapter, error)
	ClearCache(tenantID string)
}

// Server — HTTP сервер geoserve
type Server struct {
	cfg      *ServeConfig
	provider AdapterProvider

	// OAuth-поток; nil если oauth не сконфигурирован
	oauthClient *oauth.Client
	states      oauth.StateStore
	refresher   *oauth.Refresher

	startedAt time.Time
}

func runServer(cfg *ServeConfig) error {
	ctx := context.Background()

	v, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		return err
	}

	var store tenant.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = tenant.NewPostgresStore(ctx, cfg.Database.DSN)
	case "sqlite":
		store, err = tenant.NewSQLiteStore(ctx, cfg.Database.DSN)
	}
	if err != nil {
		return fmt.Errorf("tenant store: %w", err)
	}
	defer store.Close()

	srv := &Server{
		cfg:       cfg,
		provider:  factory.New(store, v),
		startedAt: time.Now(),
	}

	if cfg.OAuth != nil {
		client, err := oauth.NewClient(*cfg.OAuth)
		if err != nil {
			return err
		}
		srv.oauthClient = client
		srv.refresher = oauth.NewRefresher(client, store, v)

		if cfg.Redis.Addr != "" {
			states, err := oauth.NewRedisStateStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return fmt.Errorf("oauth state store: %w", err)
			}
			defer states.Close()
			srv.states = states
		} else {
			srv.states = oauth.NewMemoryStateStore()
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("%s ready → http://localhost%s", cfg.Server.Name, addr)
	log.Printf("  tenant store: %s, oauth: %v", cfg.Database.Driver, cfg.OAuth != nil)

	return http.ListenAndServe(addr, srv.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/records/", s.handleRecord)
	mux.HandleFunc("/api/schema", s.handleSchema)
	mux.HandleFunc("/api/tables", s.handleTables)
	mux.HandleFunc("/api/health", s.handleHealth)
	if s.oauthClient != nil {
		mux.HandleFunc("/api/oauth/authorize", s.handleOAuthAuthorize)
		mux.HandleFunc("/api/oauth/callback", s.handleOAuthCallback)
	}
	return mux
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecords(w, r)
	case http.MethodPost:
		s.createRecord(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	a, ok := s.adapterFor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	fc, err := a.FetchRecords(r.Context(), adapters.FetchOptions{
		Limit:  limit,
		Offset: offset,
		Filter: q.Get("filter"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	a, ok := s.adapterFor(w, r)
	if !ok {
		return
	}

	var f adapters.Feature
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid feature: "+err.Error())
		return
	}

	created, err := a.CreateRecord(r.Context(), &f)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "record id is required")
		return
	}

	a, ok := s.adapterFor(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		f, err := a.GetRecord(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if f == nil {
			writeError(w, http.StatusNotFound, "record not found: "+id)
			return
		}
		writeJSON(w, http.StatusOK, f)

	case http.MethodPut:
		var f adapters.Feature
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			writeError(w, http.StatusBadRequest, "invalid feature: "+err.Error())
			return
		}
		updated, err := a.UpdateRecord(r.Context(), id, &f)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		res, err := a.DeleteRecord(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a, ok := s.adapterFor(w, r)
	if !ok {
		return
	}
	fields, err := a.GetSchema(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":     fields,
		"dataSource": a.DataSourceType(),
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a, ok := s.adapterFor(w, r)
	if !ok {
		return
	}
	tables, err := a.GetTableList(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":     tables,
		"dataSource": a.DataSourceType(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"name":   s.cfg.Server.Name,
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// OAuth flow
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		tenantID = r.URL.Query().Get("tenant")
	}
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, tenantHeader+" header is required")
		return
	}

	state, err := vault.GenerateToken(16)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.states.Save(r.Context(), state, tenantID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, s.oauthClient.AuthURL(state), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "state and code are required")
		return
	}

	tenantID, err := s.states.Consume(r.Context(), state)
	if err != nil {
		if errors.Is(err, oauth.ErrStateNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tok, err := s.oauthClient.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.refresher.StoreExchangedToken(r.Context(), tenantID, tok); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Кешированный адаптер держит старый access-токен
	s.provider.ClearCache(tenantID)

	log.Printf("oauth: tenant %s connected google sheets", tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "connected", "tenant": tenantID})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// adapterFor резолвит адаптер арендатора из запроса; при ошибке пишет
// ответ и возвращает ok=false
func (s *Server) adapterFor(w http.ResponseWriter, r *http.Request) (adapters.Adapter, bool) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, tenantHeader+" header is required")
		return nil, false
	}

	a, err := s.provider.GetAdapter(r.Context(), tenantID, r.URL.Query().Get("table"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tenant.ErrTenantNotFound) || errors.Is(err, tenant.ErrConfigNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return nil, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
