package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/geogismaps/geoadapter/pkg/adapters"
)

// Compile-time check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore - хранилище арендаторов в SQLite (dev и тесты)
type SQLiteStore struct {
	db *sql.DB
}

// Схема создается при открытии: файл SQLite может быть пустым
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	data_source TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS teable_configs (
	tenant_id     TEXT PRIMARY KEY REFERENCES tenants(id),
	base_url      TEXT NOT NULL,
	api_token_enc TEXT NOT NULL,
	base_id       TEXT NOT NULL,
	table_id      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sheets_configs (
	tenant_id         TEXT PRIMARY KEY REFERENCES tenants(id),
	spreadsheet_id    TEXT NOT NULL,
	sheet_name        TEXT NOT NULL,
	access_token_enc  TEXT NOT NULL DEFAULT '',
	refresh_token_enc TEXT NOT NULL DEFAULT '',
	mapping           TEXT NOT NULL DEFAULT '{}'
);
`

// NewSQLiteStore открывает базу и создает схему
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close закрывает базу
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB возвращает подключение для сидинга в тестах и dev-утилитах
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// GetTenant возвращает арендатора по идентификатору
func (s *SQLiteStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, data_source FROM tenants WHERE id = ?`,
		tenantID,
	).Scan(&t.ID, &t.Name, &t.DataSource)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return &t, nil
}

// GetTeableConfig возвращает конфигурацию Teable-источника
func (s *SQLiteStore) GetTeableConfig(ctx context.Context, tenantID, tableID string) (*TeableConfig, error) {
	var cfg TeableConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT base_url, api_token_enc, base_id, table_id
		 FROM teable_configs WHERE tenant_id = ?`,
		tenantID,
	).Scan(&cfg.BaseURL, &cfg.APITokenEnc, &cfg.BaseID, &cfg.TableID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query teable config: %w", err)
	}
	if tableID != "" {
		cfg.TableID = tableID
	}
	return &cfg, nil
}

// GetSheetsConfig возвращает конфигурацию Sheets-источника
func (s *SQLiteStore) GetSheetsConfig(ctx context.Context, tenantID string) (*SheetsConfig, error) {
	var cfg SheetsConfig
	var mapping string
	err := s.db.QueryRowContext(ctx,
		`SELECT spreadsheet_id, sheet_name, access_token_enc, refresh_token_enc, mapping
		 FROM sheets_configs WHERE tenant_id = ?`,
		tenantID,
	).Scan(&cfg.SpreadsheetID, &cfg.SheetName, &cfg.AccessTokenEnc, &cfg.RefreshTokenEnc, &mapping)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sheets config: %w", err)
	}
	if err := json.Unmarshal([]byte(mapping), &cfg.Mapping); err != nil {
		return nil, fmt.Errorf("failed to parse field mapping: %w", err)
	}
	return &cfg, nil
}

// SaveFieldMapping сохраняет маппинг колонок Sheets-источника
func (s *SQLiteStore) SaveFieldMapping(ctx context.Context, tenantID string, m adapters.FieldMapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode field mapping: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sheets_configs SET mapping = ? WHERE tenant_id = ?`,
		string(raw), tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to save field mapping: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConfigNotFound
	}
	return nil
}

// SaveSheetsTokens сохраняет зашифрованную пару OAuth-токенов
func (s *SQLiteStore) SaveSheetsTokens(ctx context.Context, tenantID, accessTokenEnc, refreshTokenEnc string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sheets_configs SET access_token_enc = ?, refresh_token_enc = ?
		 WHERE tenant_id = ?`,
		accessTokenEnc, refreshTokenEnc, tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to save sheets tokens: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConfigNotFound
	}
	return nil
}
