package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geogismaps/geoadapter/pkg/adapters"
)

// Compile-time check
var _ Store = (*PostgresStore)(nil)

// PostgresStore - хранилище арендаторов в PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore открывает пул соединений и проверяет доступность базы
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetTenant возвращает арендатора по идентификатору
func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, data_source FROM tenants WHERE id = $1`,
		tenantID,
	).Scan(&t.ID, &t.Name, &t.DataSource)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant: %w", err)
	}
	return &t, nil
}

// GetTeableConfig возвращает конфигурацию Teable-источника
func (s *PostgresStore) GetTeableConfig(ctx context.Context, tenantID, tableID string) (*TeableConfig, error) {
	var cfg TeableConfig
	err := s.pool.QueryRow(ctx,
		`SELECT base_url, api_token_enc, base_id, table_id
		 FROM teable_configs WHERE tenant_id = $1`,
		tenantID,
	).Scan(&cfg.BaseURL, &cfg.APITokenEnc, &cfg.BaseID, &cfg.TableID)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) GetSheetsConfig(ctx context.Context, tenantID string) (*SheetsConfig, error) {
	var cfg SheetsConfig
	err := s.pool.QueryRow(ctx,
		`SELECT spreadsheet_id, sheet_name, access_token_enc, refresh_token_enc, mapping
		 FROM sheets_configs WHERE tenant_id = $1`,
		tenantID,
	).Scan(&cfg.SpreadsheetID, &cfg.SheetName, &cfg.AccessTokenEnc, &cfg.RefreshTokenEnc, &cfg.Mapping)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sheets config: %w", err)
	}
	return &cfg, nil
}

// SaveFieldMapping сохраняет маппинг колонок Sheets-источника
func (s *PostgresStore) SaveFieldMapping(ctx context.Context, tenantID string, m adapters.FieldMapping) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sheets_configs SET mapping = $2 WHERE tenant_id = $1`,
		tenantID, m,
	)
	if err != nil {
		return fmt.Errorf("failed to save field mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	return nil
}

// SaveSheetsTokens сохраняет зашифрованную пару OAuth-токенов
func (s *PostgresStore) SaveSheetsTokens(ctx context.Context, tenantID, accessTokenEnc, refreshTokenEnc string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sheets_configs SET access_token_enc = $2, refresh_token_enc = $3
		 WHERE tenant_id = $1`,
		tenantID, accessTokenEnc, refreshTokenEnc,
	)
	if err != nil {
		return fmt.Errorf("failed to save sheets tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	return nil
}
