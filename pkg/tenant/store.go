// Package tenant - хранилище конфигураций арендаторов.
//
// Каждый арендатор привязан к одному типу источника данных и несет
// его конфигурацию подключения. Секреты (API-токены, OAuth-токены)
// хранятся только в зашифрованном виде (pkg/vault); stor-слой их не
// расшифровывает.
package tenant

import (
	"context"
	"errors"

	"github.com/geogismaps/geoadapter/pkg/adapters"
)

// Ошибки хранилища
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrConfigNotFound = errors.New("data source config not found")
)

// Tenant - арендатор платформы
type Tenant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DataSource string `json:"data_source"` // adapters.TypeTeable | adapters.TypeGSheets
}

// TeableConfig - конфигурация подключения к Teable
type TeableConfig struct {
	BaseURL     string `json:"base_url"`
	APITokenEnc string `json:"-"` // зашифрованный API-токен
	BaseID      string `json:"base_id"`
	TableID     string `json:"table_id"`
}

// SheetsConfig - конфигурация подключения к Google Sheets
type SheetsConfig struct {
	SpreadsheetID   string                `json:"spreadsheet_id"`
	SheetName       string                `json:"sheet_name"`
	AccessTokenEnc  string                `json:"-"` // зашифрованный access token
	RefreshTokenEnc string                `json:"-"` // зашифрованный refresh token
	Mapping         adapters.FieldMapping `json:"mapping"`
}

// Store - интерфейс хранилища арендаторов
type Store interface {
	// GetTenant возвращает арендатора; ErrTenantNotFound если его нет
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)

	// GetTeableConfig возвращает конфигурацию Teable-источника.
	// tableID переопределяет таблицу по умолчанию; пустой tableID —
	// таблица из конфигурации.
	GetTeableConfig(ctx context.Context, tenantID, tableID string) (*TeableConfig, error)

	// GetSheetsConfig возвращает конфигурацию Sheets-источника
	GetSheetsConfig(ctx context.Context, tenantID string) (*SheetsConfig, error)

	// SaveFieldMapping сохраняет маппинг колонок Sheets-источника
	SaveFieldMapping(ctx context.Context, tenantID string, m adapters.FieldMapping) error

	// SaveSheetsTokens сохраняет зашифрованную пару OAuth-токенов
	SaveSheetsTokens(ctx context.Context, tenantID, accessTokenEnc, refreshTokenEnc string) error

	// Close освобождает ресурсы хранилища
	Close() error
}
