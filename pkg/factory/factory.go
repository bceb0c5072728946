// Package factory - фабрика адаптеров по арендатору.
//
// Фабрика резолвит конфигурацию арендатора из хранилища, расшифровывает
// секреты и строит подключенный адаптер через глобальный реестр
// pkg/adapters. Подключенные адаптеры кешируются по ключу
// "tenantID:tableID" — повторный запрос того же арендатора возвращает
// тот же экземпляр до явного сброса кеша.
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/tenant"
	"github.com/geogismaps/geoadapter/pkg/vault"
)

// defaultTableKey используется в ключе кеша при запросе без явной таблицы
const defaultTableKey = "default"

// TenantFactory - фабрика адаптеров с кешем по арендатору
type TenantFactory struct {
	store tenant.Store
	vault *vault.Vault
	cache Cache
}

// New создает фабрику поверх хранилища арендаторов
func New(store tenant.Store, v *vault.Vault) *TenantFactory {
	return &TenantFactory{
		store: store,
		vault: v,
		cache: NewMemoryCache(),
	}
}

// cacheKey строит ключ кеша; пустой tableID нормализуется
func cacheKey(tenantID, tableID string) string {
	if tableID == "" {
		tableID = defaultTableKey
	}
	return tenantID + ":" + tableID
}

// GetAdapter возвращает подключенный адаптер арендатора.
// tableID переопределяет таблицу по умолчанию (только Teable);
// пустой tableID — источник из конфигурации арендатора.
func (f *TenantFactory) GetAdapter(ctx context.Context, tenantID, tableID string) (adapters.Adapter, error) {
	key := cacheKey(tenantID, tableID)
	if a, ok := f.cache.Get(key); ok {
		return a, nil
	}

	t, err := f.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant %s: %w", tenantID, err)
	}

	var cfg adapters.Config
	switch t.DataSource {
	case adapters.TypeTeable:
		cfg, err = f.teableConfig(ctx, tenantID, tableID)
	case adapters.TypeGSheets:
		cfg, err = f.sheetsConfig(ctx, tenantID)
	default:
		return nil, fmt.Errorf("tenant %s has unsupported data source %q", tenantID, t.DataSource)
	}
	if err != nil {
		return nil, err
	}

	a, err := adapters.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter for tenant %s: %w", cfg.Type, tenantID, err)
	}

	f.cache.Put(key, a)
	return a, nil
}

// teableConfig собирает конфигурацию Teable-адаптера
func (f *TenantFactory) teableConfig(ctx context.Context, tenantID, tableID string) (adapters.Config, error) {
	stored, err := f.store.GetTeableConfig(ctx, tenantID, tableID)
	if err != nil {
		return adapters.Config{}, fmt.Errorf("failed to load teable config: %w", err)
	}
	token, err := f.vault.Decrypt(stored.APITokenEnc)
	if err != nil {
		return adapters.Config{}, fmt.Errorf("failed to decrypt api token: %w", err)
	}
	return adapters.Config{
		Type:     adapters.TypeTeable,
		BaseURL:  stored.BaseURL,
		APIToken: token,
		BaseID:   stored.BaseID,
		TableID:  stored.TableID,
	}, nil
}

// sheetsConfig собирает конфигурацию Sheets-адаптера
func (f *TenantFactory) sheetsConfig(ctx context.Context, tenantID string) (adapters.Config, error) {
	stored, err := f.store.GetSheetsConfig(ctx, tenantID)
	if err != nil {
		return adapters.Config{}, fmt.Errorf("failed to load sheets config: %w", err)
	}
	access, err := f.vault.Decrypt(stored.AccessTokenEnc)
	if err != nil {
		return adapters.Config{}, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	cfg := adapters.Config{
		Type:          adapters.TypeGSheets,
		SpreadsheetID: stored.SpreadsheetID,
		SheetName:     stored.SheetName,
		AccessToken:   access,
		Mapping:       stored.Mapping,
	}
	// Refresh-токена может не быть (ручной access-токен)
	if stored.RefreshTokenEnc != "" {
		refresh, err := f.vault.Decrypt(stored.RefreshTokenEnc)
		if err != nil {
			return adapters.Config{}, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		cfg.RefreshToken = refresh
	}
	return cfg, nil
}

// ClearCache сбрасывает кешированные адаптеры арендатора;
// пустой tenantID сбрасывает весь кеш
func (f *TenantFactory) ClearCache(tenantID string) {
	if tenantID == "" {
		f.cache.InvalidateAll()
		return
	}
	prefix := tenantID + ":"
	for _, key := range f.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			f.cache.Invalidate(key)
		}
	}
}
