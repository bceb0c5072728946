package tenant

import (
	"context"
	"sync"

	"github.com/geogismaps/geoadapter/pkg/adapters"
)

// Compile-time check
var _ Store = (*MemoryStore)(nil)

// MemoryStore - хранилище в памяти для тестов
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	teable  map[string]*TeableConfig
	sheets  map[string]*SheetsConfig
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*Tenant),
		teable:  make(map[string]*TeableConfig),
		sheets:  make(map[string]*SheetsConfig),
	}
}

// PutTenant добавляет арендатора с его конфигурацией источника
func (s *MemoryStore) PutTenant(t *Tenant, teable *TeableConfig, sheets *SheetsConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	if teable != nil {
		s.teable[t.ID] = teable
	}
	if sheets != nil {
		s.sheets[t.ID] = sheets
	}
}

func (s *MemoryStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetTeableConfig(ctx context.Context, tenantID, tableID string) (*TeableConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.teable[tenantID]
	if !ok {
		return nil, ErrConfigNotFound
	}
	cp := *cfg
	if tableID != "" {
		cp.TableID = tableID
	}
	return &cp, nil
}

func (s *MemoryStore) GetSheetsConfig(ctx context.Context, tenantID string) (*SheetsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.sheets[tenantID]
	if !ok {
		return nil, ErrConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (s *MemoryStore) SaveFieldMapping(ctx context.Context, tenantID string, m adapters.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.sheets[tenantID]
	if !ok {
		return ErrConfigNotFound
	}
	cfg.Mapping = m
	return nil
}

func (s *MemoryStore) SaveSheetsTokens(ctx context.Context, tenantID, accessTokenEnc, refreshTokenEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.sheets[tenantID]
	if !ok {
		return ErrConfigNotFound
	}
	cfg.AccessTokenEnc = accessTokenEnc
	cfg.RefreshTokenEnc = refreshTokenEnc
	return nil
}

// Close реализует Store; ресурсов нет
func (s *MemoryStore) Close() error { return nil }
