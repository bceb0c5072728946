package adapters

import (
	"context"
	"fmt"
	"sync"
)

// AdapterConstructor - функция-конструктор адаптера
// Возвращает новый экземпляр адаптера (еще не подключенный к бэкенду)
type AdapterConstructor func() Adapter

// Registry - реестр конструкторов адаптеров по тегу источника
type Registry struct {
	constructors map[string]AdapterConstructor
	mu           sync.RWMutex
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]AdapterConstructor),
	}
}

// Register регистрирует конструктор адаптера для тега источника
// dsType должен быть одним из: "teable", "gsheets"
func (r *Registry) Register(dsType string, constructor AdapterConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[dsType] = constructor
}

// IsRegistered проверяет, зарегистрирован ли адаптер для тега
func (r *Registry) IsRegistered(dsType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[dsType]
	return ok
}

// RegisteredTypes возвращает список зарегистрированных тегов
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for dsType := range r.constructors {
		types = append(types, dsType)
	}
	return types
}

// Create создает и подключает адаптер по конфигурации.
// Выбор реализации — строго по тегу cfg.Type.
func (r *Registry) Create(ctx context.Context, cfg Config) (Adapter, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[cfg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown data source type: %s (available types: %v)",
			cfg.Type, r.RegisteredTypes())
	}

	adapter := constructor()
	if err := adapter.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return adapter, nil
}

// ========== Global Registry ==========

var globalRegistry = NewRegistry()

// Register регистрирует адаптер в глобальном реестре.
// Обычно вызывается в init() пакетов конкретных адаптеров:
//
//	func init() {
//	    adapters.Register("teable", func() adapters.Adapter {
//	        return &Adapter{}
//	    })
//	}
func Register(dsType string, constructor AdapterConstructor) {
	globalRegistry.Register(dsType, constructor)
}

// IsRegistered проверяет регистрацию в глобальном реестре
func IsRegistered(dsType string) bool {
	return globalRegistry.IsRegistered(dsType)
}

// New создает и подключает адаптер через глобальный реестр
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return globalRegistry.Create(ctx, cfg)
}
