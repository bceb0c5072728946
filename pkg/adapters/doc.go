/*
Package adapters предоставляет универсальный интерфейс для работы с
географическими данными в разных бэкендах.

# Архитектура двухуровневого адаптера

	┌─────────────────────────────────────────┐
	│    Business Logic (API, детекция)       │
	│  - adapters.Feature                     │
	│  - adapters.FeatureCollection           │
	│  - geometry.Geometry                    │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Level 1: Universal Adapter Interface   │  ← pkg/adapters/adapter.go
	│                                          │
	│  type Adapter interface {               │
	│    Connect(ctx, Config) error           │
	│    FetchRecords(ctx, opts) (...)        │
	│    CreateRecord(ctx, feature)           │
	│    ...                                   │
	│  }                                       │
	└─────────────────┬───────────────────────┘
	                  │
	        ┌─────────┴─────────┐
	┌───────▼────────┐ ┌────────▼─────────┐
	│ Teable         │ │ Google Sheets    │  ← Level 2: Specific
	│ Adapter        │ │ Adapter          │     Implementations
	└────────────────┘ └──────────────────┘

# Level 1: Универсальный интерфейс

Level 1 определяет единый API для всех операций с бэкендом:
  - Lifecycle: Connect, Close, TestConnection
  - Records: FetchRecords, GetRecord, CreateRecord, UpdateRecord, DeleteRecord
  - Schema: GetSchema, GetTableList
  - Translation: ToFeatureCollection, FromFeature, NormalizeGeometry
  - Metadata: DataSourceType

# Level 2: Специфичные реализации

  - pkg/adapters/teable  — типизированный table API (Teable)
  - pkg/adapters/gsheets — spreadsheet API (Google Sheets), нетипизированные
    колонки с заголовочной строкой, маппинг полей обязателен

Каждая реализация нормализует идиомы своего бэкенда в общий формат
Feature/FeatureCollection с геометрией в GeoJSON-представлении.

# Использование

Адаптеры регистрируются в глобальной фабрике в init() своих пакетов
и создаются по тегу источника:

	adapter, err := adapters.New(ctx, adapters.Config{
	    Type:     "teable",
	    BaseURL:  "https://app.teable.io",
	    APIToken: token,
	    TableID:  "tblXXXX",
	})

Выбор реализации — только по тегу Type, никогда по структуре конфига.
*/
package adapters
