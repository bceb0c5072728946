package adapters

import (
	"context"
	"time"

	"github.com/geogismaps/geoadapter/pkg/geometry"
)

// Теги источников данных
const (
	TypeTeable  = "teable"
	TypeGSheets = "gsheets"
)

// Config - универсальная конфигурация подключения к бэкенду.
// Заполняются поля, относящиеся к выбранному Type; адаптер получает
// копию и никогда не сохраняет её сам.
type Config struct {
	// Type - тип бэкенда: "teable", "gsheets"
	Type string

	// ===== Table API (Teable) =====

	// BaseURL - базовый URL инсталляции, например "https://app.teable.io"
	BaseURL string

	// APIToken - персональный токен доступа
	APIToken string

	// BaseID - идентификатор base (для листинга таблиц)
	BaseID string

	// TableID - идентификатор рабочей таблицы
	TableID string

	// ===== Spreadsheet API (Google Sheets) =====

	// SpreadsheetID - идентификатор книги
	SpreadsheetID string

	// SheetName - отображаемое имя листа
	SheetName string

	// AccessToken - расшифрованный OAuth access token
	AccessToken string

	// RefreshToken - расшифрованный OAuth refresh token
	RefreshToken string

	// Mapping - роли колонок (обязателен для spreadsheet-бэкенда:
	// у таблицы без типов нет другого способа узнать геометрию)
	Mapping FieldMapping

	// Timeout - таймаут HTTP-запросов к бэкенду
	Timeout time.Duration
}

// Adapter - универсальный интерфейс для всех адаптеров источников данных.
// Каждая операция асинхронна (сетевой I/O) и возвращает ошибку явно.
type Adapter interface {
	// ========== Lifecycle ==========

	// Connect инициализирует адаптер конфигурацией
	Connect(ctx context.Context, cfg Config) error

	// Close освобождает ресурсы адаптера
	Close(ctx context.Context) error

	// TestConnection проверяет доступность бэкенда
	TestConnection(ctx context.Context) ConnectionStatus

	// ========== Records ==========

	// FetchRecords возвращает страницу записей в общем формате
	FetchRecords(ctx context.Context, opts FetchOptions) (*FeatureCollection, error)

	// GetRecord возвращает одну запись по каноническому id (nil если нет)
	GetRecord(ctx context.Context, id string) (*Feature, error)

	// CreateRecord создает запись из Feature и возвращает созданное
	CreateRecord(ctx context.Context, f *Feature) (*Feature, error)

	// UpdateRecord обновляет запись по id
	UpdateRecord(ctx context.Context, id string, f *Feature) (*Feature, error)

	// DeleteRecord удаляет запись по id
	DeleteRecord(ctx context.Context, id string) (DeleteResult, error)

	// ========== Schema ==========

	// GetSchema возвращает описание полей рабочей таблицы
	GetSchema(ctx context.Context) ([]FieldDescriptor, error)

	// GetTableList возвращает список таблиц/листов бэкенда
	GetTableList(ctx context.Context) ([]TableDescriptor, error)

	// ========== Translation ==========

	// ToFeatureCollection переводит нативные записи бэкенда в общий формат
	ToFeatureCollection(records []map[string]any) (*FeatureCollection, error)

	// FromFeature переводит Feature в нативный формат бэкенда
	FromFeature(f *Feature) (map[string]any, error)

	// NormalizeGeometry приводит сырое значение бэкенда к геометрии
	// (nil = "нет геометрии", не ошибка)
	NormalizeGeometry(value any) *geometry.Geometry

	// ========== Metadata ==========

	// DataSourceType возвращает тег бэкенда: "teable", "gsheets"
	DataSourceType() string
}
