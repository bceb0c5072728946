// Package base — заготовка адаптера источника данных.
//
// Каждая операция по умолчанию громко падает с ErrNotImplemented:
// нереализованный метод никогда не должен превращаться в тихий no-op.
// Конкретные адаптеры встраивают Adapter и переопределяют весь контракт;
// общая нормализация геометрии живет здесь.
package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/geogismaps/geoadapter/pkg/adapters"
	"github.com/geogismaps/geoadapter/pkg/geometry"
)

// ErrNotImplemented - операция не реализована адаптером
var ErrNotImplemented = errors.New("not implemented")

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Adapter - базовая (нереализованная) версия всех операций контракта
type Adapter struct{}

func notImplemented(op string) error {
	return fmt.Errorf("%s: %w", op, ErrNotImplemented)
}

func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	return notImplemented("Connect")
}

func (a *Adapter) Close(ctx context.Context) error {
	return notImplemented("Close")
}

func (a *Adapter) TestConnection(ctx context.Context) adapters.ConnectionStatus {
	return adapters.ConnectionStatus{Success: false, Error: notImplemented("TestConnection").Error()}
}

func (a *Adapter) FetchRecords(ctx context.Context, opts adapters.FetchOptions) (*adapters.FeatureCollection, error) {
	return nil, notImplemented("FetchRecords")
}

func (a *Adapter) GetRecord(ctx context.Context, id string) (*adapters.Feature, error) {
	return nil, notImplemented("GetRecord")
}

func (a *Adapter) CreateRecord(ctx context.Context, f *adapters.Feature) (*adapters.Feature, error) {
	return nil, notImplemented("CreateRecord")
}

func (a *Adapter) UpdateRecord(ctx context.Context, id string, f *adapters.Feature) (*adapters.Feature, error) {
	return nil, notImplemented("UpdateRecord")
}

func (a *Adapter) DeleteRecord(ctx context.Context, id string) (adapters.DeleteResult, error) {
	return adapters.DeleteResult{}, notImplemented("DeleteRecord")
}

func (a *Adapter) GetSchema(ctx context.Context) ([]adapters.FieldDescriptor, error) {
	return nil, notImplemented("GetSchema")
}

func (a *Adapter) GetTableList(ctx context.Context) ([]adapters.TableDescriptor, error) {
	return nil, notImplemented("GetTableList")
}

func (a *Adapter) ToFeatureCollection(records []map[string]any) (*adapters.FeatureCollection, error) {
	return nil, notImplemented("ToFeatureCollection")
}

func (a *Adapter) FromFeature(f *adapters.Feature) (map[string]any, error) {
	return nil, notImplemented("FromFeature")
}

// NormalizeGeometry - общая нормализация без знания маппинга колонок.
// Конкретные адаптеры либо используют её, либо уточняют своей версией.
func (a *Adapter) NormalizeGeometry(value any) *geometry.Geometry {
	return geometry.AutoDetect(value, "", "", nil)
}

func (a *Adapter) DataSourceType() string {
	return "unknown"
}
