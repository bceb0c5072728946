package base

import (
	"context"
	"errors"
	"testing"

	"github.com/geogismaps/geoadapter/pkg/adapters"
)

// Каждая операция заготовки падает с ErrNotImplemented, не no-op
func TestBaseAdapter_FailsLoudly(t *testing.T) {
	ctx := context.Background()
	a := &Adapter{}

	tests := []struct {
		name string
		call func() error
	}{
		{"Connect", func() error { return a.Connect(ctx, adapters.Config{}) }},
		{"Close", func() error { return a.Close(ctx) }},
		{"FetchRecords", func() error { _, err := a.FetchRecords(ctx, adapters.FetchOptions{}); return err }},
		{"GetRecord", func() error { _, err := a.GetRecord(ctx, "1"); return err }},
		{"CreateRecord", func() error { _, err := a.CreateRecord(ctx, &adapters.Feature{}); return err }},
		{"UpdateRecord", func() error { _, err := a.UpdateRecord(ctx, "1", &adapters.Feature{}); return err }},
		{"DeleteRecord", func() error { _, err := a.DeleteRecord(ctx, "1"); return err }},
		{"GetSchema", func() error { _, err := a.GetSchema(ctx); return err }},
		{"GetTableList", func() error { _, err := a.GetTableList(ctx); return err }},
		{"ToFeatureCollection", func() error { _, err := a.ToFeatureCollection(nil); return err }},
		{"FromFeature", func() error { _, err := a.FromFeature(&adapters.Feature{}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tt.name)
			}
			if !errors.Is(err, ErrNotImplemented) {
				t.Errorf("%s: error = %v, want ErrNotImplemented", tt.name, err)
			}
		})
	}
}

func TestBaseAdapter_TestConnection(t *testing.T) {
	a := &Adapter{}
	status := a.TestConnection(context.Background())
	if status.Success {
		t.Error("TestConnection on base adapter must not succeed")
	}
	if status.Error == "" {
		t.Error("TestConnection must carry an error message")
	}
}

func TestBaseAdapter_NormalizeGeometry(t *testing.T) {
	a := &Adapter{}
	if g := a.NormalizeGeometry("POINT(1 2)"); g == nil {
		t.Error("NormalizeGeometry should parse WKT")
	}
	if g := a.NormalizeGeometry("plain text"); g != nil {
		t.Error("NormalizeGeometry should reject plain text")
	}
}
