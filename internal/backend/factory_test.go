package backend

import (
	"context"
	"path/filepath"
	"testing"

	"despesas/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr bool
	}{
		{"nil config", nil, "", true},
		{"sqlite", &config.Config{StorageBackend: "sqlite", SQLiteDBPath: "x.db"}, SQLiteBackend, false},
		{"memory", &config.Config{StorageBackend: "memory"}, MemoryBackend, false},
		{"mongo without uri", &config.Config{StorageBackend: "mongo", MongoDatabase: "despesas"}, "", true},
		{"unknown", &config.Config{StorageBackend: "sheets"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Type != tt.want {
				t.Errorf("FromAppConfig() type = %q, want %q", got.Type, tt.want)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "despesas.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			if err := res.Store.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
			if has, err := res.Store.HasAnyExpense(ctx, "nobody"); err != nil || has {
				t.Errorf("HasAnyExpense() = %v, %v", has, err)
			}
			if err := res.Cleanup(); err != nil {
				t.Errorf("Cleanup() error = %v", err)
			}
		})
	}

	if _, err := f.CreateBackend(ctx, Config{Type: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
