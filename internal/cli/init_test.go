package cli

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"despesas/internal/config"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger was not installed as default")
	}

	if SetupLogger("error").Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn enabled at error level")
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("PORT", "8088")

	var seen *config.Config
	cfg := LoadAndValidateConfig(SetupLogger("error"), func(c *config.Config) error {
		seen = c
		return nil
	})
	if cfg != seen || cfg.Port != "8088" || cfg.StorageBackend != "memory" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestOpenStore(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := &config.Config{
		StorageBackend: config.BackendSQLite,
		SQLiteDBPath:   filepath.Join(t.TempDir(), "despesas.db"),
	}
	res := OpenStore(context.Background(), SetupLogger("error"), cfg)
	defer res.Cleanup()

	if err := res.Store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	errA := errors.New("close a")
	errB := errors.New("close b")
	calls := 0
	closer := func(err error) func() error {
		return func() error {
			calls++
			return err
		}
	}

	err := CloseAll(closer(errA), nil, closer(nil), closer(errB))
	if calls != 3 {
		t.Fatalf("expected every closer to run, got %d calls", calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("CloseAll() = %v, want both errors", err)
	}
	if err := CloseAll(); err != nil {
		t.Fatalf("CloseAll() with no closers = %v", err)
	}
}
