package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"KASIR_DB_PATH", "KASIR_BACKEND", "DATABASE_URL", "HTTP_ADDR", "LOW_STOCK_THRESHOLD", "BACKUP_REMINDER_HOURS", "VERSION_CHECK_TIMEOUT", "ACCESS_TOKEN_TTL_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.DBPath != "kasirgratisan-db.sqlite" {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.HTTPAddr != "127.0.0.1:8787" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("expected low stock threshold 5, got %d", cfg.LowStockThreshold)
	}
	if cfg.BackupReminder != 24*time.Hour {
		t.Fatalf("expected 24h backup reminder, got %s", cfg.BackupReminder)
	}
	if cfg.VersionCheckTimeout != 5*time.Second {
		t.Fatalf("expected 5s version check timeout, got %s", cfg.VersionCheckTimeout)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected 480 minute tokens, got %d", cfg.AccessTokenTTLMinutes)
	}
	if got := cfg.ResolvedBackend(); got != BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOW_STOCK_THRESHOLD", "10")
	t.Setenv("BACKUP_REMINDER_HOURS", "48")
	t.Setenv("VERSION_CHECK_TIMEOUT", "2s")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	if cfg.LowStockThreshold != 10 || cfg.BackupReminder != 48*time.Hour || cfg.VersionCheckTimeout != 2*time.Second || cfg.RedisDB != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("LOW_STOCK_THRESHOLD", "-1")
	t.Setenv("BACKUP_REMINDER_HOURS", "soon")
	t.Setenv("VERSION_CHECK_TIMEOUT", "0s")

	cfg := Load()
	if cfg.LowStockThreshold != 5 || cfg.BackupReminder != 24*time.Hour || cfg.VersionCheckTimeout != 5*time.Second {
		t.Fatalf("invalid values should fall back to defaults: %+v", cfg)
	}
}

func TestResolvedBackend(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit memory", Config{Backend: BackendMemory, DatabaseURL: "postgres://x"}, BackendMemory},
		{"database url", Config{DatabaseURL: "postgres://x"}, BackendPostgres},
		{"unknown falls back", Config{Backend: "mongo"}, BackendSQLite},
		{"default", Config{}, BackendSQLite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.ResolvedBackend(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
