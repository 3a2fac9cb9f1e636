package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTP: config.HTTPConfig{
			Addr:            "127.0.0.1:0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret",
			SessionTTL:        time.Hour,
			BcryptCost:        4,
			BootstrapUsername: "admin",
			BootstrapPassword: "admin123",
			BootstrapEmail:    "admin@example.com",
		},
		RateLimit:    config.RateLimitConfig{Requests: 10, Window: time.Minute},
		Media:        config.MediaConfig{Dir: filepath.Join(dir, "media"), BaseURL: "/media"},
		AuditLogFile: filepath.Join(dir, "audit.log"),
		LogLevel:     "error",
	}
}

func TestNewBootstrapsAdminInMemory(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.close(context.Background())

	acc, err := a.storage.Repos().Accounts.GetByHandle(context.Background(), "admin")
	if err != nil {
		t.Fatalf("expected bootstrap admin, got %v", err)
	}
	if acc.Role != account.RoleAdmin {
		t.Fatalf("expected ADMIN role, got %q", acc.Role)
	}
}

func TestNewRejectsInvalidBootstrapAccount(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Auth.BootstrapUsername = "a!"

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for invalid bootstrap account")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}

func TestNewWritesPricesAsNumbers(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.close(context.Background())

	b, err := json.Marshal(catalog.Product{Price: decimal.RequireFromString("12.5")})
	if err != nil {
		t.Fatalf("marshal product: %v", err)
	}
	if !strings.Contains(string(b), `"price":12.5`) {
		t.Fatalf("expected numeric price, got %s", b)
	}
}
