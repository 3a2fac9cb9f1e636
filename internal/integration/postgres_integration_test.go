package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/auth"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/security"
	"github.com/kwccc073/vuetify-shop-back/internal/shop"
	"github.com/kwccc073/vuetify-shop-back/internal/storage"
	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

func openTestPostgres(t *testing.T) *storage.PostgresManager {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration tests")
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("storage.Open() error: %v", err)
	}
	m, err := storage.NewPostgresManager(db)
	if err != nil {
		_ = db.Close()
		t.Fatalf("NewPostgresManager() error: %v", err)
	}
	t.Cleanup(func() {
		_ = m.Close()
	})
	if _, err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if err := m.Ready(ctx); err != nil {
		t.Fatalf("Ready() error: %v", err)
	}
	return m
}

func uniqueHandle(prefix string) string {
	return fmt.Sprintf("%s%09d", prefix, time.Now().UnixNano()%1_000_000_000)
}

func TestPostgresSessionLifecycle(t *testing.T) {
	m := openTestPostgres(t)
	ctx := context.Background()

	signer, err := security.NewSigner([]byte("integration-secret"), time.Minute)
	if err != nil {
		t.Fatalf("NewSigner() error: %v", err)
	}
	svc, err := auth.NewService(m.Repos().Accounts, security.NewHasher(4), signer, validation.New())
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	handle := uniqueHandle("it")
	if _, err := svc.Register(ctx, account.Registration{Handle: handle, Password: "secret1", Email: handle + "@example.com"}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, err := svc.Register(ctx, account.Registration{Handle: handle, Password: "secret1", Email: "x" + handle + "@example.com"}); !errors.Is(err, account.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	first, err := svc.Login(ctx, auth.Credentials{Handle: handle, Password: "secret1"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	second, err := svc.Login(ctx, auth.Credentials{Handle: handle, Password: "secret1"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	acc, err := svc.Authenticate(ctx, first.Token, false)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	rotated, err := svc.Rotate(ctx, acc, first.Token)
	if err != nil {
		t.Fatalf("Rotate() error: %v", err)
	}
	acc, err = svc.Authenticate(ctx, rotated, false)
	if err != nil {
		t.Fatalf("Authenticate(rotated) error: %v", err)
	}
	if len(acc.Tokens) != 2 || acc.Tokens[0] != rotated {
		t.Fatalf("expected rotated token in place, got %v", acc.Tokens)
	}

	if err := svc.Logout(ctx, acc, rotated); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if _, err := svc.Authenticate(ctx, rotated, false); !errors.Is(err, auth.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession after logout, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, second.Token, false); err != nil {
		t.Fatalf("expected other session to survive logout: %v", err)
	}
}

func TestPostgresOrderPlacement(t *testing.T) {
	m := openTestPostgres(t)
	ctx := context.Background()
	repos := m.Repos()

	handle := uniqueHandle("buyer")
	acc, err := repos.Accounts.Create(ctx, account.Account{Handle: handle, Email: handle + "@example.com", PasswordHash: "x", Role: account.RoleUser})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	p, err := repos.Products.Create(ctx, catalog.Product{
		Name:        "integration " + handle,
		Description: "integration product",
		Price:       decimal.RequireFromString("19.90"),
		Image:       "/media/it.png",
		Category:    catalog.CategoryOther,
		OnSale:      true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	svc, err := shop.NewService(m)
	if err != nil {
		t.Fatalf("shop.NewService() error: %v", err)
	}
	if total, err := svc.AdjustCart(ctx, acc, p.ID, 3); err != nil || total != 3 {
		t.Fatalf("AdjustCart() = %d, %v", total, err)
	}
	acc, err = repos.Accounts.GetByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}

	o, err := svc.PlaceOrder(ctx, acc)
	if err != nil {
		t.Fatalf("PlaceOrder() error: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].ProductID != p.ID || o.Items[0].Quantity != 3 {
		t.Fatalf("unexpected order items: %+v", o.Items)
	}

	acc, err = repos.Accounts.GetByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if len(acc.Cart) != 0 {
		t.Fatalf("expected cart to be cleared, got %+v", acc.Cart)
	}

	views, err := svc.Orders(ctx, acc)
	if err != nil {
		t.Fatalf("Orders() error: %v", err)
	}
	if len(views) != 1 || views[0].Items[0].Product == nil || views[0].Items[0].Product.ID != p.ID {
		t.Fatalf("unexpected order views: %+v", views)
	}

	page, err := catalog.NewService(repos.Products, validation.New()).Search(ctx, catalog.SearchQuery{Search: handle})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if page.Total != 1 || len(page.Data) != 1 || page.Data[0].ID != p.ID {
		t.Fatalf("unexpected search page: %+v", page)
	}
}
