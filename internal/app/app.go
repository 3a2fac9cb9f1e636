package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/shopspring/decimal"

	"github.com/kwccc073/vuetify-shop-back/internal/audit"
	"github.com/kwccc073/vuetify-shop-back/internal/auth"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/config"
	"github.com/kwccc073/vuetify-shop-back/internal/httpserver"
	"github.com/kwccc073/vuetify-shop-back/internal/media"
	"github.com/kwccc073/vuetify-shop-back/internal/observability"
	"github.com/kwccc073/vuetify-shop-back/internal/security"
	"github.com/kwccc073/vuetify-shop-back/internal/shop"
	"github.com/kwccc073/vuetify-shop-back/internal/storage"
	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

const serviceName = "vuetify-shop-back"

type App struct {
	cfg         config.Config
	log         *slog.Logger
	storage     storage.Manager
	server      *httpserver.Server
	stopTracing func(context.Context) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	a := &App{cfg: cfg, log: logger}
	if err := a.init(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		a.log.Warn("AUTH_JWT_SECRET not set, using the built-in development secret")
	}

	if cfg.TracingEnabled {
		stop, err := observability.SetupTracing(serviceName, os.Stdout)
		if err != nil {
			return err
		}
		a.stopTracing = stop
	}

	m, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	a.storage = m

	signer, err := security.NewSigner([]byte(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("create token signer: %w", err)
	}
	v := validation.New()
	repos := m.Repos()

	authService, err := auth.NewService(repos.Accounts, security.NewHasher(cfg.Auth.BcryptCost), signer, v)
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}
	created, err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword, cfg.Auth.BootstrapEmail)
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	if created {
		a.log.Info("bootstrap admin created", "account", cfg.Auth.BootstrapUsername)
	}

	shopService, err := shop.NewService(m)
	if err != nil {
		return fmt.Errorf("create shop service: %w", err)
	}

	images, mediaDir, err := a.openMedia(ctx)
	if err != nil {
		return err
	}

	a.server = httpserver.New(cfg.HTTP, cfg.RateLimit, httpserver.Deps{
		Auth:         authService,
		Catalog:      catalog.NewService(repos.Products, v),
		Shop:         shopService,
		Media:        images,
		Audit:        audit.NewLogger(cfg.AuditLogFile),
		Readiness:    m,
		Logger:       a.log,
		MediaDir:     mediaDir,
		MediaBaseURL: cfg.Media.BaseURL,
	})
	return nil
}

// openStorage uses Postgres when DATABASE_URL is set and applies pending
// migrations; otherwise data lives in memory for the life of the process.
func (a *App) openStorage(ctx context.Context) (storage.Manager, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("DATABASE_URL not set, using in-memory storage")
		return storage.NewMemoryManager(), nil
	}
	db, err := storage.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	m, err := storage.NewPostgresManager(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	applied, err := m.Migrate(ctx)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	for _, name := range applied {
		a.log.Info("migration applied", "name", name)
	}
	return m, nil
}

// openMedia returns the image store and, for local storage, the directory to
// serve.
func (a *App) openMedia(ctx context.Context) (media.Store, string, error) {
	mc := a.cfg.Media
	if mc.S3.Bucket != "" {
		s3Store, err := media.NewS3Store(ctx, media.S3Config{
			Bucket:    mc.S3.Bucket,
			Region:    mc.S3.Region,
			Endpoint:  mc.S3.Endpoint,
			AccessKey: mc.S3.AccessKey,
			SecretKey: mc.S3.SecretKey,
			PublicURL: mc.S3.PublicURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create s3 image store: %w", err)
		}
		return s3Store, "", nil
	}
	local, err := media.NewLocalStore(mc.Dir, mc.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create local image store: %w", err)
	}
	return local, local.Dir(), nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close(context.Background())

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}

func (a *App) close(ctx context.Context) {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.log.Warn("close storage", "error", err)
		}
	}
	if a.stopTracing != nil {
		if err := a.stopTracing(ctx); err != nil {
			a.log.Warn("stop tracing", "error", err)
		}
	}
}
