package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/dbx"
	"github.com/kwccc073/vuetify-shop-back/internal/migrations"
	"github.com/kwccc073/vuetify-shop-back/internal/order"
)

// Open connects to Postgres with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Wait pings db every interval until it answers or timeout elapses.
func Wait(ctx context.Context, db *sql.DB, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

type PostgresManager struct {
	db         *sql.DB
	migrations *migrations.Runner
	repos      Repos
}

func NewPostgresManager(db *sql.DB) (*PostgresManager, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	runner, err := migrations.NewRunner(db)
	if err != nil {
		return nil, err
	}
	repos, err := bindRepos(db)
	if err != nil {
		return nil, err
	}
	return &PostgresManager{db: db, migrations: runner, repos: repos}, nil
}

// Migrate applies pending schema migrations.
func (m *PostgresManager) Migrate(ctx context.Context) ([]string, error) {
	return m.migrations.Up(ctx)
}

func (m *PostgresManager) Repos() Repos {
	return m.repos
}

func (m *PostgresManager) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repos, err := bindRepos(tx)
		if err != nil {
			return err
		}
		return fn(ctx, repos)
	})
}

// Ready fails when the database is unreachable or migrations are pending.
func (m *PostgresManager) Ready(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	pending, err := m.migrations.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("pending migrations: %s", strings.Join(pending, ", "))
	}
	return nil
}

func (m *PostgresManager) Close() error {
	return m.db.Close()
}

func bindRepos(db dbx.DBTX) (Repos, error) {
	accounts, err := account.NewPostgresStore(db)
	if err != nil {
		return Repos{}, fmt.Errorf("create account store: %w", err)
	}
	products, err := catalog.NewPostgresStore(db)
	if err != nil {
		return Repos{}, fmt.Errorf("create product store: %w", err)
	}
	orders, err := order.NewPostgresStore(db)
	if err != nil {
		return Repos{}, fmt.Errorf("create order store: %w", err)
	}
	return Repos{Accounts: accounts, Products: products, Orders: orders}, nil
}
