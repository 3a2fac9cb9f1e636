package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kwccc073/vuetify-shop-back/internal/dbx"
)

type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, o Order) (Order, error) {
	if len(o.Items) == 0 {
		return Order{}, ErrEmpty
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode order items: %w", err)
	}

	const q = `INSERT INTO orders (id, account_id, items) VALUES ($1, $2, $3) RETURNING created_at`
	if err := s.db.QueryRowContext(ctx, q, o.ID, o.AccountID, itemsJSON).Scan(&o.CreatedAt); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string) ([]Order, error) {
	const q = `SELECT id, account_id, items, created_at FROM orders WHERE account_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return scanOrders(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Order, error) {
	const q = `SELECT id, account_id, items, created_at FROM orders ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]Order, error) {
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		var (
			o         Order
			itemsJSON []byte
		)
		if err := rows.Scan(&o.ID, &o.AccountID, &itemsJSON, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}
