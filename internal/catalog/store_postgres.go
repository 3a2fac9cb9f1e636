package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

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

const selectColumns = `SELECT id, name, description, price, image, category, on_sale, created_at, updated_at FROM products`

func (s *PostgresStore) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const q = `
INSERT INTO products (id, name, description, price, image, category, on_sale)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`
	if err := s.db.QueryRowContext(ctx, q, p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.OnSale).
		Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Product{}, fmt.Errorf("get product: %w", err)
		}
		return Product{}, ErrNotFound
	}
	return scanProduct(rows)
}

func (s *PostgresStore) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, p Product) (Product, error) {
	const q = `
UPDATE products
SET name = $2,
	description = $3,
	price = $4,
	image = $5,
	category = $6,
	on_sale = $7,
	updated_at = NOW()
WHERE id = $1
RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, q, p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.OnSale).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Search(ctx context.Context, q SearchQuery) ([]Product, int, error) {
	where, args := searchFilter(q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	dir := "ASC"
	if q.descending() {
		dir = "DESC"
	}
	page := fmt.Sprintf("%s%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
		selectColumns, where, q.column(), dir, dir, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, page, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, q.PageSize)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return out, total, nil
}

func searchFilter(q SearchQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !q.IncludeUnlisted {
		conds = append(conds, "on_sale")
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanProduct(rows *sql.Rows) (Product, error) {
	var p Product
	if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &p.OnSale, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}
