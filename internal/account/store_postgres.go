package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kwccc073/vuetify-shop-back/internal/dbx"
)

const uniqueViolation = "23505"

// PostgresStore keeps accounts in the accounts table. Tokens and cart are
// JSONB arrays so their order is preserved exactly.
type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

const selectColumns = `SELECT id, handle, email, password_hash, role, tokens, cart, version, created_at, updated_at FROM accounts`

func (s *PostgresStore) Create(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if a.Tokens == nil {
		a.Tokens = []string{}
	}
	if a.Cart == nil {
		a.Cart = []CartItem{}
	}
	tokensJSON, cartJSON, err := encodeLists(a)
	if err != nil {
		return Account{}, err
	}

	const q = `
INSERT INTO accounts (id, handle, email, password_hash, role, tokens, cart, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
RETURNING version, created_at, updated_at`
	err = s.db.QueryRowContext(ctx, q, a.ID, a.Handle, a.Email, a.PasswordHash, string(a.Role), tokensJSON, cartJSON).
		Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, fmt.Errorf("%w: %s", ErrDuplicate, constraintOf(err))
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}
	return s.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (s *PostgresStore) GetByHandle(ctx context.Context, handle string) (Account, error) {
	return s.getOne(ctx, selectColumns+` WHERE handle = $1`, handle)
}

func (s *PostgresStore) GetByIDWithToken(ctx context.Context, id, token string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}
	return s.getOne(ctx, selectColumns+` WHERE id = $1 AND tokens @> jsonb_build_array($2::text)`, id, token)
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}
	return s.getOne(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) GetMany(ctx context.Context, ids []string) (map[string]Account, error) {
	out := make(map[string]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, a Account) (Account, error) {
	tokensJSON, cartJSON, err := encodeLists(a)
	if err != nil {
		return Account{}, err
	}

	const q = `
UPDATE accounts
SET handle = $2, email = $3, password_hash = $4, role = $5, tokens = $6, cart = $7,
	version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $8
RETURNING version, updated_at`
	err = s.db.QueryRowContext(ctx, q, a.ID, a.Handle, a.Email, a.PasswordHash, string(a.Role), tokensJSON, cartJSON, a.Version).
		Scan(&a.Version, &a.UpdatedAt)
	if err == nil {
		return a, nil
	}
	if isUniqueViolation(err) {
		return Account{}, fmt.Errorf("%w: %s", ErrDuplicate, constraintOf(err))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("update account: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
		return Account{}, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return Account{}, ErrNotFound
	}
	return Account{}, ErrVersionConflict
}

func (s *PostgresStore) getOne(ctx context.Context, q string, args ...any) (Account, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Account{}, fmt.Errorf("query account: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Account{}, fmt.Errorf("query account: %w", err)
		}
		return Account{}, ErrNotFound
	}
	return scanAccount(rows)
}

func scanAccount(rows *sql.Rows) (Account, error) {
	var (
		a          Account
		role       string
		tokensJSON []byte
		cartJSON   []byte
	)
	if err := rows.Scan(&a.ID, &a.Handle, &a.Email, &a.PasswordHash, &role, &tokensJSON, &cartJSON, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Role = Role(role)
	a.Tokens = []string{}
	a.Cart = []CartItem{}
	if len(tokensJSON) > 0 {
		if err := json.Unmarshal(tokensJSON, &a.Tokens); err != nil {
			return Account{}, fmt.Errorf("decode tokens: %w", err)
		}
	}
	if len(cartJSON) > 0 {
		if err := json.Unmarshal(cartJSON, &a.Cart); err != nil {
			return Account{}, fmt.Errorf("decode cart: %w", err)
		}
	}
	return a, nil
}

func encodeLists(a Account) ([]byte, []byte, error) {
	tokens := a.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	cart := a.Cart
	if cart == nil {
		cart = []CartItem{}
	}
	tokensJSON, err := json.Marshal(tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tokens: %w", err)
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return nil, nil, fmt.Errorf("encode cart: %w", err)
	}
	return tokensJSON, cartJSON, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func constraintOf(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint != "" {
		return pqErr.Constraint
	}
	return "unique"
}
