// Package order stores immutable order records snapshotted from a cart.
package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrEmpty = errors.New("order must contain at least one item")

type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID        string     `json:"id"`
	AccountID string     `json:"user_id"`
	Items     []LineItem `json:"cart"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Store has no update path; orders never change once created.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	ListByAccount(ctx context.Context, accountID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
}

type MemoryStore struct {
	nowFunc func() time.Time

	mu     sync.RWMutex
	orders []Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nowFunc: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, o Order) (Order, error) {
	if len(o.Items) == 0 {
		return Order{}, ErrEmpty
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = s.nowFunc().UTC()
	o.Items = append([]LineItem(nil), o.Items...)

	s.mu.Lock()
	s.orders = append(s.orders, o)
	s.mu.Unlock()
	return clone(o), nil
}

func (s *MemoryStore) ListByAccount(_ context.Context, accountID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0)
	for _, o := range s.orders {
		if o.AccountID == accountID {
			out = append(out, clone(o))
		}
	}
	return sorted(out), nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, clone(o))
	}
	return sorted(out), nil
}

func clone(o Order) Order {
	o.Items = append([]LineItem(nil), o.Items...)
	return o
}

func sorted(orders []Order) []Order {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders
}
