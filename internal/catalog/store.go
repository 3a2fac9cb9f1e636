package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists products. Search returns one page of matches and the total
// number of matches for the same filter.
type Store interface {
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Search(ctx context.Context, q SearchQuery) ([]Product, int, error)
}

type MemoryStore struct {
	nowFunc func() time.Time

	mu       sync.RWMutex
	products map[string]Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nowFunc:  time.Now,
		products: make(map[string]Product),
	}
}

func (s *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.nowFunc().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	p, ok := s.products[id]
	s.mu.RUnlock()
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.nowFunc().UTC()
	s.products[p.ID] = p
	return p, nil
}

func (s *MemoryStore) Search(_ context.Context, q SearchQuery) ([]Product, int, error) {
	s.mu.RLock()
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if q.matches(p) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		c := compareBy(q.SortBy, matched[i], matched[j])
		if c == 0 {
			c = compareStrings(matched[i].ID, matched[j].ID)
		}
		if q.descending() {
			return c > 0
		}
		return c < 0
	})

	total := len(matched)
	start := q.Offset()
	if start >= total {
		return []Product{}, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return append([]Product(nil), matched[start:end]...), total, nil
}

func compareBy(field string, a, b Product) int {
	switch field {
	case "name":
		return compareStrings(a.Name, b.Name)
	case "price":
		return a.Price.Cmp(b.Price)
	case "category":
		return compareStrings(a.Category, b.Category)
	case "sell", "onSale":
		return compareBools(a.OnSale, b.OnSale)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
