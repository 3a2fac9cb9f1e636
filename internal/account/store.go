package account

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists accounts. Update applies an optimistic version check: the
// stored version must equal a.Version, and the returned account carries the
// incremented version.
type Store interface {
	Create(ctx context.Context, a Account) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	GetByHandle(ctx context.Context, handle string) (Account, error)
	GetByIDWithToken(ctx context.Context, id, token string) (Account, error)
	GetForUpdate(ctx context.Context, id string) (Account, error)
	GetMany(ctx context.Context, ids []string) (map[string]Account, error)
	Update(ctx context.Context, a Account) (Account, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
	handles  map[string]string
	emails   map[string]string
	nowFunc  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]Account),
		handles:  make(map[string]string),
		emails:   make(map[string]string),
		nowFunc:  time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, a Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[a.Handle]; ok {
		return Account{}, ErrDuplicate
	}
	if _, ok := s.emails[a.Email]; ok {
		return Account{}, ErrDuplicate
	}
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
	now := s.nowFunc().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1

	a = a.Clone()
	s.accounts[a.ID] = a
	s.handles[a.Handle] = a.ID
	s.emails[a.Email] = a.ID
	return a.Clone(), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) GetByHandle(_ context.Context, handle string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.handles[handle]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *MemoryStore) GetByIDWithToken(ctx context.Context, id, token string) (Account, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if a.TokenIndex(token) < 0 {
		return Account{}, ErrNotFound
	}
	return a, nil
}

// GetForUpdate is GetByID; callers serialize through the storage manager.
func (s *MemoryStore) GetForUpdate(ctx context.Context, id string) (Account, error) {
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out[id] = a.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, a Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.accounts[a.ID]
	if !ok {
		return Account{}, ErrNotFound
	}
	if cur.Version != a.Version {
		return Account{}, ErrVersionConflict
	}
	if owner, ok := s.handles[a.Handle]; ok && owner != a.ID {
		return Account{}, ErrDuplicate
	}
	if owner, ok := s.emails[a.Email]; ok && owner != a.ID {
		return Account{}, ErrDuplicate
	}

	delete(s.handles, cur.Handle)
	delete(s.emails, cur.Email)
	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = s.nowFunc().UTC()
	a.Version = cur.Version + 1

	a = a.Clone()
	s.accounts[a.ID] = a
	s.handles[a.Handle] = a.ID
	s.emails[a.Email] = a.ID
	return a.Clone(), nil
}
