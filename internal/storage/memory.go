package storage

import (
	"context"
	"sync"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/order"
)

// MemoryManager keeps everything in process. Units of work are serialized
// but not rolled back, so callers order their writes so that the last one
// is the only one that can fail.
type MemoryManager struct {
	txMu  sync.Mutex
	repos Repos
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		repos: Repos{
			Accounts: account.NewMemoryStore(),
			Products: catalog.NewMemoryStore(),
			Orders:   order.NewMemoryStore(),
		},
	}
}

func (m *MemoryManager) Repos() Repos {
	return m.repos
}

func (m *MemoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m.repos)
}

func (m *MemoryManager) Ready(context.Context) error {
	return nil
}

func (m *MemoryManager) Close() error {
	return nil
}
