// Package storage owns the database handle and hands out repositories, either
// directly or bound to a single transaction.
package storage

import (
	"context"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/order"
)

type Repos struct {
	Accounts account.Store
	Products catalog.Store
	Orders   order.Store
}

// Manager is the explicitly constructed storage handle shared by services.
type Manager interface {
	Repos() Repos
	// WithinTx runs fn with repositories bound to one unit of work. Writes made
	// through them commit together or not at all.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Ready(ctx context.Context) error
	Close() error
}
