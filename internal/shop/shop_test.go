package shop

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/storage"
)

type env struct {
	m   *storage.MemoryManager
	svc *Service
	acc account.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m := storage.NewMemoryManager()
	svc, err := NewService(m)
	require.NoError(t, err)
	acc, err := m.Repos().Accounts.Create(context.Background(), account.Account{Handle: "alice1", Email: "alice@example.com"})
	require.NoError(t, err)
	return &env{m: m, svc: svc, acc: acc}
}

func (e *env) product(t *testing.T, name string, onSale bool) catalog.Product {
	t.Helper()
	p, err := e.m.Repos().Products.Create(context.Background(), catalog.Product{
		Name:        name,
		Description: name,
		Price:       decimal.NewFromInt(10),
		Image:       "x.png",
		Category:    catalog.CategoryOther,
		OnSale:      onSale,
	})
	require.NoError(t, err)
	return p
}

func (e *env) setSale(t *testing.T, p catalog.Product, onSale bool) {
	t.Helper()
	p.OnSale = onSale
	_, err := e.m.Repos().Products.Update(context.Background(), p)
	require.NoError(t, err)
}

func (e *env) current(t *testing.T) account.Account {
	t.Helper()
	acc, err := e.m.Repos().Accounts.GetByID(context.Background(), e.acc.ID)
	require.NoError(t, err)
	return acc
}

func (e *env) adjust(t *testing.T, productID string, delta int) int {
	t.Helper()
	total, err := e.svc.AdjustCart(context.Background(), e.current(t), productID, delta)
	require.NoError(t, err)
	return total
}

func TestAdjustCartAddsNewItem(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "hat", true)

	total := e.adjust(t, p.ID, 3)
	assert.Equal(t, 3, total)
	assert.Equal(t, []account.CartItem{{ProductID: p.ID, Quantity: 3}}, e.current(t).Cart)
}

func TestAdjustCartDelistedLeavesCartUnchanged(t *testing.T) {
	e := newEnv(t)
	listed := e.product(t, "hat", true)
	delisted := e.product(t, "scarf", false)
	e.adjust(t, listed.ID, 1)

	_, err := e.svc.AdjustCart(context.Background(), e.current(t), delisted.ID, 1)
	assert.ErrorIs(t, err, ErrProductNotForSale)
	assert.Equal(t, []account.CartItem{{ProductID: listed.ID, Quantity: 1}}, e.current(t).Cart)
}

func TestAdjustCartErrors(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "hat", true)
	ctx := context.Background()

	_, err := e.svc.AdjustCart(ctx, e.current(t), "not-an-id", 1)
	assert.ErrorIs(t, err, catalog.ErrInvalidID)

	_, err = e.svc.AdjustCart(ctx, e.current(t), uuid.NewString(), 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = e.svc.AdjustCart(ctx, e.current(t), p.ID, -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = e.svc.AdjustCart(ctx, e.current(t), p.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, e.current(t).Cart)
}

func TestAdjustCartExistingItem(t *testing.T) {
	e := newEnv(t)
	a := e.product(t, "hat", true)
	b := e.product(t, "shoe", true)
	e.adjust(t, a.ID, 2)
	e.adjust(t, b.ID, 1)

	assert.Equal(t, 7, e.adjust(t, a.ID, 4))
	assert.Equal(t, []account.CartItem{{ProductID: a.ID, Quantity: 6}, {ProductID: b.ID, Quantity: 1}}, e.current(t).Cart)

	assert.Equal(t, 1, e.adjust(t, a.ID, -6))
	assert.Equal(t, []account.CartItem{{ProductID: b.ID, Quantity: 1}}, e.current(t).Cart)

	assert.Equal(t, 0, e.adjust(t, b.ID, -10))
	assert.Empty(t, e.current(t).Cart)
}

func TestAdjustCartExistingItemIgnoresSaleFlag(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "hat", true)
	e.adjust(t, p.ID, 1)
	e.setSale(t, p, false)

	assert.Equal(t, 2, e.adjust(t, p.ID, 1))
}

type racingAccounts struct {
	account.Store
	race func()
}

func (r *racingAccounts) Update(ctx context.Context, a account.Account) (account.Account, error) {
	if r.race != nil {
		race := r.race
		r.race = nil
		race()
	}
	return r.Store.Update(ctx, a)
}

type racingManager struct {
	*storage.MemoryManager
	accounts *racingAccounts
}

func (m *racingManager) Repos() storage.Repos {
	r := m.MemoryManager.Repos()
	r.Accounts = m.accounts
	return r
}

func TestAdjustCartRetriesOnConcurrentEdit(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "hat", true)
	e.adjust(t, p.ID, 1)

	mem := e.m.Repos().Accounts
	rm := &racingManager{MemoryManager: e.m, accounts: &racingAccounts{Store: mem}}
	svc, err := NewService(rm)
	require.NoError(t, err)

	stale := e.current(t)
	rm.accounts.race = func() {
		// A second request lands between our read and our write.
		_, err := svc.AdjustCart(context.Background(), e.current(t), p.ID, 5)
		require.NoError(t, err)
	}

	total, err := svc.AdjustCart(context.Background(), stale, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	assert.Equal(t, 8, e.current(t).CartQuantity())
}

func TestCartResolvesProducts(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "hat", true)
	e.adjust(t, p.ID, 2)

	lines, err := e.svc.Cart(context.Background(), e.current(t))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "hat", lines[0].Product.Name)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.PlaceOrder(context.Background(), e.current(t))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderWithDelistedProduct(t *testing.T) {
	e := newEnv(t)
	a := e.product(t, "hat", true)
	b := e.product(t, "shoe", true)
	e.adjust(t, a.ID, 1)
	e.adjust(t, b.ID, 2)
	e.setSale(t, b, false)

	_, err := e.svc.PlaceOrder(context.Background(), e.current(t))
	assert.ErrorIs(t, err, ErrContainsUnlistedProduct)
	assert.Len(t, e.current(t).Cart, 2)

	orders, err := e.m.Repos().Orders.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrderSnapshotsAndClears(t *testing.T) {
	e := newEnv(t)
	a := e.product(t, "hat", true)
	b := e.product(t, "shoe", true)
	e.adjust(t, a.ID, 1)
	e.adjust(t, b.ID, 2)
	before := e.current(t).Cart

	o, err := e.svc.PlaceOrder(context.Background(), e.current(t))
	require.NoError(t, err)
	assert.Empty(t, e.current(t).Cart)
	require.Len(t, o.Items, len(before))
	for i, item := range before {
		assert.Equal(t, item.ProductID, o.Items[i].ProductID)
		assert.Equal(t, item.Quantity, o.Items[i].Quantity)
	}
	assert.Equal(t, e.acc.ID, o.AccountID)
}

func TestPlaceOrderUsesStoredCart(t *testing.T) {
	e := newEnv(t)
	p := e.product(t, "hat", true)
	e.adjust(t, p.ID, 1)
	stale := e.current(t)
	e.adjust(t, p.ID, 4)

	o, err := e.svc.PlaceOrder(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, 5, o.Items[0].Quantity)
}

func TestOrderListings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.product(t, "hat", true)

	bob, err := e.m.Repos().Accounts.Create(ctx, account.Account{Handle: "bobby1", Email: "bob@example.com"})
	require.NoError(t, err)
	_, err = e.svc.AdjustCart(ctx, bob, p.ID, 1)
	require.NoError(t, err)
	bob, err = e.m.Repos().Accounts.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	_, err = e.svc.PlaceOrder(ctx, bob)
	require.NoError(t, err)

	e.adjust(t, p.ID, 2)
	_, err = e.svc.PlaceOrder(ctx, e.current(t))
	require.NoError(t, err)

	own, err := e.svc.Orders(ctx, e.current(t))
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Nil(t, own[0].Buyer)
	require.NotNil(t, own[0].Items[0].Product)
	assert.Equal(t, "hat", own[0].Items[0].Product.Name)
	assert.Equal(t, 2, own[0].Items[0].Quantity)

	all, err := e.svc.AllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	handles := []string{all[0].Buyer.Account, all[1].Buyer.Account}
	assert.ElementsMatch(t, []string{"alice1", "bobby1"}, handles)
}
