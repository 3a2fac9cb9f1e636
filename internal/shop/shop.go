// Package shop mutates carts and turns them into orders.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kwccc073/vuetify-shop-back/internal/account"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/order"
	"github.com/kwccc073/vuetify-shop-back/internal/storage"
)

var (
	ErrProductNotForSale       = errors.New("product is not for sale")
	ErrInvalidQuantity         = errors.New("quantity must be positive for a new cart item")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrContainsUnlistedProduct = errors.New("cart contains an unlisted product")
)

type Service struct {
	storage  storage.Manager
	attempts int
}

func NewService(m storage.Manager) (*Service, error) {
	if m == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &Service{storage: m, attempts: account.DefaultAttempts}, nil
}

// AdjustCart adds delta to the line for productID and returns the new
// aggregate cart quantity. A line that would drop to zero or below is removed.
func (s *Service) AdjustCart(ctx context.Context, acc account.Account, productID string, delta int) (int, error) {
	if err := catalog.ValidateID(productID); err != nil {
		return 0, err
	}
	products := s.storage.Repos().Products

	saved, err := account.Mutate(ctx, s.storage.Repos().Accounts, acc, s.attempts, func(a *account.Account) error {
		if idx := a.CartIndex(productID); idx >= 0 {
			qty := a.Cart[idx].Quantity + delta
			if qty <= 0 {
				a.Cart = append(a.Cart[:idx], a.Cart[idx+1:]...)
			} else {
				a.Cart[idx].Quantity = qty
			}
			return nil
		}

		p, err := products.Get(ctx, productID)
		if err != nil {
			return err
		}
		if !p.OnSale {
			return ErrProductNotForSale
		}
		if delta < 1 {
			return ErrInvalidQuantity
		}
		a.Cart = append(a.Cart, account.CartItem{ProductID: productID, Quantity: delta})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved.CartQuantity(), nil
}

// CartLine is a cart item with its product resolved. Product is nil when the
// product no longer exists.
type CartLine struct {
	Product   *catalog.Product `json:"product"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
}

// Cart returns the stored cart of acc with product details.
func (s *Service) Cart(ctx context.Context, acc account.Account) ([]CartLine, error) {
	repos := s.storage.Repos()
	fresh, err := repos.Accounts.GetByID(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	products, err := repos.Products.GetMany(ctx, productIDs(fresh.Cart))
	if err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}
	lines := make([]CartLine, 0, len(fresh.Cart))
	for _, item := range fresh.Cart {
		lines = append(lines, CartLine{
			Product:   lookup(products, item.ProductID),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return lines, nil
}

// PlaceOrder snapshots the cart into an order and empties the cart in one
// unit of work. The cart is re-read inside the transaction.
func (s *Service) PlaceOrder(ctx context.Context, acc account.Account) (order.Order, error) {
	if len(acc.Cart) == 0 {
		return order.Order{}, ErrEmptyCart
	}

	var (
		placed order.Order
		err    error
	)
	for i := 0; i < s.attempts; i++ {
		placed, err = s.placeOnce(ctx, acc.ID)
		if !errors.Is(err, account.ErrVersionConflict) {
			break
		}
	}
	if err != nil {
		return order.Order{}, err
	}
	return placed, nil
}

func (s *Service) placeOnce(ctx context.Context, accountID string) (order.Order, error) {
	var placed order.Order
	err := s.storage.WithinTx(ctx, func(ctx context.Context, r storage.Repos) error {
		fresh, err := r.Accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		if len(fresh.Cart) == 0 {
			return ErrEmptyCart
		}
		products, err := r.Products.GetMany(ctx, productIDs(fresh.Cart))
		if err != nil {
			return fmt.Errorf("resolve cart products: %w", err)
		}
		for _, item := range fresh.Cart {
			p, ok := products[item.ProductID]
			if !ok || !p.OnSale {
				return ErrContainsUnlistedProduct
			}
		}

		items := make([]order.LineItem, 0, len(fresh.Cart))
		for _, item := range fresh.Cart {
			items = append(items, order.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		cleared := fresh.Clone()
		cleared.Cart = []account.CartItem{}
		if _, err := r.Accounts.Update(ctx, cleared); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		placed, err = r.Orders.Create(ctx, order.Order{AccountID: fresh.ID, Items: items})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	return placed, nil
}

type OrderLine struct {
	Product   *catalog.Product `json:"product"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
}

type Buyer struct {
	ID      string `json:"id"`
	Account string `json:"account"`
}

// OrderView is an order with its products, and for admin listings its
// buyer, resolved.
type OrderView struct {
	ID        string      `json:"id"`
	Buyer     *Buyer      `json:"user,omitempty"`
	AccountID string      `json:"user_id"`
	Items     []OrderLine `json:"cart"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (s *Service) Orders(ctx context.Context, acc account.Account) ([]OrderView, error) {
	orders, err := s.storage.Repos().Orders.ListByAccount(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, orders, false)
}

func (s *Service) AllOrders(ctx context.Context) ([]OrderView, error) {
	orders, err := s.storage.Repos().Orders.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, orders, true)
}

func (s *Service) resolve(ctx context.Context, orders []order.Order, withBuyer bool) ([]OrderView, error) {
	repos := s.storage.Repos()

	seen := make(map[string]struct{})
	var ids []string
	for _, o := range orders {
		for _, item := range o.Items {
			if _, ok := seen[item.ProductID]; !ok {
				seen[item.ProductID] = struct{}{}
				ids = append(ids, item.ProductID)
			}
		}
	}
	products, err := repos.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve order products: %w", err)
	}

	var buyers map[string]account.Account
	if withBuyer {
		accountIDs := make([]string, 0, len(orders))
		for _, o := range orders {
			accountIDs = append(accountIDs, o.AccountID)
		}
		buyers, err = repos.Accounts.GetMany(ctx, accountIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve order accounts: %w", err)
		}
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v := OrderView{ID: o.ID, AccountID: o.AccountID, CreatedAt: o.CreatedAt}
		for _, item := range o.Items {
			v.Items = append(v.Items, OrderLine{
				Product:   lookup(products, item.ProductID),
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}
		if withBuyer {
			if a, ok := buyers[o.AccountID]; ok {
				v.Buyer = &Buyer{ID: a.ID, Account: a.Handle}
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func productIDs(cart []account.CartItem) []string {
	ids := make([]string, 0, len(cart))
	for _, item := range cart {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func lookup(products map[string]catalog.Product, id string) *catalog.Product {
	p, ok := products[id]
	if !ok {
		return nil
	}
	return &p
}
