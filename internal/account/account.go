// Package account owns the account record: identity, credentials, the live
// session-token list and the embedded cart.
package account

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrDuplicate       = errors.New("account already registered")
	ErrVersionConflict = errors.New("account was modified concurrently")
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// CartItem is one line of a cart. Quantity is always at least 1 once stored.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Account struct {
	ID           string
	Handle       string
	PasswordHash string
	Email        string
	Role         Role
	Tokens       []string
	Cart         []CartItem
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartQuantity is the sum of all cart line quantities.
func (a Account) CartQuantity() int {
	total := 0
	for _, item := range a.Cart {
		total += item.Quantity
	}
	return total
}

// TokenIndex returns the position of token in the live list, or -1.
func (a Account) TokenIndex(token string) int {
	for i, t := range a.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

func (a Account) CartIndex(productID string) int {
	for i, item := range a.Cart {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Clone returns a copy that shares no slices with a.
func (a Account) Clone() Account {
	out := a
	if a.Tokens != nil {
		out.Tokens = append([]string(nil), a.Tokens...)
	}
	if a.Cart != nil {
		out.Cart = append([]CartItem(nil), a.Cart...)
	}
	return out
}

// Profile is the public view of an account.
type Profile struct {
	Account string `json:"account"`
	Role    Role   `json:"role"`
	Cart    int    `json:"cart"`
}

func (a Account) Profile() Profile {
	return Profile{
		Account: a.Handle,
		Role:    a.Role,
		Cart:    a.CartQuantity(),
	}
}
