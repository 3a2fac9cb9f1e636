// Package catalog manages listable products and their paged search.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

var (
	ErrNotFound  = errors.New("product not found")
	ErrInvalidID = errors.New("invalid product id")
)

// PriceScale is the number of decimal places a price may carry.
const PriceScale = 2

const (
	CategoryClothing    = "clothing"
	CategoryAccessories = "accessories"
	CategoryShoes       = "shoes"
	CategoryOther       = "other"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	OnSale      bool            `json:"sell"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductInput is the payload for a new product.
type ProductInput struct {
	Name        string           `json:"name" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required,gte=0,lte=9999999999.99"`
	Image       string           `json:"image" validate:"required"`
	Description string           `json:"description" validate:"required"`
	Category    string           `json:"category" validate:"required,oneof=clothing accessories shoes other"`
	OnSale      *bool            `json:"sell" validate:"required"`
}

// ProductPatch is a partial edit; nil fields are left unchanged.
type ProductPatch struct {
	Name        *string          `json:"name" validate:"omitnil,min=1"`
	Price       *decimal.Decimal `json:"price" validate:"omitnil,gte=0,lte=9999999999.99"`
	Image       *string          `json:"image" validate:"omitnil,min=1"`
	Description *string          `json:"description" validate:"omitnil,min=1"`
	Category    *string          `json:"category" validate:"omitnil,oneof=clothing accessories shoes other"`
	OnSale      *bool            `json:"sell"`
}

func checkPriceScale(price *decimal.Decimal) error {
	if price == nil || price.Equal(price.Truncate(PriceScale)) {
		return nil
	}
	return validation.Field("price", fmt.Sprintf("product price must have at most %d decimal places", PriceScale))
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
}

func (p *ProductPatch) normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(p.Name)
	trim(p.Description)
	trim(p.Image)
	if p.Category != nil {
		c := strings.ToLower(strings.TrimSpace(*p.Category))
		p.Category = &c
	}
}

func (p ProductPatch) apply(dst *Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Image != nil {
		dst.Image = *p.Image
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.OnSale != nil {
		dst.OnSale = *p.OnSale
	}
}
