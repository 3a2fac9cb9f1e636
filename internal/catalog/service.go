package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

var productMessages = validation.Messages{
	"name":              "product name is required",
	"price.required":    "product price is required",
	"price.gte":         "product price must not be negative",
	"price.lte":         "product price is too large",
	"image":             "product image is required",
	"description":       "product description is required",
	"category.required": "product category is required",
	"category.oneof":    "product category is not supported",
	"sell":              "product sale flag is required",
}

type Service struct {
	store     Store
	validator *validation.Validator
}

func NewService(store Store, v *validation.Validator) *Service {
	if v == nil {
		v = validation.New()
	}
	return &Service{store: store, validator: v}
}

// Check validates in without storing anything.
func (s *Service) Check(in ProductInput) error {
	in.normalize()
	if err := s.validator.Struct(in, productMessages); err != nil {
		return err
	}
	return checkPriceScale(in.Price)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.Check(in); err != nil {
		return Product{}, err
	}
	in.normalize()
	return s.store.Create(ctx, Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       *in.Price,
		Image:       in.Image,
		Category:    in.Category,
		OnSale:      *in.OnSale,
	})
}

// CheckEdit reports whether Edit would accept patch for id without applying
// it.
func (s *Service) CheckEdit(ctx context.Context, id string, patch ProductPatch) error {
	_, err := s.prepareEdit(ctx, id, &patch)
	return err
}

// Edit applies a partial update and re-runs validation on the changed fields.
func (s *Service) Edit(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	p, err := s.prepareEdit(ctx, id, &patch)
	if err != nil {
		return Product{}, err
	}
	patch.apply(&p)
	return s.store.Update(ctx, p)
}

func (s *Service) prepareEdit(ctx context.Context, id string, patch *ProductPatch) (Product, error) {
	if err := ValidateID(id); err != nil {
		return Product{}, err
	}
	patch.normalize()
	if err := s.validator.Struct(patch, productMessages); err != nil {
		return Product{}, err
	}
	if err := checkPriceScale(patch.Price); err != nil {
		return Product{}, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if err := ValidateID(id); err != nil {
		return Product{}, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Search(ctx context.Context, q SearchQuery) (Page, error) {
	if err := q.Normalize(); err != nil {
		return Page{}, err
	}
	items, total, err := s.store.Search(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("search catalog: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	return Page{Data: items, Total: total}, nil
}

// ValidateID reports ErrInvalidID unless id is a well-formed UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
