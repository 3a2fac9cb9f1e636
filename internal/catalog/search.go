package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps the row offset within 32 bits for any page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// sortColumns whitelists client sort keys and maps them to column names.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"price":     "price",
	"category":  "category",
	"sell":      "on_sale",
	"onSale":    "on_sale",
}

// SearchQuery filters, sorts and pages the catalog. Page is 1-indexed.
type SearchQuery struct {
	Search          string
	SortBy          string
	SortOrder       string
	Page            int
	PageSize        int
	IncludeUnlisted bool
}

type Page struct {
	Data  []Product `json:"data"`
	Total int       `json:"total"`
}

// Normalize fills defaults and rejects unknown sort keys or directions.
func (q *SearchQuery) Normalize() error {
	q.Search = strings.TrimSpace(q.Search)
	if q.SortBy == "" {
		q.SortBy = "createdAt"
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return validation.Field("sortBy", fmt.Sprintf("cannot sort by %q", q.SortBy))
	}
	switch strings.ToLower(q.SortOrder) {
	case "":
		q.SortOrder = "desc"
	case "asc", "1":
		q.SortOrder = "asc"
	case "desc", "-1":
		q.SortOrder = "desc"
	default:
		return validation.Field("sortOrder", fmt.Sprintf("sort order %q must be asc or desc", q.SortOrder))
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return nil
}

func (q SearchQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

func (q SearchQuery) column() string {
	return sortColumns[q.SortBy]
}

func (q SearchQuery) descending() bool {
	return q.SortOrder == "desc"
}

func (q SearchQuery) matches(p Product) bool {
	if !q.IncludeUnlisted && !p.OnSale {
		return false
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle)
}
