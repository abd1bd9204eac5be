package product

import "strings"

// Sort is a catalog ordering mode.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

const (
	DefaultPerPage = 24
	MaxPerPage     = 60
)

// Filter selects and pages catalog listings.
type Filter struct {
	Category        string
	Search          string
	MinPrice        int64
	MaxPrice        int64
	Sort            Sort
	Page            int
	PerPage         int
	IncludeInactive bool
}

// Normalize clamps paging and falls back to newest-first ordering.
func (f Filter) Normalize() Filter {
	f.Category = strings.TrimSpace(f.Category)
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	switch f.Sort {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortName:
	default:
		f.Sort = SortNewest
	}
	if f.MinPrice < 0 {
		f.MinPrice = 0
	}
	if f.MaxPrice < 0 {
		f.MaxPrice = 0
	}
	return f
}

// Offset is the zero-based index of the first row on the page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PerPage
}
