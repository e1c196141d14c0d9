package catalog

import (
	"fmt"

	"github.com/erazemk/stocktaker/internal/model"
)

// Picker is a searchable, paginated product chooser.
type Picker struct {
	products []model.Product
	pageSize int
	query    string
	filtered []model.Product
	page     int
}

// NewPicker returns a picker over products. A pageSize below one uses
// DefaultPageSize.
func NewPicker(products []model.Product, pageSize int) *Picker {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Picker{
		products: products,
		pageSize: pageSize,
		filtered: products,
	}
}

// Query returns the current search text.
func (p *Picker) Query() string { return p.query }

// Search filters by name and goes back to the first page.
func (p *Picker) Search(query string) {
	p.query = query
	p.filtered = Filter(p.products, query)
	p.page = 0
}

// Matches returns the number of products matching the current query.
func (p *Picker) Matches() int { return len(p.filtered) }

// PageIndex returns the zero-based current page.
func (p *Picker) PageIndex() int { return p.page }

// TotalPages returns the number of pages, at least one.
func (p *Picker) TotalPages() int {
	n := (len(p.filtered) + p.pageSize - 1) / p.pageSize
	if n == 0 {
		return 1
	}
	return n
}

// Page returns the products on the current page.
func (p *Picker) Page() []model.Product {
	start := p.page * p.pageSize
	if start >= len(p.filtered) {
		return nil
	}
	end := min(start+p.pageSize, len(p.filtered))
	return p.filtered[start:end]
}

// Next moves forward one page. It reports false on the last page.
func (p *Picker) Next() bool {
	if p.page+1 >= p.TotalPages() {
		return false
	}
	p.page++
	return true
}

// Prev moves back one page. It reports false on the first page.
func (p *Picker) Prev() bool {
	if p.page == 0 {
		return false
	}
	p.page--
	return true
}

// Select returns the i-th product of the current page.
func (p *Picker) Select(i int) (model.Product, error) {
	page := p.Page()
	if i < 0 || i >= len(page) {
		return model.Product{}, fmt.Errorf("no product at position %d on this page", i+1)
	}
	return page[i], nil
}
