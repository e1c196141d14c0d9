// Package catalog holds read-only helpers over the product list.
package catalog

import (
	"strings"

	"github.com/erazemk/stocktaker/internal/model"
)

// DefaultPageSize is the number of products a Picker shows per page.
const DefaultPageSize = 15

// WithWaste returns a copy of products with the Waste product first. If a
// product with the waste id is already present the copy is returned as-is,
// so calling it repeatedly never yields more than one Waste entry.
func WithWaste(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products)+1)
	if _, ok := Find(products, model.WasteProductID); !ok {
		out = append(out, model.WasteProduct())
	}
	return append(out, products...)
}

// WithoutWaste returns a copy of products with the Waste product removed.
func WithoutWaste(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if !p.IsWaste() {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the product with the given id.
func Find(products []model.Product, id int64) (model.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// Index maps product ids to products.
func Index(products []model.Product) map[int64]model.Product {
	m := make(map[int64]model.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

// Filter returns products whose name contains query, ignoring case.
// An empty query matches everything.
func Filter(products []model.Product, query string) []model.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products
	}
	var out []model.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), query) {
			out = append(out, p)
		}
	}
	return out
}
