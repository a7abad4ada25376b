// Package listing filters, sorts and paginates fetched collections locally,
// the way dashboards page through a list they fetched once.
package listing

import (
	"sort"
	"strings"

	"github.com/stemsi/exstem-portal/internal/response"
)

// Query describes one page of a list view.
type Query struct {
	Search  string
	SortBy  string
	Desc    bool
	Page    int
	PerPage int
}

// Spec tells Apply how to search and sort T.
type Spec[T any] struct {
	// Text returns the strings a search term is matched against.
	Text func(T) []string
	// Less holds the sortable columns by name.
	Less map[string]func(a, b T) bool
}

// Apply returns the requested page of items and its pagination. items is
// not modified.
func Apply[T any](items []T, q Query, spec Spec[T]) ([]T, *response.Pagination) {
	filtered := make([]T, 0, len(items))
	term := strings.ToLower(strings.TrimSpace(q.Search))
	for _, it := range items {
		if term == "" || spec.Text == nil || matches(spec.Text(it), term) {
			filtered = append(filtered, it)
		}
	}

	if less, ok := spec.Less[q.SortBy]; ok {
		sort.SliceStable(filtered, func(i, j int) bool {
			if q.Desc {
				return less(filtered[j], filtered[i])
			}
			return less(filtered[i], filtered[j])
		})
	}

	p := response.NewPagination(q.Page, q.PerPage, len(filtered))
	start, end := p.Bounds()
	return filtered[start:end], p
}

func matches(fields []string, term string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
