package feed

import (
	"strings"

	"golang.org/x/text/cases"

	"lostfound/pkg/item"
)

// Filter keeps the items whose category contains query, ignoring case.
// An empty query keeps everything. Items without a category never match a
// non-empty query. The result never shares its backing array with items.
func Filter(items []*item.Item, query string) []*item.Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return clone(items)
	}

	fold := cases.Fold()
	needle := fold.String(query)

	res := make([]*item.Item, 0, len(items))
	for _, it := range items {
		if it.Category == "" {
			continue
		}
		if strings.Contains(fold.String(it.Category), needle) {
			res = append(res, it)
		}
	}
	return res
}

func clone(items []*item.Item) []*item.Item {
	res := make([]*item.Item, len(items))
	copy(res, items)
	return res
}
