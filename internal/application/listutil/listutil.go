// Package listutil parses directory-style list requests (?q=&sort=&dir=&page=&per_page=)
// and slices result sets into pages.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
)

// DefaultPerPage applies when per_page is missing or not one of PerPageOptions.
const DefaultPerPage = 20

// PerPageOptions are the page sizes a client may ask for.
var PerPageOptions = []int{10, 20, 50, 100, 200}

// Spec names what one list endpoint accepts. Anything else in the query is ignored.
type Spec struct {
	SortColumns []string
	FilterKeys  []string
}

// Query is a parsed list request.
type Query struct {
	Search  string
	Filters map[string]string
	Sort    string // "" means the list's natural order
	Desc    bool
	Page    int // 1-based
	PerPage int
}

// Parse reads q, dropping anything s does not name.
// POST: Sort is "" or one of SortColumns; Filters holds only FilterKeys; Page >= 1
func (s Spec) Parse(q url.Values) Query {
	out := Query{
		Search:  q.Get("q"),
		Filters: make(map[string]string, len(s.FilterKeys)),
		Desc:    q.Get("dir") == "desc",
		Page:    1,
		PerPage: DefaultPerPage,
	}
	if col := q.Get("sort"); slices.Contains(s.SortColumns, col) {
		out.Sort = col
	}
	for _, key := range s.FilterKeys {
		if v := q.Get(key); v != "" {
			out.Filters[key] = v
		}
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 1 {
		out.Page = n
	}
	if n, err := strconv.Atoi(q.Get("per_page")); err == nil && slices.Contains(PerPageOptions, n) {
		out.PerPage = n
	}
	return out
}

// PageInfo describes the page returned next to the rows.
type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate cuts the requested page out of rows.
// POST: a page past the end is clamped to the last page; TotalPages >= 1
func Paginate[T any](rows []T, q Query) ([]T, PageInfo) {
	per := q.PerPage
	if per < 1 {
		per = DefaultPerPage
	}
	pages := max(1, (len(rows)+per-1)/per)
	page := min(max(q.Page, 1), pages)

	start := min((page-1)*per, len(rows))
	end := min(start+per, len(rows))
	return rows[start:end], PageInfo{Page: page, PerPage: per, Total: len(rows), TotalPages: pages}
}
