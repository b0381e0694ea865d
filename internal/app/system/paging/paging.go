// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list response.
// Keep this as an int because most call sites add/subtract and then
// cast to int64 for Find().SetLimit().
const PageSize = 50

// LimitPlusOne returns PageSize+1 as int64 for look-ahead pagination
// (fetch one extra document to detect hasNext).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParsePage extracts the 1-based "page" query parameter.
// Returns 1 if not present or invalid.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Offset is the number of rows to skip to reach page.
func Offset(page int) int64 {
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * PageSize)
}

// Trim cuts a look-ahead fetch of LimitPlusOne rows back to PageSize and
// reports whether another page follows.
func Trim[T any](rows *[]T) (hasNext bool) {
	if len(*rows) > PageSize {
		*rows = (*rows)[:PageSize]
		return true
	}
	return false
}

// Range describes where a page sits in the full result.
type Range struct {
	Page     int `json:"page"`
	Start    int `json:"start"` // 1-based index of the first row (0 if no results)
	End      int `json:"end"`   // 1-based index of the last row (0 if no results)
	PrevPage int `json:"prev_page,omitempty"`
	NextPage int `json:"next_page,omitempty"`
}

// ComputeRange calculates the range of page given the number of rows shown
// and whether more rows follow.
func ComputeRange(page, shown int, hasNext bool) Range {
	if page < 1 {
		page = 1
	}
	rg := Range{Page: page}
	if page > 1 {
		rg.PrevPage = page - 1
	}
	if shown == 0 {
		return rg
	}
	rg.Start = (page-1)*PageSize + 1
	rg.End = rg.Start + shown - 1
	if hasNext {
		rg.NextPage = page + 1
	}
	return rg
}
