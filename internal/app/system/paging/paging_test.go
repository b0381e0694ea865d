package paging

import (
	"net/http/httptest"
	"testing"
)

func TestLimitPlusOne(t *testing.T) {
	want := int64(PageSize + 1)
	got := LimitPlusOne()
	if got != want {
		t.Errorf("LimitPlusOne() = %d, want %d", got, want)
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"page=3", 3},
		{"page=0", 1},
		{"page=-2", 1},
		{"page=abc", 1},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/admin/audit?"+tt.query, nil)
		if got := ParsePage(r); got != tt.want {
			t.Errorf("ParsePage(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(1); got != 0 {
		t.Errorf("Offset(1) = %d, want 0", got)
	}
	if got := Offset(3); got != int64(2*PageSize) {
		t.Errorf("Offset(3) = %d, want %d", got, 2*PageSize)
	}
	if got := Offset(0); got != 0 {
		t.Errorf("Offset(0) = %d, want 0", got)
	}
}

func TestTrim(t *testing.T) {
	rows := make([]int, PageSize+1)
	if !Trim(&rows) {
		t.Error("expected hasNext for a look-ahead row")
	}
	if len(rows) != PageSize {
		t.Errorf("len = %d, want %d", len(rows), PageSize)
	}

	short := []int{1, 2, 3}
	if Trim(&short) {
		t.Error("expected no next page")
	}
	if len(short) != 3 {
		t.Errorf("len = %d, want 3", len(short))
	}
}

func TestComputeRange(t *testing.T) {
	tests := []struct {
		name    string
		page    int
		shown   int
		hasNext bool
		want    Range
	}{
		{"empty", 1, 0, false, Range{Page: 1}},
		{"first full page", 1, PageSize, true, Range{Page: 1, Start: 1, End: PageSize, NextPage: 2}},
		{"last partial page", 3, 7, false, Range{Page: 3, Start: 2*PageSize + 1, End: 2*PageSize + 7, PrevPage: 2}},
		{"past the end", 4, 0, false, Range{Page: 4, PrevPage: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeRange(tt.page, tt.shown, tt.hasNext); got != tt.want {
				t.Errorf("ComputeRange = %+v, want %+v", got, tt.want)
			}
		})
	}
}
