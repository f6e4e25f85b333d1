package listutil

import (
	"net/url"
	"testing"
)

var directory = Spec{SortColumns: []string{"name", "email", "lastActive"}, FilterKeys: []string{"plan", "status"}}

// TestSpec_Parse tests defaults, allow-lists and paging bounds.
func TestSpec_Parse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		sort    string
		desc    bool
		page    int
		perPage int
	}{
		{"defaults", "", "", false, 1, DefaultPerPage},
		{"valid", "sort=lastActive&dir=desc&page=3&per_page=50", "lastActive", true, 3, 50},
		{"column not allowed", "sort=password_hash", "", false, 1, DefaultPerPage},
		{"dir garbage is ascending", "sort=name&dir=DROP+TABLE", "name", false, 1, DefaultPerPage},
		{"per_page not offered", "per_page=25", "", false, 1, DefaultPerPage},
		{"negative page", "page=-1", "", false, 1, DefaultPerPage},
		{"garbage numbers", "page=two&per_page=all", "", false, 1, DefaultPerPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.raw)
			got := directory.Parse(q)
			if got.Sort != tt.sort || got.Desc != tt.desc || got.Page != tt.page || got.PerPage != tt.perPage {
				t.Errorf("Parse(%q) = %+v", tt.raw, got)
			}
		})
	}
}

// TestSpec_ParseFilters tests search and filter extraction.
func TestSpec_ParseFilters(t *testing.T) {
	got := directory.Parse(url.Values{"q": {"sam"}, "plan": {"p1"}, "unknown": {"x"}})
	if got.Search != "sam" || got.Filters["plan"] != "p1" {
		t.Errorf("Parse = %+v", got)
	}
	if _, ok := got.Filters["unknown"]; ok {
		t.Error("unexpected filter key 'unknown'")
	}
	if _, ok := got.Filters["status"]; ok {
		t.Error("absent filters must not be set")
	}
}

// TestPaginate tests page windows and clamping.
func TestPaginate(t *testing.T) {
	rows := make([]int, 85)
	for i := range rows {
		rows[i] = i
	}
	tests := []struct {
		name      string
		rows      []int
		page      int
		perPage   int
		wantPages int
		wantPage  int
		wantFirst int
		wantLen   int
	}{
		{"basic", rows, 1, 20, 5, 1, 0, 20},
		{"page2", rows, 2, 20, 5, 2, 20, 20},
		{"lastPage", rows, 5, 20, 5, 5, 80, 5},
		{"pageBeyondTotal", rows, 10, 20, 5, 5, 80, 5},
		{"emptyList", nil, 1, 20, 1, 1, -1, 0},
		{"exactFit", rows[:10], 1, 10, 1, 1, 0, 10},
		{"zeroPerPage", rows[:30], 1, 0, 2, 1, 0, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, info := Paginate(tt.rows, Query{Page: tt.page, PerPage: tt.perPage})
			if info.TotalPages != tt.wantPages || info.Page != tt.wantPage || info.Total != len(tt.rows) {
				t.Errorf("info = %+v", info)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0] != tt.wantFirst {
				t.Errorf("first row = %d, want %d", got[0], tt.wantFirst)
			}
		})
	}
}
