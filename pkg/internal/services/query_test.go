package services

import (
	"testing"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
)

func rec(id int, tags ...string) booru.Record {
	return booru.Record{PostID: id, Tags: tags}
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery([]string{"landscape", "rating:s", "width:>1000", "height:<600", "ratio:16:9", "pool:42", "limit:50", "site:konachan", "landscape"})
	if err != nil {
		t.Fatalf("ParseQuery() error: %v", err)
	}

	if len(q.Tags) != 1 || q.Tags[0] != "landscape" {
		t.Errorf("Tags = %v, want deduplicated [landscape]", q.Tags)
	}
	if q.Rating != "s" {
		t.Errorf("Rating = %q, want s", q.Rating)
	}
	if q.Width == nil || q.Width.Op != CompareGreater || q.Width.Value != 1000 {
		t.Errorf("Width = %+v, want >1000", q.Width)
	}
	if q.Height == nil || q.Height.Op != CompareLess || q.Height.Value != 600 {
		t.Errorf("Height = %+v, want <600", q.Height)
	}
	if q.Ratio == nil || q.Ratio.Width != 16 || q.Ratio.Height != 9 {
		t.Errorf("Ratio = %+v, want 16:9", q.Ratio)
	}
	if q.Pool != 42 || q.Limit != 50 || q.Site != "konachan" {
		t.Errorf("Pool/Limit/Site = %d/%d/%q", q.Pool, q.Limit, q.Site)
	}
}

func TestParseQueryInvalidTerms(t *testing.T) {
	for _, term := range []string{"width:abc", "ratio:16", "ratio:x:y", "pool:z", "limit:many"} {
		if _, err := ParseQuery([]string{term}); err == nil {
			t.Errorf("ParseQuery(%q) expected an error", term)
		}
	}
}

func TestBlacklistWhitelistOverride(t *testing.T) {
	post := rec(1, "A", "B")

	kept := Query{Blacklist: []string{"A"}, Whitelist: []string{"B"}}.Apply([]booru.Record{post})
	if len(kept) != 1 {
		t.Error("post with a whitelisted tag must survive the blacklist")
	}

	dropped := Query{Blacklist: []string{"A"}}.Apply([]booru.Record{post})
	if len(dropped) != 0 {
		t.Error("post with a blacklisted tag and no whitelist must be dropped")
	}
}

func TestApplyAttributeFilters(t *testing.T) {
	posts := []booru.Record{
		{PostID: 3, Tags: []string{"a"}, Width: 1920, Height: 1080, Rating: "s"},
		{PostID: 2, Tags: []string{"a"}, Width: 800, Height: 600, Rating: "q"},
		{PostID: 1, Tags: []string{"a"}, Width: 640, Height: 480, Rating: "s"},
	}

	tests := []struct {
		name string
		q    Query
		want []int
	}{
		{"rating", Query{Rating: "s"}, []int{3, 1}},
		{"width greater", Query{Width: &DimensionFilter{Op: CompareGreater, Value: 700}}, []int{3, 2}},
		{"width equal", Query{Width: &DimensionFilter{Op: CompareEqual, Value: 800}}, []int{2}},
		{"height less", Query{Height: &DimensionFilter{Op: CompareLess, Value: 600}}, []int{1}},
		{"ratio exact", Query{Ratio: &RatioFilter{Width: 16, Height: 9}}, []int{3}},
		{"ratio four three", Query{Ratio: &RatioFilter{Width: 4, Height: 3}}, []int{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.Apply(posts)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d posts, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].PostID != id {
					t.Errorf("post %d = id %d, want %d (order must be preserved)", i, got[i].PostID, id)
				}
			}
		})
	}
}
