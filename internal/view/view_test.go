package view

import (
	"strings"
	"testing"
	"time"

	"github.com/law-makers/tally/pkg/models"
)

func sp(s string) *string    { return &s }
func fp(v float64) *float64 { return &v }

func records() []models.Record {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return []models.Record{
		{Key: "a", Title: "Vintage Watch", PriceText: sp("$25.00"), PriceValue: fp(25), Currency: sp("USD"), ItemID: sp("111"), Status: "Delivered", FirstSeenAt: base},
		{Key: "b", Title: "brass lamp", PriceText: sp("See cart"), Status: "Shipped", FirstSeenAt: base.Add(time.Minute)},
		{Key: "c", Title: "Clock", PriceText: sp("£10.00"), PriceValue: fp(10), Currency: sp("GBP"), Status: "Delivered", FirstSeenAt: base.Add(2 * time.Minute)},
		{Key: "d", Title: "Atlas", PriceText: sp("$5.50"), PriceValue: fp(5.5), Currency: sp("USD"), FirstSeenAt: base.Add(2 * time.Minute)},
	}
}

func keys(v View) string {
	var ks []string
	for _, r := range v.Rows {
		ks = append(ks, r.Key)
	}
	return strings.Join(ks, ",")
}

func TestBuild_SortModes(t *testing.T) {
	tests := []struct {
		sort models.SortMode
		want string
	}{
		{models.SortNewest, "c,d,b,a"},
		{models.SortOldest, "a,b,c,d"},
		{models.SortPriceAsc, "d,c,a,b"},
		{models.SortPriceDesc, "a,c,d,b"},
		{models.SortTitle, "d,b,c,a"},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			v := Build(records(), models.Prefs{Sort: tt.sort})
			if got := keys(v); got != tt.want {
				t.Errorf("Expected order %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	in := records()
	Build(in, models.Prefs{Sort: models.SortTitle})
	if in[0].Key != "a" || in[3].Key != "d" {
		t.Error("Expected input order untouched")
	}
}

func TestBuild_SearchAndStatus(t *testing.T) {
	v := Build(records(), models.Prefs{Query: "  WATCH ", Sort: models.SortNewest})
	if keys(v) != "a" {
		t.Errorf("Expected only 'a', got %s", keys(v))
	}

	v = Build(records(), models.Prefs{Query: "111"})
	if keys(v) != "a" {
		t.Errorf("Expected item id search to match 'a', got %s", keys(v))
	}

	v = Build(records(), models.Prefs{Status: "delivered", Sort: models.SortOldest})
	if keys(v) != "a,c" {
		t.Errorf("Expected delivered records a,c, got %s", keys(v))
	}

	v = Build(records(), models.Prefs{Status: StatusAll})
	if len(v.Rows) != 4 {
		t.Errorf("Expected all records, got %d", len(v.Rows))
	}
}

func TestBuild_TotalsSkipNullPrices(t *testing.T) {
	v := Build(records(), models.Prefs{})
	if v.Totals["USD"] != 30.5 {
		t.Errorf("Expected USD total 30.5, got %v", v.Totals["USD"])
	}
	if v.Totals["GBP"] != 10 {
		t.Errorf("Expected GBP total 10, got %v", v.Totals["GBP"])
	}
	if v.Unpriced != 1 {
		t.Errorf("Expected 1 unpriced record, got %d", v.Unpriced)
	}
	if got := Summary(v); got != "4 of 4 items · GBP 10.00 · USD 30.50 · 1 unpriced" {
		t.Errorf("Unexpected summary %q", got)
	}
}

func TestBuild_EmptyStates(t *testing.T) {
	if v := Build(nil, models.Prefs{}); v.Empty != EmptyNothingCaptured {
		t.Errorf("Expected nothing-captured message, got %q", v.Empty)
	}
	if v := Build(records(), models.Prefs{Query: "zeppelin"}); v.Empty != EmptyNoMatch {
		t.Errorf("Expected no-match message, got %q", v.Empty)
	}
	if v := Build(records(), models.Prefs{}); v.Empty != "" {
		t.Errorf("Expected no empty message, got %q", v.Empty)
	}
}

func TestStatuses(t *testing.T) {
	got := strings.Join(Statuses(records()), ",")
	if got != "Delivered,Shipped" {
		t.Errorf("Expected Delivered,Shipped, got %s", got)
	}
}

func TestRenderHTML_EscapesText(t *testing.T) {
	recs := []models.Record{{Key: "x", Title: `<script>alert(1)</script>`, URL: "https://example.com/itm/1"}}
	out, err := RenderHTML(Build(recs, models.Prefs{}))
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("Expected title to be escaped, got %s", out)
	}
	if !strings.Contains(out, `href="https://example.com/itm/1"`) {
		t.Errorf("Expected link to record URL, got %s", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(Build(records(), models.Prefs{Sort: models.SortOldest}))
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	for _, want := range []string{"Title", "Vintage Watch", "Delivered", "|"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected markdown to contain %q, got:\n%s", want, out)
		}
	}

	out, err = RenderMarkdown(Build(nil, models.Prefs{}))
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if !strings.Contains(out, EmptyNothingCaptured) {
		t.Errorf("Expected empty-state message, got %q", out)
	}
}
