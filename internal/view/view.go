// Package view derives the filtered, sorted presentation of a record collection.
// It never mutates the records it is given.
package view

import (
	"math"
	"sort"
	"strings"

	"github.com/law-makers/tally/internal/extract"
	"github.com/law-makers/tally/pkg/models"
)

// Empty-state messages
const (
	EmptyNothingCaptured = "No items captured yet."
	EmptyNoMatch         = "No items match the current filter."
)

// StatusAll disables the status filter
const StatusAll = "all"

// View is the derived list shown to the user
type View struct {
	Rows     []models.Record
	Total    int
	Totals   map[string]float64
	Unpriced int
	Statuses []string
	Empty    string
}

// Build applies prefs to records
func Build(records []models.Record, prefs models.Prefs) View {
	v := View{
		Total:    len(records),
		Totals:   make(map[string]float64),
		Statuses: Statuses(records),
	}

	query := strings.ToLower(extract.NormalizeText(prefs.Query))
	status := strings.TrimSpace(prefs.Status)
	for _, r := range records {
		if status != "" && !strings.EqualFold(status, StatusAll) && !strings.EqualFold(r.Status, status) {
			continue
		}
		if query != "" && !strings.Contains(haystack(r), query) {
			continue
		}
		v.Rows = append(v.Rows, r)
	}

	sortRows(v.Rows, prefs.Sort)

	for _, r := range v.Rows {
		if r.PriceValue == nil || math.IsNaN(*r.PriceValue) {
			v.Unpriced++
			continue
		}
		currency := ""
		if r.Currency != nil {
			currency = *r.Currency
		}
		v.Totals[currency] += *r.PriceValue
	}

	switch {
	case v.Total == 0:
		v.Empty = EmptyNothingCaptured
	case len(v.Rows) == 0:
		v.Empty = EmptyNoMatch
	}
	return v
}

func haystack(r models.Record) string {
	parts := []string{r.Title, r.Status, r.Variant, r.Serial}
	for _, p := range []*string{r.ItemID, r.PriceText} {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	return strings.ToLower(extract.NormalizeText(strings.Join(parts, " ")))
}

func sortRows(rows []models.Record, mode models.SortMode) {
	var less func(a, b models.Record) bool
	switch mode {
	case models.SortOldest:
		less = func(a, b models.Record) bool { return a.FirstSeenAt.Before(b.FirstSeenAt) }
	case models.SortPriceAsc:
		less = func(a, b models.Record) bool { return comparePrice(a, b, false) }
	case models.SortPriceDesc:
		less = func(a, b models.Record) bool { return comparePrice(a, b, true) }
	case models.SortTitle:
		less = func(a, b models.Record) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		less = func(a, b models.Record) bool { return a.FirstSeenAt.After(b.FirstSeenAt) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

// comparePrice orders by value; records without a value sort last either way
func comparePrice(a, b models.Record, desc bool) bool {
	av, bv := a.PriceValue, b.PriceValue
	switch {
	case av == nil && bv == nil:
		return false
	case av == nil:
		return false
	case bv == nil:
		return true
	case desc:
		return *av > *bv
	default:
		return *av < *bv
	}
}

// Statuses lists the distinct non-empty statuses in first-seen order
func Statuses(records []models.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r.Status == "" || seen[r.Status] {
			continue
		}
		seen[r.Status] = true
		out = append(out, r.Status)
	}
	return out
}
