// Package keys derives the identity of extracted records.
//
// A page-supplied stable marker class is preferred. When the container carries
// no marker, or more than one distinct marker, the composite fallback key
// itemId|title|priceText is used. The fallback changes when the price text
// changes before the marker renders; that produces a second record and is a
// known limitation.
package keys

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tally/internal/extract"
	"github.com/law-makers/tally/pkg/models"
)

// Resolve returns the key for raw extracted from container.
func Resolve(container *goquery.Selection, raw models.RawRecord, markerPrefix string) string {
	if marker, ok := Marker(container, markerPrefix); ok {
		return marker
	}
	return Fallback(raw)
}

// Marker looks for exactly one distinct class beginning with prefix on the
// container or any of its descendants.
func Marker(container *goquery.Selection, prefix string) (string, bool) {
	if prefix == "" || container == nil || container.Length() == 0 {
		return "", false
	}

	found := make(map[string]struct{})
	collect := func(_ int, s *goquery.Selection) {
		class, ok := s.Attr("class")
		if !ok {
			return
		}
		for _, c := range strings.Fields(class) {
			if strings.HasPrefix(c, prefix) && len(c) > len(prefix) {
				found[c] = struct{}{}
			}
		}
	}
	container.Each(collect)
	container.Find("*").Each(collect)

	if len(found) != 1 {
		return "", false
	}
	for c := range found {
		return c, true
	}
	return "", false
}

// Fallback composes the lower-cased itemId|title|priceText key.
func Fallback(raw models.RawRecord) string {
	parts := []string{
		extract.NormalizeText(raw.ItemID),
		extract.NormalizeText(raw.Title),
		extract.NormalizeText(raw.PriceText),
	}
	return strings.ToLower(strings.Join(parts, "|"))
}

// Assign fills the key of every candidate that does not already carry one.
func Assign(cands []extract.Candidate, markerPrefix string) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(cands))
	for _, c := range cands {
		raw := c.Record
		if raw.Key == "" {
			raw.Key = Resolve(c.Container, raw, markerPrefix)
		}
		out = append(out, raw)
	}
	return out
}
