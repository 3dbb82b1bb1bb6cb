// internal/extract/chain.go
package extract

import "github.com/PuerkitoBio/goquery"

// Chain is an ordered list of selector strategies, most specific first.
// Adding a tier is appending one selector.
type Chain []string

// Find returns the matches of the first tier that yields any element under root.
// An empty selection is returned when no tier matches.
func (c Chain) Find(root *goquery.Selection) *goquery.Selection {
	for _, sel := range c {
		if sel == "" {
			continue
		}
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return root.Slice(0, 0)
}

// Closest walks up from s (inclusive) using each tier in turn and returns the
// first ancestor found.
func (c Chain) Closest(s *goquery.Selection) (*goquery.Selection, bool) {
	for _, sel := range c {
		if sel == "" {
			continue
		}
		if found := s.Closest(sel); found.Length() > 0 {
			return found.First(), true
		}
	}
	return nil, false
}

// Text returns the normalized text of the first non-empty match under root.
func (c Chain) Text(root *goquery.Selection) string {
	for _, sel := range c {
		if sel == "" {
			continue
		}
		var text string
		root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text = NormalizeText(s.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}
