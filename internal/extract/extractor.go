// internal/extract/extractor.go
package extract

import (
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	urlutil "github.com/law-makers/tally/internal/utils/url"
)

// Candidate is one extracted row together with the card container it came from
type Candidate struct {
	Container *goquery.Selection
	Record    models.RawRecord
}

// Extractor turns a page DOM into raw records using a tool profile.
// It holds no state between calls; every Extract re-derives all candidates.
type Extractor struct {
	anchors    Chain
	containers Chain
	titles     Chain
	prices     Chain
	serials    Chain
	variants   Chain
	statuses   Chain
	itemID     *regexp.Regexp
	baseURL    string
}

// New builds an Extractor for the given profile. Only a malformed item id
// pattern is an error; selector problems surface as empty results.
func New(p models.Profile) (*Extractor, error) {
	e := &Extractor{
		anchors:    Chain(p.Anchors),
		containers: Chain(p.Containers),
		titles:     Chain(p.Titles),
		prices:     Chain(p.Prices),
		serials:    Chain(p.Serials),
		variants:   Chain(p.Variants),
		statuses:   Chain(p.Statuses),
	}
	if p.ItemIDPattern != "" {
		re, err := regexp.Compile(p.ItemIDPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid item id pattern %q: %w", p.ItemIDPattern, err)
		}
		e.itemID = re
	}
	return e, nil
}

// SetBaseURL makes extracted hrefs absolute against base
func (e *Extractor) SetBaseURL(base string) {
	e.baseURL = base
}

// Containers returns the card containers currently present under root
func (e *Extractor) Containers(root *goquery.Selection) *goquery.Selection {
	return e.containers.Find(root)
}

// Extract returns every candidate row currently rendered under root.
// Anchors without a container, title, or price text are skipped.
func (e *Extractor) Extract(root *goquery.Selection) []Candidate {
	var out []Candidate
	seen := make(map[*html.Node]bool)
	skipped := 0

	e.anchors.Find(root).Each(func(_ int, anchor *goquery.Selection) {
		container, ok := e.containers.Closest(anchor)
		if !ok {
			skipped++
			return
		}
		node := container.Get(0)
		if seen[node] {
			return
		}

		raw, ok := e.record(anchor, container)
		if !ok {
			skipped++
			return
		}
		seen[node] = true
		out = append(out, Candidate{Container: container, Record: raw})
	})

	log.Debug().
		Int("candidates", len(out)).
		Int("skipped", skipped).
		Msg("Extraction pass finished")

	return out
}

func (e *Extractor) record(anchor, container *goquery.Selection) (models.RawRecord, bool) {
	title := e.titles.Text(container)
	if title == "" {
		title = NormalizeText(anchor.Text())
	}
	if title == "" {
		return models.RawRecord{}, false
	}

	priceText := e.prices.Text(container)
	if priceText == "" {
		return models.RawRecord{}, false
	}

	href, _ := anchor.Attr("href")
	raw := models.RawRecord{
		Title:      title,
		PriceText:  priceText,
		PriceValue: ParsePrice(priceText),
		Currency:   InferCurrency(priceText),
		URL:        href,
		ItemID:     e.ItemID(href),
		Serial:     e.serials.Text(container),
		Variant:    e.variants.Text(container),
		Status:     e.statuses.Text(container),
	}
	if href != "" && e.baseURL != "" {
		raw.URL = urlutil.ResolveURL(e.baseURL, href)
	}
	return raw, true
}

// ItemID extracts the item identifier from href using the profile pattern.
// The first submatch wins; without submatches the whole match is used.
func (e *Extractor) ItemID(href string) string {
	if e.itemID == nil || href == "" {
		return ""
	}
	m := e.itemID.FindStringSubmatch(href)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return m[1]
	default:
		return m[0]
	}
}
