// Package source obtains the live DOM of a listing page and reports when it
// changes. Pages come from plain HTTP (optionally with inline script
// evaluation), a headless Chrome tab, or a saved HTML file.
package source

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tally/internal/cache"
	"github.com/law-makers/tally/internal/extract"
	"github.com/law-makers/tally/pkg/models"
)

// Source yields DOM snapshots of one page.
type Source interface {
	Name() string
	URL() string
	// Snapshot returns the page as it is now.
	Snapshot(ctx context.Context) (*Snapshot, error)
	// Observe calls notify whenever the observed part of the page may have
	// changed. notify must not block. stop is idempotent.
	Observe(ctx context.Context, notify func()) (stop func(), err error)
	Close() error
}

// Snapshot is one parsed view of the page.
type Snapshot struct {
	URL       string
	Doc       *goquery.Document
	Hash      string
	FetchedAt time.Time
	// Global is the exported value of the profile's script global, when the
	// source can evaluate scripts and the page defines it.
	Global interface{}
}

func parse(url string, body []byte) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		URL:       url,
		Doc:       doc,
		Hash:      cache.Fingerprint(body),
		FetchedAt: time.Now(),
	}, nil
}

// ObserverRoot picks the subtree worth watching: the parent of the first
// item container, else <body>.
func ObserverRoot(doc *goquery.Document, p models.Profile) *goquery.Selection {
	first := extract.Chain(p.Containers).Find(doc.Selection).First()
	if first.Length() > 0 {
		if parent := first.Parent(); parent.Length() > 0 {
			return parent
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// RootFingerprint hashes the observer root so unrelated page churn does not
// count as a change.
func RootFingerprint(doc *goquery.Document, p models.Profile) string {
	html, err := goquery.OuterHtml(ObserverRoot(doc, p))
	if err != nil {
		return ""
	}
	return cache.Fingerprint([]byte(html))
}
