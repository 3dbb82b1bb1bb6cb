// Package scan runs one extraction pass over a page snapshot and merges the
// result into the store.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/law-makers/tally/internal/extract"
	"github.com/law-makers/tally/internal/keys"
	"github.com/law-makers/tally/internal/reqctx"
	"github.com/law-makers/tally/internal/source"
	"github.com/law-makers/tally/internal/store"
	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"

	urlutil "github.com/law-makers/tally/internal/utils/url"
)

// Result summarises one pass.
type Result struct {
	ScanID     string
	URL        string
	Source     string
	Candidates int
	Scripted   int
	Changed    bool
	Total      int
	Elapsed    time.Duration
}

// Scanner is safe for concurrent use; passes are serialised.
type Scanner struct {
	profile models.Profile
	store   *store.Store

	mu sync.Mutex
	ex *extract.Extractor
}

func New(p models.Profile, st *store.Store) (*Scanner, error) {
	ex, err := extract.New(p)
	if err != nil {
		return nil, err
	}
	return &Scanner{profile: p, store: st, ex: ex}, nil
}

func (s *Scanner) Profile() models.Profile { return s.profile }

func (s *Scanner) Store() *store.Store { return s.store }

// Records extracts and keys every record in snap without touching the store.
// DOM candidates come first, then any records read from the script global.
func (s *Scanner) Records(snap *source.Snapshot) (dom, scripted []models.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records(snap)
}

func (s *Scanner) records(snap *source.Snapshot) (dom, scripted []models.RawRecord) {
	s.ex.SetBaseURL(snap.URL)
	dom = keys.Assign(s.ex.Extract(snap.Doc.Selection), s.profile.MarkerPrefix)

	if snap.Global != nil {
		for _, raw := range extract.FromScriptValue(snap.Global, s.ex.ItemID) {
			raw.URL = urlutil.ResolveURL(snap.URL, raw.URL)
			if raw.Key == "" {
				raw.Key = keys.Fallback(raw)
			}
			scripted = append(scripted, raw)
		}
	}
	return dom, scripted
}

// Apply merges an already-taken snapshot.
func (s *Scanner) Apply(ctx context.Context, src string, snap *source.Snapshot) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	dom, scripted := s.records(snap)
	changed := s.store.Upsert(append(dom, scripted...))

	res := Result{
		ScanID:     reqctx.FromContext(ctx).ScanID,
		URL:        snap.URL,
		Source:     src,
		Candidates: len(dom),
		Scripted:   len(scripted),
		Changed:    changed,
		Total:      s.store.Len(),
		Elapsed:    reqctx.Elapsed(ctx),
	}
	l := reqctx.Logger(ctx, log.Logger)
	l.Debug().
		Int("candidates", res.Candidates).
		Int("scripted", res.Scripted).
		Bool("changed", res.Changed).
		Int("total", res.Total).
		Msg("Scan merged")
	return res
}

// Scan snapshots src and merges it. A failed snapshot leaves the store as it
// was.
func (s *Scanner) Scan(ctx context.Context, src source.Source) (Result, error) {
	ctx = reqctx.WithScan(ctx, s.profile.Name)
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return Result{ScanID: reqctx.FromContext(ctx).ScanID, URL: src.URL(), Source: src.Name()}, reqctx.Wrap(ctx, err)
	}
	return s.Apply(ctx, src.Name(), snap), nil
}
