// Package store implements the merge store: an ordered, key-indexed record
// collection mirrored to a namespaced backend.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"
)

// Storage keys within a tool namespace
const (
	ItemsKey  = "items"
	PrefsKey  = "ui"
	SchemaKey = "schema"
)

// SchemaVersion is the current layout of the items key
const SchemaVersion = 1

// ErrNewerSchema is reported when persisted state was written by a newer version
var ErrNewerSchema = errors.New("persisted state uses a newer schema")

// ErrCorruptItems is reported when the stored items cannot be decoded
var ErrCorruptItems = errors.New("stored items are unreadable")

// DegradedWarning is shown once storage stops accepting writes
const DegradedWarning = "Storage unavailable: changes are kept in memory only and will be lost on exit."

// CorruptWarning is shown when the saved items could not be read back. The
// stored data is left untouched so it can be recovered by hand.
const CorruptWarning = "Saved items are unreadable and were not loaded: changes are kept in memory only and will be lost on exit."

// Store owns the record collection of one tool for the lifetime of a panel.
type Store struct {
	namespace string
	backend   Backend
	now       func() time.Time

	mu      sync.Mutex
	records []models.Record
	index   map[string]int
	prefs   models.Prefs

	degraded bool
	warnOnce sync.Once
	warning  string
	writes   int
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for firstSeenAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads the namespace's records and preferences from backend.
// Load problems never fail: the store falls back to memory-only operation.
func Open(namespace string, backend Backend, opts ...Option) *Store {
	s := &Store{
		namespace: namespace,
		backend:   backend,
		now:       time.Now,
		index:     make(map[string]int),
		prefs:     models.DefaultPrefs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if backend == nil {
		s.backend = NewMemoryBackend()
	}

	if err := s.load(); err != nil {
		s.degrade(err)
	}

	log.Debug().
		Str("namespace", namespace).
		Int("records", len(s.records)).
		Bool("degraded", s.degraded).
		Msg("Store opened")

	return s
}

func (s *Store) load() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return ErrNewerSchema
	}

	data, ok, err := s.backend.Get(s.namespace, ItemsKey)
	if err != nil {
		return err
	}
	if ok {
		var records []models.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptItems, err)
		}
		migrated := migrate(records, version)
		s.records, s.index = dedupe(migrated)
		if version < SchemaVersion {
			log.Info().
				Str("namespace", s.namespace).
				Int("from", version).
				Int("to", SchemaVersion).
				Msg("Migrated persisted records")
			if err := s.persistItems(); err != nil {
				return err
			}
		}
	}
	if version < SchemaVersion {
		if err := s.backend.Set(s.namespace, SchemaKey, []byte(itoa(SchemaVersion))); err != nil {
			return err
		}
	}

	if data, ok, err := s.backend.Get(s.namespace, PrefsKey); err != nil {
		return err
	} else if ok {
		prefs := models.DefaultPrefs()
		if err := json.Unmarshal(data, &prefs); err != nil {
			log.Warn().Err(err).Str("namespace", s.namespace).Msg("Ignoring unreadable preferences")
		} else {
			if sort, ok := models.ParseSortMode(string(prefs.Sort)); ok {
				prefs.Sort = sort
			} else {
				prefs.Sort = models.SortNewest
			}
			s.prefs = prefs
		}
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	data, ok, err := s.backend.Get(s.namespace, SchemaKey)
	if err != nil || !ok {
		return 0, err
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Upsert merges incoming rows by key. New keys are appended with firstSeenAt
// set to now. Existing records only have their empty fields filled. It reports
// whether anything changed; the collection is persisted only in that case.
func (s *Store) Upsert(incoming []models.RawRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	inserted, patched := 0, 0
	for _, raw := range incoming {
		if raw.Key == "" {
			continue
		}
		if i, ok := s.index[raw.Key]; ok {
			if patch(&s.records[i], raw) {
				patched++
				changed = true
			}
			continue
		}
		s.records = append(s.records, newRecord(raw, s.now()))
		s.index[raw.Key] = len(s.records) - 1
		inserted++
		changed = true
	}

	if changed {
		log.Debug().
			Str("namespace", s.namespace).
			Int("inserted", inserted).
			Int("patched", patched).
			Msg("Store updated")
		s.save(s.persistItems)
	}
	return changed
}

func newRecord(raw models.RawRecord, now time.Time) models.Record {
	return models.Record{
		Key:         raw.Key,
		Title:       raw.Title,
		PriceText:   optional(raw.PriceText),
		PriceValue:  raw.PriceValue,
		Currency:    raw.Currency,
		URL:         raw.URL,
		ItemID:      optional(raw.ItemID),
		FirstSeenAt: now.UTC(),
		Serial:      raw.Serial,
		Variant:     raw.Variant,
		Status:      raw.Status,
	}
}

// patch fills empty fields of r from raw and never replaces a populated value
func patch(r *models.Record, raw models.RawRecord) bool {
	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fillPtr := func(dst **string, src string) {
		if (*dst == nil || **dst == "") && src != "" {
			v := src
			*dst = &v
			changed = true
		}
	}

	fill(&r.Title, raw.Title)
	fill(&r.URL, raw.URL)
	fillPtr(&r.ItemID, raw.ItemID)
	fillPtr(&r.PriceText, raw.PriceText)
	if raw.Currency != nil {
		fillPtr(&r.Currency, *raw.Currency)
	}
	if (r.PriceValue == nil || math.IsNaN(*r.PriceValue)) && raw.PriceValue != nil && !math.IsNaN(*raw.PriceValue) {
		v := *raw.PriceValue
		r.PriceValue = &v
		changed = true
	}
	fill(&r.Serial, raw.Serial)
	fill(&r.Variant, raw.Variant)
	fill(&r.Status, raw.Status)
	return changed
}

// Records returns a copy of the collection in insertion order
func (s *Store) Records() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Prefs returns the current UI preferences
func (s *Store) Prefs() models.Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPrefs replaces the UI preferences and persists them when they differ
func (s *Store) SetPrefs(p models.Prefs) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == s.prefs {
		return false
	}
	s.prefs = p
	s.save(s.persistPrefs)
	return true
}

// Clear empties the collection. It is the only way records are removed.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = nil
	s.index = make(map[string]int)
	s.save(s.persistItems)
	log.Info().Str("namespace", s.namespace).Int("removed", n).Msg("Store cleared")
}

// Warning returns the one-time storage advisory, or "" while storage works
func (s *Store) Warning() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warning
}

// Degraded reports whether the store stopped persisting
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Writes returns the number of successful persistence writes
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// save runs a persistence write unless the store already degraded.
// Callers hold s.mu.
func (s *Store) save(write func() error) {
	if s.degraded {
		return
	}
	if err := write(); err != nil {
		s.degrade(err)
	}
}

func (s *Store) degrade(err error) {
	s.degraded = true
	s.warnOnce.Do(func() {
		s.warning = DegradedWarning
		if errors.Is(err, ErrCorruptItems) {
			s.warning = fmt.Sprintf("%s (%v)", CorruptWarning, err)
		}
		log.Warn().Err(err).Str("namespace", s.namespace).Msg("Storage unavailable, continuing in memory")
	})
}

func (s *Store) persistItems() error {
	records := s.records
	if records == nil {
		records = []models.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := s.backend.Set(s.namespace, ItemsKey, data); err != nil {
		return err
	}
	s.writes++
	return nil
}

func (s *Store) persistPrefs() error {
	data, err := json.Marshal(s.prefs)
	if err != nil {
		return err
	}
	if err := s.backend.Set(s.namespace, PrefsKey, data); err != nil {
		return err
	}
	s.writes++
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
