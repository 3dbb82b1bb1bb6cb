package models

import (
	"strings"
	"time"
)

// Record is one captured entity merged into the tool's persistent collection
type Record struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	PriceText   *string   `json:"priceText"`
	PriceValue  *float64  `json:"priceValue"`
	Currency    *string   `json:"currency"`
	URL         string    `json:"url"`
	ItemID      *string   `json:"itemId"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	Serial      string    `json:"serial,omitempty"`
	Variant     string    `json:"variant,omitempty"`
	Status      string    `json:"status,omitempty"`
}

// RawRecord is a single extraction result before it is merged
type RawRecord struct {
	Key        string
	Title      string
	PriceText  string
	PriceValue *float64
	Currency   *string
	URL        string
	ItemID     string
	Serial     string
	Variant    string
	Status     string
}

// SortMode selects the ordering of the derived view
type SortMode string

const (
	SortNewest    SortMode = "newest"
	SortOldest    SortMode = "oldest"
	SortPriceAsc  SortMode = "price-asc"
	SortPriceDesc SortMode = "price-desc"
	SortTitle     SortMode = "title"
)

// ParseSortMode returns the sort mode for s, defaulting to newest
func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, true
	case SortOldest:
		return SortOldest, true
	case SortPriceAsc:
		return SortPriceAsc, true
	case SortPriceDesc:
		return SortPriceDesc, true
	case SortTitle:
		return SortTitle, true
	}
	return SortNewest, false
}

// Prefs is the persisted UI preference state of a tool
type Prefs struct {
	Query   string   `json:"query"`
	Sort    SortMode `json:"sort"`
	Capture bool     `json:"capture"`
	Status  string   `json:"status"`
}

// DefaultPrefs returns the preferences used before anything was persisted
func DefaultPrefs() Prefs {
	return Prefs{Sort: SortNewest, Capture: true}
}

// SourceMode defines how the page DOM is obtained
type SourceMode string

const (
	ModeAuto   SourceMode = "auto"
	ModeStatic SourceMode = "static"
	ModeHybrid SourceMode = "hybrid"
	ModeSPA    SourceMode = "spa"
	ModeFile   SourceMode = "file"
)

// Profile bundles everything a tool knows about the page it scrapes
type Profile struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	ExpectedHost  string   `yaml:"expected_host" json:"expectedHost,omitempty"`
	Anchors       []string `yaml:"anchors" json:"anchors"`
	Containers    []string `yaml:"containers" json:"containers"`
	Titles        []string `yaml:"titles" json:"titles,omitempty"`
	Prices        []string `yaml:"prices" json:"prices"`
	Serials       []string `yaml:"serials" json:"serials,omitempty"`
	Variants      []string `yaml:"variants" json:"variants,omitempty"`
	Statuses      []string `yaml:"statuses" json:"statuses,omitempty"`
	MarkerPrefix  string   `yaml:"marker_prefix" json:"markerPrefix,omitempty"`
	ItemIDPattern string   `yaml:"item_id_pattern" json:"itemIdPattern,omitempty"`
	ScriptGlobal  string   `yaml:"script_global" json:"scriptGlobal,omitempty"`
	LoginURL      string   `yaml:"login_url" json:"loginUrl,omitempty"`
	LoginWait     string   `yaml:"login_wait" json:"loginWait,omitempty"`
}

// Namespace returns the storage namespace for the profile
func (p Profile) Namespace() string {
	return strings.ToLower(p.Name)
}
