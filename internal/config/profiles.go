package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/law-makers/tally/pkg/models"
	"gopkg.in/yaml.v3"
)

// Built-in tool profiles. Each selector list is ordered primary first; later
// entries are broader fallbacks.
var builtins = map[string]models.Profile{
	"baytally": {
		Name:          "baytally",
		Description:   "eBay search and listing results",
		ExpectedHost:  "ebay.com",
		Anchors:       []string{"a.s-item__link", "a[href*='/itm/']"},
		Containers:    []string{"li.s-item", "li[data-viewport]", "div.s-item__wrapper", "li"},
		Titles:        []string{".s-item__title span[role='heading']", ".s-item__title", "h3"},
		Prices:        []string{".s-item__price", "[class*='price']"},
		Statuses:      []string{".s-item__time-left", ".s-item__purchase-options", ".s-item__bids"},
		MarkerPrefix:  "iid-",
		ItemIDPattern: `/itm/(?:[^/?#]+/)?(\d{6,})`,
		LoginURL:      "https://signin.ebay.com/",
		LoginWait:     "#gh-ug",
	},
	"hotbids": {
		Name:          "hotbids",
		Description:   "eBay watch list and bids/offers pages",
		ExpectedHost:  "ebay.com",
		Anchors:       []string{"a.item-link", "a[href*='/itm/']"},
		Containers:    []string{"div.m-item", "tr.m-item", "li", "tr"},
		Titles:        []string{".item-title", ".m-item__title", "h3"},
		Prices:        []string{".item-price", ".m-item__price", "[class*='price']"},
		Statuses:      []string{".item-time-left", ".m-item__status", "[class*='bid']"},
		MarkerPrefix:  "iid-",
		ItemIDPattern: `/itm/(?:[^/?#]+/)?(\d{6,})`,
		LoginURL:      "https://signin.ebay.com/",
		LoginWait:     "#gh-ug",
	},
	"tcdb-scout": {
		Name:          "tcdb-scout",
		Description:   "Trading Card Database set and collection pages",
		ExpectedHost:  "tcdb.com",
		Anchors:       []string{"a[href*='/ViewCard.cfm']", "a[href*='ViewCard']"},
		Containers:    []string{"tr.card-row", "tr", "div.card"},
		Titles:        []string{"td.card-name", "td:nth-child(2)"},
		Prices:        []string{"td.card-price", "td[class*='price']", "td:last-child"},
		Serials:       []string{"td.card-number", "td:nth-child(1)"},
		Variants:      []string{"td.card-variant", "td.parallel"},
		Statuses:      []string{"td.card-status", "td.have"},
		MarkerPrefix:  "cid-",
		ItemIDPattern: `ViewCard\.cfm/sid/\d+/cid/(\d+)`,
		LoginURL:      "https://www.tcdb.com/Login.cfm",
	},
}

// Profiles returns the built-in profiles sorted by name.
func Profiles() []models.Profile {
	out := make([]models.Profile, 0, len(builtins))
	for _, p := range builtins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Profile returns the named built-in profile.
func Profile(name string) (models.Profile, error) {
	p, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(builtins))
		for n := range builtins {
			names = append(names, n)
		}
		sort.Strings(names)
		return models.Profile{}, fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}

// LoadProfileFile reads a YAML profile. A profile naming a built-in as
// "extends" starts from that profile's fields.
func LoadProfileFile(path string) (models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	var head struct {
		Extends string `yaml:"extends"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return models.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}

	var p models.Profile
	if head.Extends != "" {
		if p, err = Profile(head.Extends); err != nil {
			return models.Profile{}, err
		}
	}

	var doc struct {
		models.Profile `yaml:",inline"`
		Extends        string `yaml:"extends"`
	}
	doc.Profile = p
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return models.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := ValidateProfile(doc.Profile); err != nil {
		return models.Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return doc.Profile, nil
}

// ResolveProfile returns the profile selected by cfg.
func ResolveProfile(cfg *Config) (models.Profile, error) {
	if cfg.ProfileFile != "" {
		return LoadProfileFile(cfg.ProfileFile)
	}
	return Profile(cfg.Tool)
}

// ValidateProfile checks the fields extraction cannot work without.
func ValidateProfile(p models.Profile) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("name is required")
	case len(p.Anchors) == 0:
		return fmt.Errorf("at least one anchor selector is required")
	case len(p.Containers) == 0:
		return fmt.Errorf("at least one container selector is required")
	case len(p.Prices) == 0:
		return fmt.Errorf("at least one price selector is required")
	}
	return nil
}
