package config

import (
	"fmt"
	"strings"

	"github.com/law-makers/tally/pkg/models"
)

var validModes = map[models.SourceMode]bool{
	models.ModeAuto:   true,
	models.ModeStatic: true,
	models.ModeHybrid: true,
	models.ModeSPA:    true,
	models.ModeFile:   true,
}

var validStores = map[string]bool{"sqlite": true, "file": true, "memory": true}

func validate(c *Config) error {
	c.Mode = strings.ToLower(c.Mode)
	c.StoreKind = strings.ToLower(c.StoreKind)

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be > 0")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if !validModes[models.SourceMode(c.Mode)] {
		return fmt.Errorf("unknown mode %q (use auto, static, hybrid, spa, file)", c.Mode)
	}
	if !validStores[c.StoreKind] {
		return fmt.Errorf("unknown store %q (use sqlite, file, memory)", c.StoreKind)
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPool {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPool)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit must be > 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if c.Tool == "" && c.ProfileFile == "" {
		return fmt.Errorf("a tool or profile file is required")
	}
	return nil
}
