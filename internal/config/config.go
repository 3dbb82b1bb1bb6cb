package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values.
// Precedence: defaults, then the YAML config file, then TALLY_* environment
// variables, then flags the user set explicitly.
type Config struct {
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`

	Tool        string `yaml:"tool"`
	ProfileFile string `yaml:"profile_file"`

	StoreKind string `yaml:"store"`
	DataDir   string `yaml:"data_dir"`
	ExportDir string `yaml:"export_dir"`

	Mode         string        `yaml:"mode"`
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`

	HTTPTimeout    time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	Proxy          string        `yaml:"proxy"`
	Headers        []string      `yaml:"headers"`
	Session        string        `yaml:"session"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`

	BrowserPoolSize int           `yaml:"browser_pool_size"`
	BrowserHeadless bool          `yaml:"browser_headless"`
	ChromePath      string        `yaml:"chrome_path"`
	RenderSettle    time.Duration `yaml:"render_settle"`

	CacheMaxSizeBytes int64 `yaml:"cache_max_size_bytes"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
		Tool:              DefaultTool,
		StoreKind:         DefaultStoreKind,
		DataDir:           defaultDataDir(),
		Mode:              DefaultMode,
		Debounce:          DefaultDebounce,
		PollInterval:      DefaultPollInterval,
		HTTPTimeout:       DefaultHTTPTimeout,
		UserAgent:         DefaultUserAgent,
		RateLimitRPS:      DefaultRateLimitRPS,
		RateLimitBurst:    DefaultRateLimitBurst,
		BrowserPoolSize:   DefaultBrowserPoolSize,
		BrowserHeadless:   DefaultBrowserHeadless,
		RenderSettle:      DefaultRenderSettle,
		CacheMaxSizeBytes: DefaultCacheMaxSizeBytes,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDirName
	}
	return filepath.Join(home, DefaultDataDirName)
}

// Load builds a Config for cmd. cmd may be nil.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v, ok := flagValue(cmd, "data-dir"); ok {
		cfg.DataDir = v
	}

	path := ""
	if v, ok := flagValue(cmd, "config"); ok {
		path = v
	} else if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		path = v
	}
	if err := mergeFile(cfg, path, path != ""); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, cmd); err != nil {
		return nil, err
	}

	if cfg.ExportDir == "" {
		cfg.ExportDir = "."
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		if v := getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
		return nil
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	str("TOOL", &cfg.Tool)
	str("PROFILE_FILE", &cfg.ProfileFile)
	str("STORE", &cfg.StoreKind)
	str("DATA_DIR", &cfg.DataDir)
	str("EXPORT_DIR", &cfg.ExportDir)
	str("MODE", &cfg.Mode)
	str("USER_AGENT", &cfg.UserAgent)
	str("PROXY", &cfg.Proxy)
	str("SESSION", &cfg.Session)
	str("CHROME_PATH", &cfg.ChromePath)

	for name, dst := range map[string]*time.Duration{
		"DEBOUNCE":      &cfg.Debounce,
		"POLL_INTERVAL": &cfg.PollInterval,
		"TIMEOUT":       &cfg.HTTPTimeout,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}

	if v := getenv(EnvPrefix + "RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		cfg.RateLimitRPS = f
	}
	if v := getenv(EnvPrefix + "HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err)
		}
		cfg.BrowserHeadless = b
	}
	return nil
}

// flagValue returns the flag's value only when the user set it.
func flagValue(cmd *cobra.Command, name string) (string, bool) {
	if cmd == nil {
		return "", false
	}
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return "", false
	}
	return f.Value.String(), true
}

func applyFlags(cfg *Config, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	for name, dst := range map[string]*string{
		"tool":         &cfg.Tool,
		"profile-file": &cfg.ProfileFile,
		"store":        &cfg.StoreKind,
		"data-dir":     &cfg.DataDir,
		"mode":         &cfg.Mode,
		"user-agent":   &cfg.UserAgent,
		"proxy":        &cfg.Proxy,
		"session":      &cfg.Session,
	} {
		if v, ok := flagValue(cmd, name); ok {
			*dst = v
		}
	}

	for name, dst := range map[string]*time.Duration{
		"timeout":       &cfg.HTTPTimeout,
		"debounce":      &cfg.Debounce,
		"poll-interval": &cfg.PollInterval,
	} {
		if v, ok := flagValue(cmd, name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
			*dst = d
		}
	}

	if _, ok := flagValue(cmd, "header"); ok {
		hs, err := cmd.Flags().GetStringArray("header")
		if err != nil {
			return err
		}
		cfg.Headers = hs
	}
	if v, ok := flagValue(cmd, "headful"); ok && v == "true" {
		cfg.BrowserHeadless = false
	}
	if v, ok := flagValue(cmd, "json"); ok && v == "true" {
		cfg.JSONLog = true
	}
	if v, ok := flagValue(cmd, "verbose"); ok && v == "true" {
		cfg.LogLevel = "debug"
	}
	if v, ok := flagValue(cmd, "quiet"); ok && v == "true" {
		cfg.LogLevel = "error"
	}
	return nil
}
