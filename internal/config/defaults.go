package config

import "time"

const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultTool              = "baytally"
	DefaultStoreKind         = "sqlite"
	DefaultMode              = "auto"
	DefaultUserAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0 Safari/537.36"
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultDebounce          = 250 * time.Millisecond
	DefaultPollInterval      = 30 * time.Second
	DefaultRateLimitRPS      = 1.0
	DefaultRateLimitBurst    = 2
	DefaultBrowserPoolSize   = 1
	DefaultMaxBrowserPool    = 8
	DefaultBrowserHeadless   = true
	DefaultRenderSettle      = 1500 * time.Millisecond
	DefaultCacheMaxSizeBytes = 32 * 1024 * 1024
	DefaultDataDirName       = ".tally"
	EnvPrefix                = "TALLY_"
)
