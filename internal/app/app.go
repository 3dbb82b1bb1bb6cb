// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/browser"
	"github.com/law-makers/tally/internal/cache"
	"github.com/law-makers/tally/internal/config"
	"github.com/law-makers/tally/internal/proxy"
	"github.com/law-makers/tally/internal/ratelimit"
	"github.com/law-makers/tally/internal/retry"
	"github.com/law-makers/tally/internal/scan"
	"github.com/law-makers/tally/internal/source"
	"github.com/law-makers/tally/internal/store"
	"github.com/law-makers/tally/internal/utils/headers"
	"github.com/law-makers/tally/pkg/models"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command invocation. Use Close() to release the store
// backend and any browser that was started.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Profile     models.Profile
	Backend     store.Backend
	Store       *store.Store
	Scanner     *scan.Scanner
	Cache       cache.Cache
	Limiter     ratelimit.Limiter
	HTTPClient  *http.Client
	Proxies     *proxy.Pool
	Vault       *auth.Vault
	BrowserPool *browser.Pool
	poolMu      sync.Mutex
	startTime   time.Time
}

// ConfigureLogging sets the global zerolog level and writer from cfg and
// returns the application logger.
func ConfigureLogging(cfg *config.Config) zerolog.Logger {
	// "info" is the non-verbose default; -v turns on debug
	level := zerolog.WarnLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.JSONLog {
		w = os.Stderr
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// New creates an Application for cfg: the selected profile, its store
// namespace, and the HTTP plumbing shared by every source.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := ConfigureLogging(cfg)

	profile, err := config.ResolveProfile(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := store.OpenBackend(cfg.StoreKind, cfg.DataDir)
	if err != nil {
		logger.Warn().Err(err).Str("store", cfg.StoreKind).Msg("Persistent storage unavailable, keeping items in memory")
		backend = store.NewMemoryBackend()
	}
	st := store.Open(profile.Namespace(), backend)
	logger.Debug().
		Str("store", cfg.StoreKind).
		Str("namespace", profile.Namespace()).
		Int("records", st.Len()).
		Msg("Store opened")

	scanner, err := scan.New(profile, st)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("invalid profile %s: %w", profile.Name, err)
	}

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
	limiter := ratelimit.NewHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	a := &Application{
		Config:     cfg,
		Logger:     &logger,
		Profile:    profile,
		Backend:    backend,
		Store:      st,
		Scanner:    scanner,
		Cache:      memCache,
		Limiter:    limiter,
		HTTPClient: httpClient,
		Proxies:    proxy.Parse(cfg.Proxy),
		Vault:      auth.NewVault(SessionsDir(cfg)),
		startTime:  time.Now(),
	}

	logger.Debug().Str("tool", profile.Name).Msg("Application initialized")
	return a, nil
}

// SessionsDir is where file-backed sessions live for cfg
func SessionsDir(cfg *config.Config) string {
	if cfg.DataDir == "" {
		return auth.DefaultDir()
	}
	return filepath.Join(cfg.DataDir, "sessions")
}

// SourceOptions builds the source options for one input from the config,
// loading the configured session when there is one.
func (a *Application) SourceOptions(input string) (source.Options, error) {
	hdrs, err := headers.Parse(a.Config.Headers)
	if err != nil {
		return source.Options{}, err
	}

	var session *auth.SessionData
	if a.Config.Session != "" {
		session, err = a.Vault.Load(a.Config.Session)
		if err != nil {
			return source.Options{}, fmt.Errorf("failed to load session %q: %w", a.Config.Session, err)
		}
	}

	return source.Options{
		Input:   input,
		Mode:    models.SourceMode(a.Config.Mode),
		Profile: a.Profile,
		HTTP: source.HTTPConfig{
			Client:       a.HTTPClient,
			Limiter:      a.Limiter,
			Cache:        a.Cache,
			Proxies:      a.Proxies,
			Retry:        retry.DefaultConfig(),
			UserAgent:    a.Config.UserAgent,
			Headers:      hdrs,
			Session:      session,
			PollInterval: a.Config.PollInterval,
		},
		Browser: a.EnsureBrowserPool,
		Settle:  a.Config.RenderSettle,
	}, nil
}

// OpenSource opens the source for input
func (a *Application) OpenSource(ctx context.Context, input string) (source.Source, error) {
	opts, err := a.SourceOptions(input)
	if err != nil {
		return nil, err
	}
	return source.Open(ctx, opts)
}

// EnsureBrowserPool lazily starts Chrome the first time a page needs it.
func (a *Application) EnsureBrowserPool() (*browser.Pool, error) {
	if a == nil {
		return nil, fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.BrowserPool != nil {
		return a.BrowserPool, nil
	}

	a.Logger.Debug().Msg("Initializing browser pool on demand")
	pool, err := browser.NewPool(browser.Options{
		Size:      a.Config.BrowserPoolSize,
		Headless:  a.Config.BrowserHeadless,
		UserAgent: a.Config.UserAgent,
		Proxy:     a.Proxies.Next(),
		ExecPath:  a.Config.ChromePath,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create browser pool on demand")
		return nil, err
	}

	a.BrowserPool = pool
	a.Logger.Info().Int("pool_size", pool.Size()).Msg("Browser pool initialized on demand")
	return pool, nil
}

// Close releases the browser pool, the page cache and the store backend.
// Errors are logged and do not stop the remaining steps.
func (a *Application) Close(ctx context.Context) error {
	a.poolMu.Lock()
	pool := a.BrowserPool
	a.BrowserPool = nil
	a.poolMu.Unlock()
	if pool != nil {
		if err := pool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
	}

	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	var err error
	if a.Store != nil {
		if err = a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing store")
		}
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return err
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
