package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/cache"
	"github.com/law-makers/tally/internal/proxy"
	"github.com/law-makers/tally/internal/ratelimit"
	"github.com/law-makers/tally/internal/retry"
	"github.com/law-makers/tally/internal/utils/headers"
	urlutil "github.com/law-makers/tally/internal/utils/url"
	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 30 * time.Second
	MaxBodyBytes        = 16 << 20
)

// HTTPConfig carries the shared plumbing for HTTP-backed sources.
type HTTPConfig struct {
	Client       *http.Client
	Limiter      ratelimit.Limiter
	Cache        cache.Cache
	Proxies      *proxy.Pool
	Retry        retry.Config
	UserAgent    string
	Headers      map[string]string
	Session      *auth.SessionData
	PollInterval time.Duration
}

// Static fetches the page over HTTP. With scripts enabled it also evaluates
// inline scripts to read the profile's script global.
type Static struct {
	url     string
	profile models.Profile
	cfg     HTTPConfig
	scripts bool
	jar     http.CookieJar

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewStatic returns a static source. scripts selects hybrid behaviour.
func NewStatic(rawURL string, p models.Profile, cfg HTTPConfig, scripts bool) (*Static, error) {
	if err := urlutil.ValidateURL(rawURL); err != nil {
		return nil, newError(ErrCodeInput, "static", rawURL, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	u, _ := url.Parse(rawURL)
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	s := &Static{
		url:     rawURL,
		profile: p,
		cfg:     cfg,
		scripts: scripts,
		clients: make(map[string]*http.Client),
	}

	if cfg.Session != nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		jar.SetCookies(u, cfg.Session.HTTPCookies())
		s.jar = jar
		log.Debug().Int("cookies", len(cfg.Session.Cookies)).Str("session", cfg.Session.Name).Msg("Session cookies loaded")
	}
	return s, nil
}

func (s *Static) Name() string {
	if s.scripts {
		return string(models.ModeHybrid)
	}
	return string(models.ModeStatic)
}

func (s *Static) URL() string { return s.url }

// Snapshot reuses a page the poller fetched moments ago, else fetches.
func (s *Static) Snapshot(ctx context.Context) (*Snapshot, error) {
	page, ok := s.cached()
	if !ok {
		var err error
		page, err = s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.remember(page)
	}

	snap, err := parse(s.url, page.Body)
	if err != nil {
		return nil, newError(ErrCodeParse, s.Name(), s.url, err)
	}
	snap.FetchedAt = page.FetchedAt

	if s.scripts && s.profile.ScriptGlobal != "" {
		global, err := EvalGlobal(snap.Doc, s.profile.ScriptGlobal, s.url)
		if err != nil {
			log.Warn().Err(err).Str("url", s.url).Msg("Inline script evaluation aborted")
		}
		snap.Global = global
	}
	return snap, nil
}

// Observe polls the page and notifies when the observer root changes.
func (s *Static) Observe(ctx context.Context, notify func()) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		// the page as it stands now is the baseline; only later changes notify
		last, _ := s.fingerprint(ctx, true)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			fp, ok := s.fingerprint(ctx, false)
			if ok && fp != last {
				last = fp
				notify()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// fingerprint fetches the page and returns its observer root fingerprint.
// With useCache a page fetched moments ago is reused.
func (s *Static) fingerprint(ctx context.Context, useCache bool) (string, bool) {
	var page *cache.Page
	var ok bool
	if useCache {
		page, ok = s.cached()
	}
	if !ok {
		var err error
		page, err = s.fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("url", s.url).Msg("Poll failed")
			}
			return "", false
		}
		s.remember(page)
	}

	snap, err := parse(s.url, page.Body)
	if err != nil {
		return "", false
	}
	return RootFingerprint(snap.Doc, s.profile), true
}

func (s *Static) Close() error {
	if s.cfg.Cache != nil {
		s.cfg.Cache.Delete(s.url)
	}
	return nil
}

func (s *Static) cached() (*cache.Page, bool) {
	if s.cfg.Cache == nil {
		return nil, false
	}
	return s.cfg.Cache.Get(s.url)
}

func (s *Static) remember(page *cache.Page) {
	if s.cfg.Cache != nil {
		s.cfg.Cache.Set(s.url, page, s.cfg.PollInterval/2)
	}
}

func (s *Static) fetch(ctx context.Context) (*cache.Page, error) {
	var page *cache.Page
	err := retry.Do(ctx, s.cfg.Retry, func() error {
		if s.cfg.Limiter != nil {
			if err := s.cfg.Limiter.Wait(ctx, s.url); err != nil {
				return retry.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		if s.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", s.cfg.UserAgent)
		}
		if s.cfg.Session != nil {
			headers.Apply(req, s.cfg.Session.Headers)
		}
		headers.Apply(req, s.cfg.Headers)

		px := s.cfg.Proxies.Next()
		resp, err := s.client(px).Do(req)
		if err != nil {
			if px != "" {
				s.cfg.Proxies.MarkFailed(px)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return retry.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: s.url}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
		if err != nil {
			return err
		}
		if px != "" {
			s.cfg.Proxies.MarkHealthy(px)
		}
		page = cache.NewPage(s.url, body)
		return nil
	})
	if err != nil {
		return nil, newError(ErrCodeFetch, s.Name(), s.url, err)
	}

	log.Debug().Str("url", s.url).Int("bytes", len(page.Body)).Msg("Page fetched")
	return page, nil
}

// client returns an http.Client routed through px, sharing the cookie jar.
func (s *Static) client(px string) *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[px]; ok {
		return c
	}

	c := *s.cfg.Client
	if s.jar != nil {
		c.Jar = s.jar
	}
	if px != "" {
		base, ok := c.Transport.(*http.Transport)
		if !ok || base == nil {
			base = http.DefaultTransport.(*http.Transport)
		}
		t := base.Clone()
		t.Proxy = proxy.Func(px)
		c.Transport = t
	}
	s.clients[px] = &c
	return &c
}
