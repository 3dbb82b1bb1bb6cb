// Package browser owns the headless Chrome processes used by the dynamic
// page source and the interactive login flow.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSize = 2
	MaxSize     = 8
)

// ErrClosed is returned by Acquire once the pool has shut down.
var ErrClosed = errors.New("browser pool is closed")

// Options configures the Chrome allocator.
type Options struct {
	Size      int
	Headless  bool
	UserAgent string
	Proxy     string
	// ExecPath skips FindChrome when set.
	ExecPath string
	Extra    []chromedp.ExecAllocatorOption
}

// Tab is a chromedp browser context checked out of a Pool.
type Tab struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// Pool hands out warmed-up tabs that share one Chrome process.
type Pool struct {
	size        int
	tabs        chan *Tab
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
}

// AllocatorOptions builds the exec allocator flags for opts.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1366, 900),
	}

	path := opts.ExecPath
	if path == "" {
		path = FindChrome()
	}
	if path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"), chromedp.Flag("disable-gpu", true))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	return append(allocOpts, opts.Extra...)
}

// NewPool starts Chrome and pre-creates opts.Size tabs.
func NewPool(opts Options) (*Pool, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Size > MaxSize {
		opts.Size = MaxSize
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts)...)
	p := &Pool{
		size:        opts.Size,
		tabs:        make(chan *Tab, opts.Size),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}

	for i := 0; i < opts.Size; i++ {
		ctx, cancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
			cancel()
			p.Close()
			return nil, fmt.Errorf("failed to warm up tab %d: %w", i, err)
		}
		p.tabs <- &Tab{Ctx: ctx, Cancel: cancel}
	}

	log.Info().Int("pool_size", opts.Size).Msg("Browser pool ready")
	return p, nil
}

// Acquire blocks until a tab is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	select {
	case tab, ok := <-p.tabs:
		if !ok {
			return nil, ErrClosed
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			tab.Cancel()
			return nil, ErrClosed
		}
		return tab, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser tab: %w", ctx.Err())
	}
}

// Release blanks the tab and returns it to the pool.
func (p *Pool) Release(tab *Tab) {
	if tab == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		tab.Cancel()
		return
	}

	_ = chromedp.Run(tab.Ctx, chromedp.Navigate("about:blank"))

	select {
	case p.tabs <- tab:
	default:
		tab.Cancel()
		log.Warn().Msg("Browser pool full, discarding tab")
	}
}

// Close cancels every idle tab and stops Chrome.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	close(p.tabs)
	for tab := range p.tabs {
		tab.Cancel()
	}
	p.allocCancel()
	log.Debug().Msg("Browser pool closed")
	return nil
}

func (p *Pool) Size() int { return p.size }

func (p *Pool) Available() int { return len(p.tabs) }
