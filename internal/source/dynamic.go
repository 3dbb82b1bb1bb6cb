package source

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/browser"
	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"
)

// BindingName is the page-side function the mutation observer calls.
const BindingName = "__tallyNotify"

//go:embed observer.js
var observerJS string

const disconnectJS = `window.__tallyObserver && window.__tallyObserver.disconnect(), window.__tallyObserver = null`

// Dynamic renders the page in a pooled Chrome tab. The tab stays on the page
// for the life of the source so Snapshot and Observe see the same live DOM.
type Dynamic struct {
	url     string
	profile models.Profile
	pool    *browser.Pool
	session *auth.SessionData
	settle  time.Duration

	mu  sync.Mutex
	tab *browser.Tab
}

// NewDynamic returns a source backed by pool. settle is extra time given to
// client-side rendering after the document loads.
func NewDynamic(rawURL string, p models.Profile, pool *browser.Pool, session *auth.SessionData, settle time.Duration) (*Dynamic, error) {
	if pool == nil {
		return nil, newError(ErrCodeBrowser, "spa", rawURL, ErrBrowserUnavailable)
	}
	return &Dynamic{url: rawURL, profile: p, pool: pool, session: session, settle: settle}, nil
}

func (d *Dynamic) Name() string { return string(models.ModeSPA) }

func (d *Dynamic) URL() string { return d.url }

func (d *Dynamic) open(ctx context.Context) (*browser.Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tab != nil {
		return d.tab, nil
	}

	tab, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, newError(ErrCodeBrowser, d.Name(), d.url, err)
	}

	actions := []chromedp.Action{network.Enable()}
	if d.session != nil && len(d.session.Cookies) > 0 {
		actions = append(actions, network.SetCookies(d.session.CookieParams()))
	}
	actions = append(actions, chromedp.Navigate(d.url), chromedp.WaitReady("body", chromedp.ByQuery))
	if d.settle > 0 {
		actions = append(actions, chromedp.Sleep(d.settle))
	}

	start := time.Now()
	if err := chromedp.Run(tab.Ctx, actions...); err != nil {
		d.pool.Release(tab)
		return nil, newError(ErrCodeBrowser, d.Name(), d.url, err)
	}
	log.Debug().Str("url", d.url).Dur("elapsed", time.Since(start)).Msg("Page rendered")

	d.tab = tab
	return tab, nil
}

// Snapshot serialises the live DOM and, when configured, the script global.
func (d *Dynamic) Snapshot(ctx context.Context) (*Snapshot, error) {
	tab, err := d.open(ctx)
	if err != nil {
		return nil, err
	}

	var html, global string
	actions := []chromedp.Action{chromedp.OuterHTML("html", &html, chromedp.ByQuery)}
	if d.profile.ScriptGlobal != "" {
		expr := fmt.Sprintf("JSON.stringify(window[%q] === undefined ? null : window[%q])", d.profile.ScriptGlobal, d.profile.ScriptGlobal)
		actions = append(actions, chromedp.Evaluate(expr, &global))
	}
	if err := chromedp.Run(tab.Ctx, actions...); err != nil {
		return nil, newError(ErrCodeBrowser, d.Name(), d.url, err)
	}

	snap, err := parse(d.url, []byte(html))
	if err != nil {
		return nil, newError(ErrCodeParse, d.Name(), d.url, err)
	}
	if global != "" && global != "null" {
		var v interface{}
		if err := json.Unmarshal([]byte(global), &v); err == nil {
			snap.Global = v
		}
	}
	return snap, nil
}

// Observe installs a MutationObserver on the observer root. Each batch of
// mutations reaches Go through a runtime binding.
func (d *Dynamic) Observe(ctx context.Context, notify func()) (func(), error) {
	tab, err := d.open(ctx)
	if err != nil {
		return nil, err
	}

	var active atomic.Bool
	active.Store(true)
	chromedp.ListenTarget(tab.Ctx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == BindingName && active.Load() {
			notify()
		}
	})

	containers, _ := json.Marshal(d.profile.Containers)
	script := fmt.Sprintf("(%s)(%s, %q)", observerJS, containers, BindingName)

	var root string
	err = chromedp.Run(tab.Ctx,
		runtime.AddBinding(BindingName),
		chromedp.Evaluate(script, &root),
	)
	if err != nil {
		active.Store(false)
		return nil, newError(ErrCodeWatch, d.Name(), d.url, err)
	}
	log.Debug().Str("root", root).Msg("Mutation observer attached")

	var once sync.Once
	return func() {
		once.Do(func() {
			active.Store(false)
			d.mu.Lock()
			live := d.tab != nil
			d.mu.Unlock()
			if live {
				_ = chromedp.Run(tab.Ctx, chromedp.Evaluate(disconnectJS, nil))
			}
		})
	}, nil
}

// Close returns the tab to the pool.
func (d *Dynamic) Close() error {
	d.mu.Lock()
	tab := d.tab
	d.tab = nil
	d.mu.Unlock()
	if tab != nil {
		_ = chromedp.Run(tab.Ctx, chromedp.Evaluate(disconnectJS, nil))
		d.pool.Release(tab)
	}
	return nil
}
