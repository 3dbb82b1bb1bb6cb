package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/tally/internal/browser"
	"github.com/rs/zerolog/log"
)

// LoginOptions configures InteractiveLogin.
type LoginOptions struct {
	SessionName string
	URL         string
	// WaitSelector marks a logged-in page, e.g. the account menu. When empty
	// the user confirms by pressing Enter on Confirm.
	WaitSelector string
	Timeout      time.Duration
	Headers      map[string]string
	// RemoteDebuggingPort exposes DevTools so a headless box can be driven
	// from a local Chrome via chrome://inspect.
	RemoteDebuggingPort int
	Confirm             io.Reader
}

// ErrNoDisplay means no visible browser can be opened.
var ErrNoDisplay = errors.New("interactive login requires a display server (DISPLAY not set)")

// InteractiveLogin opens a visible browser at opts.URL, waits for the user to
// log in, and captures every cookie into a session.
func InteractiveLogin(ctx context.Context, opts LoginOptions) (*SessionData, error) {
	if opts.SessionName == "" {
		return nil, ErrEmptyName
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Confirm == nil {
		opts.Confirm = os.Stdin
	}
	if os.Getenv("DISPLAY") == "" && opts.RemoteDebuggingPort == 0 {
		return nil, ErrNoDisplay
	}

	log.Info().Str("session", opts.SessionName).Str("url", opts.URL).Msg("Starting interactive login")

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	bopts := browser.Options{Headless: false}
	if opts.RemoteDebuggingPort > 0 {
		bopts.Extra = append(bopts.Extra,
			chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", opts.RemoteDebuggingPort)),
			chromedp.Flag("remote-debugging-address", "0.0.0.0"),
		)
		log.Info().Int("port", opts.RemoteDebuggingPort).Msg("Remote debugging enabled")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browser.AllocatorOptions(bopts)...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(opts.URL)); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	if opts.WaitSelector != "" {
		log.Info().Str("selector", opts.WaitSelector).Msg("Waiting for login completion")
		if err := chromedp.Run(browserCtx, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			return nil, fmt.Errorf("login timeout or failed: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Press Enter once you have completed login...")
		bufio.NewReader(opts.Confirm).ReadString('\n')
	}

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found, login may have failed")
	}
	log.Info().Int("cookie_count", len(cookies)).Msg("Cookies captured")

	session := &SessionData{
		Name:      opts.SessionName,
		URL:       opts.URL,
		Cookies:   FromNetwork(cookies),
		Headers:   opts.Headers,
		CreatedAt: time.Now(),
	}
	session.SetExpiryFromCookies()
	return session, nil
}

// FromNetwork converts DevTools cookies to the stored shape.
func FromNetwork(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}
