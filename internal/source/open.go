package source

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/law-makers/tally/internal/browser"
	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"
)

// Options selects and configures a source for one input.
type Options struct {
	// Input is a page URL or a path to a saved HTML file.
	Input   string
	Mode    models.SourceMode
	Profile models.Profile
	HTTP    HTTPConfig
	// Browser lazily starts the Chrome pool; nil disables the spa mode.
	Browser func() (*browser.Pool, error)
	// Settle is extra render time for spa pages.
	Settle time.Duration
	// BaseURL resolves relative links in saved files.
	BaseURL string
}

// IsFile reports whether input names a local file rather than a URL.
func IsFile(input string) bool {
	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return false
	}
	info, err := os.Stat(input)
	return err == nil && !info.IsDir()
}

// Open builds the source for opts. In auto mode the page is fetched once over
// HTTP and Detect decides; the fetched body is reused by the chosen source
// through the page cache.
func Open(ctx context.Context, opts Options) (Source, error) {
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeAuto
	}
	if mode == models.ModeFile || (mode == models.ModeAuto && IsFile(opts.Input)) {
		return NewFile(opts.Input, opts.BaseURL, opts.Profile, true)
	}

	switch mode {
	case models.ModeStatic:
		return NewStatic(opts.Input, opts.Profile, opts.HTTP, false)
	case models.ModeHybrid:
		return NewStatic(opts.Input, opts.Profile, opts.HTTP, true)
	case models.ModeSPA:
		return openDynamic(opts)
	case models.ModeAuto:
	default:
		return nil, newError(ErrCodeInput, string(mode), opts.Input, ErrInvalidInput)
	}

	probe, err := NewStatic(opts.Input, opts.Profile, opts.HTTP, false)
	if err != nil {
		return nil, err
	}
	snap, err := probe.Snapshot(ctx)
	if err != nil {
		if opts.Browser != nil {
			log.Warn().Err(err).Msg("Static probe failed, trying browser")
			return openDynamic(opts)
		}
		return nil, err
	}

	detected := Detect(snap.Doc, opts.Profile)
	log.Debug().Str("url", opts.Input).Str("mode", string(detected)).Msg("Detected page mode")

	switch detected {
	case models.ModeHybrid:
		return NewStatic(opts.Input, opts.Profile, opts.HTTP, true)
	case models.ModeSPA:
		if opts.Browser == nil {
			log.Warn().Msg("Page looks client-rendered but no browser is available, using static HTML")
			return probe, nil
		}
		dyn, err := openDynamic(opts)
		if err != nil {
			log.Warn().Err(err).Msg("Browser unavailable, using static HTML")
			return probe, nil
		}
		probe.Close()
		return dyn, nil
	default:
		return probe, nil
	}
}

func openDynamic(opts Options) (Source, error) {
	if opts.Browser == nil {
		return nil, newError(ErrCodeBrowser, string(models.ModeSPA), opts.Input, ErrBrowserUnavailable)
	}
	pool, err := opts.Browser()
	if err != nil {
		return nil, newError(ErrCodeBrowser, string(models.ModeSPA), opts.Input, err)
	}
	return NewDynamic(opts.Input, opts.Profile, pool, opts.HTTP.Session, opts.Settle)
}
