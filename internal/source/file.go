package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	urlutil "github.com/law-makers/tally/internal/utils/url"
	"github.com/law-makers/tally/pkg/models"
	"github.com/rs/zerolog/log"
)

// File reads a saved copy of a listing page, such as one written by the
// browser's "Save page as".
type File struct {
	path    string
	base    string
	profile models.Profile
	scripts bool
}

// NewFile returns a file source. base, when set, is used to resolve relative
// item links; otherwise the page's <base href> or canonical link is used.
func NewFile(path, base string, p models.Profile, scripts bool) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newError(ErrCodeInput, "file", path, err)
	}
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		if err == nil {
			err = ErrInvalidInput
		}
		return nil, newError(ErrCodeInput, "file", path, err)
	}
	return &File{path: abs, base: base, profile: p, scripts: scripts}, nil
}

func (f *File) Name() string { return string(models.ModeFile) }

// URL is the page's original address when known, else a file:// URL.
func (f *File) URL() string {
	if f.base != "" {
		return f.base
	}
	return "file://" + filepath.ToSlash(f.path)
}

func (f *File) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, newError(ErrCodeFetch, f.Name(), f.path, err)
	}
	snap, err := parse(f.URL(), body)
	if err != nil {
		return nil, newError(ErrCodeParse, f.Name(), f.path, err)
	}
	if f.base == "" {
		if href := PageBase(snap); href != "" {
			snap.URL = href
		}
	}
	if f.scripts && f.profile.ScriptGlobal != "" {
		global, err := EvalGlobal(snap.Doc, f.profile.ScriptGlobal, snap.URL)
		if err != nil {
			log.Warn().Err(err).Str("path", f.path).Msg("Inline script evaluation aborted")
		}
		snap.Global = global
	}
	return snap, nil
}

// Observe watches the file's directory so editors that replace the file by
// rename are still seen.
func (f *File) Observe(ctx context.Context, notify func()) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newError(ErrCodeWatch, f.Name(), f.path, err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return nil, newError(ErrCodeWatch, f.Name(), f.path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					notify()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", f.path).Msg("File watch error")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			w.Close()
			<-done
		})
	}, nil
}

func (f *File) Close() error { return nil }

// PageBase returns the <base href> or canonical URL recorded in a saved page.
func PageBase(snap *Snapshot) string {
	for _, sel := range []string{"base[href]", `link[rel="canonical"]`, `meta[property="og:url"]`} {
		s := snap.Doc.Find(sel).First()
		v, ok := s.Attr("href")
		if !ok {
			v, ok = s.Attr("content")
		}
		if ok && urlutil.ValidateURL(v) == nil {
			return v
		}
	}
	return ""
}
