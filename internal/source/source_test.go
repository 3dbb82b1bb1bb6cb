package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tally/internal/auth"
	"github.com/law-makers/tally/internal/cache"
	"github.com/law-makers/tally/internal/retry"
	"github.com/law-makers/tally/pkg/models"
)

const listing = `<html><body>
<div id="header">Header</div>
<ul class="results">
  <li class="item"><a href="/itm/1">One</a><span class="price">$1.00</span></li>
  <li class="item"><a href="/itm/2">Two</a><span class="price">$2.00</span></li>
</ul>
</body></html>`

func profile() models.Profile {
	return models.Profile{
		Name:       "test",
		Anchors:    []string{"a"},
		Containers: []string{"li.item"},
		Prices:     []string{".price"},
	}
}

func fastHTTP() HTTPConfig {
	cfg := HTTPConfig{Retry: retry.DefaultConfig(), PollInterval: 20 * time.Millisecond}
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = time.Millisecond
	return cfg
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestStaticSnapshot(t *testing.T) {
	var gotUA, gotCookie, gotExtra string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotExtra = r.Header.Get("X-Test")
		if c, err := r.Cookie("sid"); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte(listing))
	}))
	defer server.Close()

	cfg := fastHTTP()
	cfg.UserAgent = "tally-test"
	cfg.Headers = map[string]string{"X-Test": "1"}
	cfg.Session = &auth.SessionData{Name: "s", Cookies: []auth.Cookie{{Name: "sid", Value: "abc", Path: "/"}}}

	src, err := NewStatic(server.URL, profile(), cfg, false)
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}
	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if n := snap.Doc.Find("li.item").Length(); n != 2 {
		t.Errorf("Expected 2 items, got %d", n)
	}
	if gotUA != "tally-test" {
		t.Errorf("Expected user agent tally-test, got %q", gotUA)
	}
	if gotExtra != "1" {
		t.Errorf("Expected custom header, got %q", gotExtra)
	}
	if gotCookie != "abc" {
		t.Errorf("Expected session cookie abc, got %q", gotCookie)
	}
	if snap.Hash == "" {
		t.Error("Expected snapshot hash")
	}
	if src.Name() != "static" {
		t.Errorf("Expected name static, got %s", src.Name())
	}
}

func TestStaticSnapshotUsesCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(listing))
	}))
	defer server.Close()

	cfg := fastHTTP()
	cfg.PollInterval = time.Minute
	mc := cache.NewMemoryCache(1 << 20)
	defer mc.Close()
	cfg.Cache = mc

	src, _ := NewStatic(server.URL, profile(), cfg, false)
	for i := 0; i < 3; i++ {
		if _, err := src.Snapshot(context.Background()); err != nil {
			t.Fatalf("Snapshot %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestStaticRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(listing))
	}))
	defer server.Close()

	src, _ := NewStatic(server.URL, profile(), fastHTTP(), false)
	if _, err := src.Snapshot(context.Background()); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestStaticNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	src, _ := NewStatic(server.URL, profile(), fastHTTP(), false)
	_, err := src.Snapshot(context.Background())
	if code, ok := CodeOf(err); !ok || code != ErrCodeFetch {
		t.Fatalf("Expected fetch error, got %v", err)
	}
	var he retry.HTTPError
	if !errors.As(err, &he) || he.StatusCode != 404 {
		t.Errorf("Expected wrapped HTTP 404, got %v", err)
	}
	if !errors.Is(err, &Error{Code: ErrCodeFetch}) {
		t.Error("Expected errors.Is to match by code")
	}
}

func TestNewStaticRejectsBadURL(t *testing.T) {
	for _, in := range []string{"ftp://x/", "not a url", ""} {
		if _, err := NewStatic(in, profile(), fastHTTP(), false); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestStaticObserveNotifiesOnRootChange(t *testing.T) {
	var version, hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		v := atomic.LoadInt32(&version)
		page := listing
		if v > 0 {
			page = strings.Replace(listing, "</ul>", `<li class="item"><a href="/itm/3">Three</a><span class="price">$3.00</span></li></ul>`, 1)
		}
		w.Write([]byte(page))
	}))
	defer server.Close()

	src, _ := NewStatic(server.URL, profile(), fastHTTP(), false)
	notified := make(chan struct{}, 16)
	stop, err := src.Observe(context.Background(), func() { notified <- struct{}{} })
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	defer stop()

	// baseline fetch plus a few polls of the same page
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&hits) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 4 fetches, got %d", atomic.LoadInt32(&hits))
		}
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-notified:
		t.Fatal("Expected no notification while the page is unchanged")
	default:
	}

	atomic.StoreInt32(&version, 1)
	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected notification after change")
	}

	stop()
	stop()
}

func TestHybridReadsScriptGlobal(t *testing.T) {
	page := `<html><body><script>
window.listing = [{title: "Card", price: "$4.50", url: "/c/1", id: 7}];
document.querySelector(".x").remove();
</script></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	p := profile()
	p.ScriptGlobal = "listing"
	src, _ := NewStatic(server.URL, p, fastHTTP(), true)
	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	items, ok := snap.Global.([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("Expected one script item, got %#v", snap.Global)
	}
	if src.Name() != "hybrid" {
		t.Errorf("Expected name hybrid, got %s", src.Name())
	}
}

func TestEvalGlobalMissing(t *testing.T) {
	v, err := EvalGlobal(doc(t, `<script>var other = 1;</script>`), "listing", "https://x/")
	if err != nil || v != nil {
		t.Errorf("Expected nil value, got %v (%v)", v, err)
	}
}

func TestEvalGlobalSkipsExternalAndJSON(t *testing.T) {
	d := doc(t, `<script src="/app.js">var listing = 1;</script>
<script type="application/json">{"a":1}</script>
<script>var listing = [1, 2];</script>`)
	v, err := EvalGlobal(d, "listing", "https://x/")
	if err != nil {
		t.Fatalf("EvalGlobal failed: %v", err)
	}
	if arr, ok := v.([]interface{}); !ok || len(arr) != 2 {
		t.Errorf("Expected [1 2], got %#v", v)
	}
}

func TestEvalGlobalTimeout(t *testing.T) {
	_, err := EvalGlobal(doc(t, `<script>while (true) {}</script>`), "listing", "https://x/")
	if code, ok := CodeOf(err); !ok || code != ErrCodeScript {
		t.Errorf("Expected script error, got %v", err)
	}
}

func TestObserverRoot(t *testing.T) {
	d := doc(t, listing)
	root := ObserverRoot(d, profile())
	if !root.Is("ul.results") {
		t.Errorf("Expected ul.results root, got %s", goquery.NodeName(root))
	}

	empty := doc(t, `<html><body><p>nothing</p></body></html>`)
	if root := ObserverRoot(empty, profile()); goquery.NodeName(root) != "body" {
		t.Errorf("Expected body fallback, got %s", goquery.NodeName(root))
	}
}

func TestRootFingerprintIgnoresOutsideChurn(t *testing.T) {
	a := doc(t, listing)
	b := doc(t, strings.Replace(listing, "Header", "Header changed", 1))
	if RootFingerprint(a, profile()) != RootFingerprint(b, profile()) {
		t.Error("Expected churn outside the root to be ignored")
	}
	c := doc(t, strings.Replace(listing, "$2.00", "$2.50", 1))
	if RootFingerprint(a, profile()) == RootFingerprint(c, profile()) {
		t.Error("Expected change inside the root to alter the fingerprint")
	}
}

func TestDetect(t *testing.T) {
	p := profile()
	p.ScriptGlobal = "listing"
	tests := []struct {
		name string
		html string
		want models.SourceMode
	}{
		{"items in markup", listing, models.ModeStatic},
		{"no scripts", `<html><body><p>hi</p></body></html>`, models.ModeStatic},
		{"script global", `<html><body><script>window.listing = [];</script></body></html>`, models.ModeHybrid},
		{"framework shell", `<html><body><div id="__next"></div><script src="/a.js"></script></body></html>`, models.ModeSPA},
		{"empty shell", `<html><body><div id="app"></div><script src="/a.js"></script></body></html>`, models.ModeSPA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(doc(t, tt.html), p); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFileSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, path, strings.Replace(listing, "<body>", `<head><link rel="canonical" href="https://www.ebay.com/sch/i.html"></head><body>`, 1))

	src, err := NewFile(path, "", profile(), false)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.URL != "https://www.ebay.com/sch/i.html" {
		t.Errorf("Expected canonical URL, got %s", snap.URL)
	}
	if n := snap.Doc.Find("li.item").Length(); n != 2 {
		t.Errorf("Expected 2 items, got %d", n)
	}
}

func TestNewFileMissing(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "nope.html"), "", profile(), false)
	if code, ok := CodeOf(err); !ok || code != ErrCodeInput {
		t.Errorf("Expected input error, got %v", err)
	}
}

func TestFileObserve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	writeFile(t, path, listing)

	src, _ := NewFile(path, "https://example.com/", profile(), false)
	notified := make(chan struct{}, 16)
	stop, err := src.Observe(context.Background(), func() { notified <- struct{}{} })
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	defer stop()

	writeFile(t, filepath.Join(dir, "other.html"), "x")
	writeFile(t, path, listing+"<!-- more -->")

	select {
	case <-notified:
	case <-time.After(3 * time.Second):
		t.Fatal("Expected notification after write")
	}
}

func TestOpenSelectsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, path, listing)

	src, err := Open(context.Background(), Options{Input: path, Profile: profile()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if src.Name() != "file" {
		t.Errorf("Expected file source, got %s", src.Name())
	}

	if _, err := Open(context.Background(), Options{Input: "https://x.test/", Mode: models.ModeSPA, Profile: profile()}); err == nil {
		t.Error("Expected spa without browser to fail")
	}
	if _, err := Open(context.Background(), Options{Input: "https://x.test/", Mode: "bogus"}); err == nil {
		t.Error("Expected unknown mode to fail")
	}
}

func TestOpenAutoDetectsStatic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listing))
	}))
	defer server.Close()

	src, err := Open(context.Background(), Options{Input: server.URL, Profile: profile(), HTTP: fastHTTP()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()
	if src.Name() != "static" {
		t.Errorf("Expected static, got %s", src.Name())
	}
}
