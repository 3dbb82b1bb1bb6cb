package panel

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/tally/internal/scan"
	"github.com/law-makers/tally/internal/scheduler"
	"github.com/law-makers/tally/internal/source"
	"github.com/law-makers/tally/internal/store"
	"github.com/law-makers/tally/internal/view"
	"github.com/law-makers/tally/pkg/models"
)

const page = `<html><body><ul>
<li class="s-item"><a class="s-item__link" href="/itm/111"><span class="s-item__title">Vintage Watch</span></a><span class="s-item__price">$25.00</span></li>
</ul></body></html>`

const pageMore = `<html><body><ul>
<li class="s-item"><a class="s-item__link" href="/itm/111"><span class="s-item__title">Vintage Watch</span></a><span class="s-item__price">$25.00</span></li>
<li class="s-item"><a class="s-item__link" href="/itm/222"><span class="s-item__title">Pocket Knife</span></a><span class="s-item__price">$10.00</span></li>
</ul></body></html>`

func profile() models.Profile {
	return models.Profile{
		Name:          "baytally",
		ExpectedHost:  "ebay.com",
		Anchors:       []string{"a.s-item__link"},
		Containers:    []string{"li.s-item"},
		Titles:        []string{".s-item__title"},
		Prices:        []string{".s-item__price"},
		MarkerPrefix:  "tally-id-",
		ItemIDPattern: `/itm/(\d+)`,
	}
}

type fakeSource struct {
	mu     sync.Mutex
	url    string
	html   string
	notify func()
	closed bool
	stops  int
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) URL() string  { return f.url }

func (f *fakeSource) Snapshot(ctx context.Context) (*source.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, source.ErrClosed
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return nil, err
	}
	return &source.Snapshot{URL: f.url, Doc: doc}, nil
}

func (f *fakeSource) Observe(ctx context.Context, notify func()) (func(), error) {
	f.mu.Lock()
	f.notify = notify
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.stops++
		f.mu.Unlock()
	}, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) set(html string) {
	f.mu.Lock()
	f.html = html
	f.mu.Unlock()
}

func (f *fakeSource) mutate() {
	f.mu.Lock()
	n := f.notify
	f.mu.Unlock()
	n()
}

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

// clock holds pending timer callbacks until flushed
type clock struct {
	mu      sync.Mutex
	pending []func()
}

func (c *clock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
	return &fakeTimer{}
}

func (c *clock) flush() {
	c.mu.Lock()
	fns := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func (c *clock) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

type recorder struct {
	mu    sync.Mutex
	views []view.View
}

func (r *recorder) render(w io.Writer, v view.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recorder) last() view.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

type harness struct {
	panel *Panel
	src   *fakeSource
	store *store.Store
	clock *clock
	rec   *recorder
}

func open(t *testing.T, st *store.Store, html string) *harness {
	t.Helper()
	if st == nil {
		st = store.Open("baytally", store.NewMemoryBackend())
	}
	sc, err := scan.New(profile(), st)
	if err != nil {
		t.Fatalf("scan.New failed: %v", err)
	}
	h := &harness{
		src:   &fakeSource{url: "https://www.ebay.com/sch/i.html", html: html},
		store: st,
		clock: &clock{},
		rec:   &recorder{},
	}
	p, err := Open(context.Background(), Options{
		Scanner:   sc,
		Source:    h.src,
		ExportDir: t.TempDir(),
		Render:    h.rec.render,
		AfterFunc: h.clock.AfterFunc,
		Now:       func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local) },
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	h.panel = p
	t.Cleanup(p.Close)
	return h
}

func TestOpenScansImmediately(t *testing.T) {
	h := open(t, nil, page)

	if h.store.Len() != 1 {
		t.Errorf("Expected 1 record after open, got %d", h.store.Len())
	}
	if h.rec.count() != 1 {
		t.Errorf("Expected 1 render, got %d", h.rec.count())
	}
	if Current("baytally") != h.panel {
		t.Error("Expected panel to be registered for its tool")
	}
	if h.panel.Advisory() != "" {
		t.Errorf("Expected no advisory on the expected host, got %q", h.panel.Advisory())
	}
}

func TestMutationsAreDebounced(t *testing.T) {
	h := open(t, nil, page)

	h.src.set(pageMore)
	h.src.mutate()
	h.src.mutate()
	h.src.mutate()
	if h.store.Len() != 1 {
		t.Errorf("Expected no scan before the delay elapses, got %d records", h.store.Len())
	}

	h.clock.flush()
	if got := h.panel.Scheduler().Scans(); got != 2 {
		t.Errorf("Expected 2 scans (open + one debounced), got %d", got)
	}
	if h.store.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", h.store.Len())
	}
	if h.rec.count() != 2 {
		t.Errorf("Expected a render for the changed collection, got %d renders", h.rec.count())
	}
}

func TestUnchangedScanDoesNotRender(t *testing.T) {
	h := open(t, nil, page)

	h.src.mutate()
	h.clock.flush()
	if h.rec.count() != 1 {
		t.Errorf("Expected only the initial render, got %d", h.rec.count())
	}

	// manual scans always render
	if err := h.panel.Handle("s"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if h.rec.count() != 2 {
		t.Errorf("Expected manual scan to render, got %d renders", h.rec.count())
	}
}

func TestPauseStopsCaptureAndPersists(t *testing.T) {
	h := open(t, nil, page)

	if err := h.panel.Handle("p"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if h.store.Prefs().Capture {
		t.Error("Expected capture preference to be off")
	}

	h.src.set(pageMore)
	h.src.mutate()
	if h.clock.len() != 0 {
		t.Errorf("Expected paused panel to ignore mutations, got %d timers", h.clock.len())
	}

	// manual scan still works while paused
	if err := h.panel.Handle("scan"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if h.store.Len() != 2 {
		t.Errorf("Expected manual scan to merge while paused, got %d records", h.store.Len())
	}

	if err := h.panel.Handle("pause"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !h.store.Prefs().Capture {
		t.Error("Expected capture preference to be back on")
	}
}

func TestPausedPrefsRestoredOnOpen(t *testing.T) {
	st := store.Open("baytally", store.NewMemoryBackend())
	prefs := models.DefaultPrefs()
	prefs.Capture = false
	st.SetPrefs(prefs)

	h := open(t, st, page)
	if h.panel.Scheduler().Capture() {
		t.Error("Expected scheduler to start with capture off")
	}
	if h.store.Len() != 1 {
		t.Errorf("Expected the initial scan to run regardless of capture, got %d records", h.store.Len())
	}
}

func TestReopenReplacesPanel(t *testing.T) {
	st := store.Open("baytally", store.NewMemoryBackend())
	first := open(t, st, page)
	second := open(t, st, page)

	select {
	case <-first.panel.Done():
	default:
		t.Fatal("Expected the first panel to be closed")
	}
	if !first.src.closed {
		t.Error("Expected the first source to be closed")
	}
	if first.src.stops != 1 {
		t.Errorf("Expected observer stop to run once, got %d", first.src.stops)
	}
	if Current("baytally") != second.panel {
		t.Error("Expected the second panel to be registered")
	}
	if second.store.Len() != 1 {
		t.Errorf("Expected store to keep 1 record, got %d", second.store.Len())
	}
}

func TestPrefsCommands(t *testing.T) {
	h := open(t, nil, pageMore)

	tests := []struct {
		line  string
		check func(models.Prefs) bool
		rows  int
	}{
		{"/knife", func(p models.Prefs) bool { return p.Query == "knife" }, 1},
		{"sort title", func(p models.Prefs) bool { return p.Sort == models.SortTitle }, 1},
		{"/", func(p models.Prefs) bool { return p.Query == "" }, 2},
		{"status sold", func(p models.Prefs) bool { return p.Status == "sold" }, 0},
		{"status all", func(p models.Prefs) bool { return p.Status == "" }, 2},
	}

	for _, tt := range tests {
		if err := h.panel.Handle(tt.line); err != nil {
			t.Fatalf("Handle(%q) failed: %v", tt.line, err)
		}
		if !tt.check(h.store.Prefs()) {
			t.Errorf("Handle(%q): unexpected prefs %+v", tt.line, h.store.Prefs())
		}
		if got := len(h.rec.last().Rows); got != tt.rows {
			t.Errorf("Handle(%q): expected %d rows, got %d", tt.line, tt.rows, got)
		}
	}

	if err := h.panel.Handle("sort sideways"); err == nil {
		t.Error("Expected error for unknown sort mode")
	}
	if err := h.panel.Handle("dance"); err == nil {
		t.Error("Expected error for unknown command")
	}
}

func TestClearAndExport(t *testing.T) {
	h := open(t, nil, pageMore)

	if err := h.panel.Handle("e"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	path := filepath.Join(h.panel.opts.ExportDir, "baytally-2026-03-04.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected export file at %s: %v", path, err)
	}
	if !strings.Contains(string(data), "Pocket Knife") {
		t.Errorf("Expected export to contain records, got %q", string(data))
	}

	if err := h.panel.Handle("clear"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if h.store.Len() != 0 {
		t.Errorf("Expected empty store, got %d", h.store.Len())
	}
	if h.rec.last().Empty != view.EmptyNothingCaptured {
		t.Errorf("Expected empty-state message, got %q", h.rec.last().Empty)
	}
}

func TestQuitClosesPanel(t *testing.T) {
	h := open(t, nil, page)

	if err := h.panel.Handle("q"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if !h.panel.Scheduler().Closed() {
		t.Error("Expected scheduler to be torn down")
	}
	if Current("baytally") != nil {
		t.Error("Expected registry entry to be removed")
	}
	if err := h.panel.Handle("s"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}

	// mutations after teardown do nothing
	h.src.mutate()
	if h.clock.len() != 0 {
		t.Errorf("Expected no timers after close, got %d", h.clock.len())
	}
	h.panel.Close()
}

func TestContextCancelClosesPanel(t *testing.T) {
	sc, err := scan.New(profile(), store.Open("baytally", store.NewMemoryBackend()))
	if err != nil {
		t.Fatalf("scan.New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p, err := Open(ctx, Options{Scanner: sc, Source: &fakeSource{url: "https://ebay.com/", html: page}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	cancel()

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected panel to close when the context is cancelled")
	}
}

func TestCommandsReader(t *testing.T) {
	sc, err := scan.New(profile(), store.Open("baytally", store.NewMemoryBackend()))
	if err != nil {
		t.Fatalf("scan.New failed: %v", err)
	}
	p, err := Open(context.Background(), Options{
		Scanner:  sc,
		Source:   &fakeSource{url: "https://ebay.com/", html: page},
		Commands: strings.NewReader("p\nq\n"),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected q to close the panel")
	}
	if sc.Store().Prefs().Capture {
		t.Error("Expected p to turn capture off")
	}
}

func openWithCommands(t *testing.T, st *store.Store, r io.Reader) *Panel {
	t.Helper()
	sc, err := scan.New(profile(), st)
	if err != nil {
		t.Fatalf("scan.New failed: %v", err)
	}
	p, err := Open(context.Background(), Options{
		Scanner:  sc,
		Source:   &fakeSource{url: "https://ebay.com/", html: page},
		Commands: r,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return p
}

func TestClosedPanelLeavesCommandsForNextPanel(t *testing.T) {
	pr, pw := io.Pipe()

	firstStore := store.Open("baytally", store.NewMemoryBackend())
	first := openWithCommands(t, firstStore, pr)
	first.Close()

	written := make(chan error, 1)
	go func() {
		_, err := io.WriteString(pw, "sort title\n")
		written <- err
	}()
	select {
	case err := <-written:
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the pending read to take the line")
	}
	time.Sleep(50 * time.Millisecond)
	if got := firstStore.Prefs().Sort; got == models.SortTitle {
		t.Error("Expected the closed panel not to handle the command")
	}

	secondStore := store.Open("baytally", store.NewMemoryBackend())
	second := openWithCommands(t, secondStore, pr)
	defer second.Close()
	defer pw.Close()

	deadline := time.Now().Add(2 * time.Second)
	for secondStore.Prefs().Sort != models.SortTitle {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the next panel to receive the command, got sort %q", secondStore.Prefs().Sort)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// q closes the panel from the reader itself; nothing reads after that
	go func() {
		_, err := io.WriteString(pw, "q\n")
		written <- err
	}()
	<-written
	select {
	case <-second.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected q to close the panel")
	}
	go func() {
		_, err := io.WriteString(pw, "sort price-asc\n")
		written <- err
	}()
	select {
	case <-written:
		t.Error("Expected the write to block with no open panel")
	case <-time.After(100 * time.Millisecond):
	}

	third := openWithCommands(t, secondStore, pr)
	defer third.Close()
	select {
	case <-written:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the reopened panel to read the line")
	}
	deadline = time.Now().Add(2 * time.Second)
	for secondStore.Prefs().Sort != models.SortPriceAsc {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the reopened panel to handle the command, got sort %q", secondStore.Prefs().Sort)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHostAdvisory(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.ebay.com/sch/i.html", false},
		{"https://m.ebay.com/itm/1", false},
		{"https://example.com/", true},
		{"file:///tmp/page.html", true},
	}
	for _, tt := range tests {
		got := HostAdvisory(profile(), tt.url) != ""
		if got != tt.want {
			t.Errorf("HostAdvisory(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}

	p := profile()
	p.ExpectedHost = ""
	if HostAdvisory(p, "https://example.com/") != "" {
		t.Error("Expected no advisory without an expected host")
	}
}
