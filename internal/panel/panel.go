// Package panel is the live surface of a watched page: it observes the
// source, debounces mutations into scans, merges results into the store and
// prints the view whenever the collection changes. Commands arrive as lines
// on a reader, one per keypress analog.
package panel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/tally/internal/export"
	"github.com/law-makers/tally/internal/scan"
	"github.com/law-makers/tally/internal/scheduler"
	"github.com/law-makers/tally/internal/source"
	urlutil "github.com/law-makers/tally/internal/utils/url"
	"github.com/law-makers/tally/internal/view"
	"github.com/law-makers/tally/pkg/models"
)

// ErrClosed is returned by operations on a closed panel
var ErrClosed = errors.New("panel closed")

// Renderer writes a view to w
type Renderer func(w io.Writer, v view.View) error

// Options configures a panel
type Options struct {
	Scanner *scan.Scanner
	Source  source.Source

	Debounce  time.Duration
	ExportDir string

	// Out receives rendered views and command feedback
	Out io.Writer
	// Commands is read line by line until EOF; nil disables the listener.
	// Panels opened on the same reader share it, the newest one receiving lines.
	Commands io.Reader

	Render    Renderer
	Now       func() time.Time
	AfterFunc scheduler.AfterFunc
}

// Panel is one open surface for one tool
type Panel struct {
	tool    string
	opts    Options
	scanner *scan.Scanner
	src     source.Source
	sched   *scheduler.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	outMu sync.Mutex
	done  chan struct{}
	once  sync.Once

	lastMu sync.Mutex
	last   scan.Result
	err    error
}

var (
	openMu   sync.Mutex
	regMu    sync.Mutex
	registry = map[string]*Panel{}
)

// Open builds a fresh panel for the scanner's tool. A panel already open for
// the same tool is closed first.
func Open(ctx context.Context, opts Options) (*Panel, error) {
	if opts.Scanner == nil || opts.Source == nil {
		return nil, fmt.Errorf("panel requires a scanner and a source")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Render == nil {
		opts.Render = MarkdownRenderer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	openMu.Lock()
	defer openMu.Unlock()

	tool := opts.Scanner.Profile().Name
	if old := Current(tool); old != nil {
		log.Debug().Str("tool", tool).Msg("Replacing open panel")
		old.Close()
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Panel{
		tool:    tool,
		opts:    opts,
		scanner: opts.Scanner,
		src:     opts.Source,
		ctx:     pctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	prefs := p.scanner.Store().Prefs()
	schedOpts := []scheduler.Option{scheduler.WithCapture(prefs.Capture)}
	if opts.AfterFunc != nil {
		schedOpts = append(schedOpts, scheduler.WithAfterFunc(opts.AfterFunc))
	}
	p.sched = scheduler.New(opts.Debounce, p.scan, schedOpts...)

	p.sched.OnTeardown(func() {
		if err := p.src.Close(); err != nil {
			log.Debug().Err(err).Str("tool", tool).Msg("Source close failed")
		}
	})

	stop, err := p.src.Observe(pctx, p.sched.Notify)
	if err != nil {
		p.sched.Teardown()
		cancel()
		return nil, fmt.Errorf("failed to observe %s: %w", p.src.URL(), err)
	}
	p.sched.OnTeardown(stop)

	regMu.Lock()
	registry[tool] = p
	regMu.Unlock()

	if note := p.Advisory(); note != "" {
		p.printf("%s\n", note)
	}
	if w := p.scanner.Store().Warning(); w != "" {
		p.printf("%s\n", w)
	}

	p.sched.ScanNow()

	go func() {
		select {
		case <-pctx.Done():
			p.Close()
		case <-p.done:
		}
	}()
	if opts.Commands != nil {
		p.sched.OnTeardown(subscribe(opts.Commands, p))
	}

	log.Info().
		Str("tool", tool).
		Str("source", p.src.Name()).
		Str("url", p.src.URL()).
		Bool("capture", prefs.Capture).
		Msg("Panel opened")
	return p, nil
}

// Current returns the open panel for tool, or nil
func Current(tool string) *Panel {
	regMu.Lock()
	defer regMu.Unlock()
	return registry[tool]
}

// HostAdvisory returns a note when pageURL is not on the profile's expected host
func HostAdvisory(p models.Profile, pageURL string) string {
	if p.ExpectedHost == "" || urlutil.HostMatches(pageURL, p.ExpectedHost) {
		return ""
	}
	return fmt.Sprintf("Note: this page is not on %s; %s may not find any items here.", p.ExpectedHost, p.Name)
}

// Advisory returns the host note for the watched page
func (p *Panel) Advisory() string {
	return HostAdvisory(p.scanner.Profile(), p.src.URL())
}

func (p *Panel) Tool() string { return p.tool }

func (p *Panel) Scheduler() *scheduler.Scheduler { return p.sched }

// Last returns the most recent scan result and its error
func (p *Panel) Last() (scan.Result, error) {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	return p.last, p.err
}

// Done is closed once the panel is torn down
func (p *Panel) Done() <-chan struct{} { return p.done }

// Wait blocks until the panel closes
func (p *Panel) Wait() { <-p.done }

// Close tears the panel down. Safe to call repeatedly.
func (p *Panel) Close() {
	p.once.Do(func() {
		p.sched.Teardown()
		p.cancel()

		regMu.Lock()
		if registry[p.tool] == p {
			delete(registry, p.tool)
		}
		regMu.Unlock()

		close(p.done)
		log.Info().Str("tool", p.tool).Int("scans", p.sched.Scans()).Msg("Panel closed")
	})
}

func (p *Panel) scan(trigger scheduler.Trigger) {
	res, err := p.scanner.Scan(p.ctx, p.src)

	p.lastMu.Lock()
	p.last, p.err = res, err
	p.lastMu.Unlock()

	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("url", p.src.URL()).Str("trigger", string(trigger)).Msg("Scan failed")
		if trigger == scheduler.TriggerManual {
			p.printf("Scan failed: %v\n", err)
		}
		return
	}
	if res.Changed || trigger == scheduler.TriggerManual {
		p.render()
	}
}

func (p *Panel) render() {
	st := p.scanner.Store()
	v := view.Build(st.Records(), st.Prefs())

	p.outMu.Lock()
	defer p.outMu.Unlock()
	if err := p.opts.Render(p.opts.Out, v); err != nil {
		log.Warn().Err(err).Msg("Render failed")
	}
}

func (p *Panel) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.opts.Out, format, args...)
}

// Help lists the panel commands
const Help = `Commands:
  s, scan            scan now
  p, pause           pause or resume capture
  c, clear           clear all captured items
  e, export          save a CSV export
  /text              search (a bare / clears the search)
  sort <mode>        newest, oldest, price-asc, price-desc, title
  status <value>     filter by status (all clears it)
  v, view            print the current view
  q, esc             close`

// Handle runs one command line. It returns ErrClosed once the panel closed.
func (p *Panel) Handle(line string) error {
	if p.sched.Closed() {
		return ErrClosed
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "/") {
		return p.updatePrefs(func(pr *models.Prefs) { pr.Query = strings.TrimSpace(line[1:]) })
	}

	cmd, arg := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd, arg = line[:i], strings.TrimSpace(line[i+1:])
	}

	switch strings.ToLower(cmd) {
	case "s", "scan":
		p.sched.ScanNow()
	case "p", "pause":
		on := !p.sched.Capture()
		p.sched.SetCapture(on)
		p.persist(func(pr *models.Prefs) { pr.Capture = on })
		if on {
			p.printf("Capture resumed\n")
		} else {
			p.printf("Capture paused\n")
		}
	case "c", "clear":
		p.scanner.Store().Clear()
		p.render()
	case "e", "export":
		path, err := export.SaveCSV(p.opts.ExportDir, p.tool, p.opts.Now(), p.scanner.Store().Records())
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		p.printf("Exported to %s\n", path)
	case "sort":
		mode, ok := models.ParseSortMode(arg)
		if !ok {
			return fmt.Errorf("unknown sort mode %q", arg)
		}
		return p.updatePrefs(func(pr *models.Prefs) { pr.Sort = mode })
	case "status":
		if strings.EqualFold(arg, view.StatusAll) {
			arg = ""
		}
		return p.updatePrefs(func(pr *models.Prefs) { pr.Status = arg })
	case "v", "view":
		p.render()
	case "h", "help", "?":
		p.printf("%s\n", Help)
	case "q", "esc", "quit", "exit":
		p.Close()
		return ErrClosed
	default:
		return fmt.Errorf("unknown command %q (type help)", cmd)
	}
	return nil
}

// persist applies fn to the stored prefs and reports whether they changed
func (p *Panel) persist(fn func(*models.Prefs)) bool {
	st := p.scanner.Store()
	pr := st.Prefs()
	fn(&pr)
	return st.SetPrefs(pr)
}

func (p *Panel) updatePrefs(fn func(*models.Prefs)) error {
	if p.persist(fn) {
		p.render()
	}
	return nil
}

// MarkdownRenderer prints the summary line and a markdown table
func MarkdownRenderer(w io.Writer, v view.View) error {
	out, err := view.RenderMarkdown(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n\n%s\n\n", view.Summary(v), out)
	return err
}
