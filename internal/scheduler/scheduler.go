// Package scheduler coalesces DOM mutation bursts into single scans.
//
// The scheduler moves between Idle, Scheduled and Scanning. A mutation while
// capture is enabled (re)starts the debounce timer; only the trailing mutation
// of a burst leads to a scan. Manual scans run immediately and leave the timer
// alone. Disabling capture stops new scheduling but a pending timer still fires.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultDelay is the debounce window between the last mutation and the scan
const DefaultDelay = 250 * time.Millisecond

// State is the scheduler's position in the scan cycle
type State int

const (
	Idle State = iota
	Scheduled
	Scanning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Scanning:
		return "scanning"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Trigger tells the scan function why it runs
type Trigger string

const (
	TriggerMutation Trigger = "mutation"
	TriggerManual   Trigger = "manual"
)

// Timer is the subset of *time.Timer the scheduler needs
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer that calls f after d
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler owns the debounce timer and the teardown hooks of one panel.
type Scheduler struct {
	delay     time.Duration
	scan      func(Trigger)
	afterFunc AfterFunc

	scanMu sync.Mutex

	mu       sync.Mutex
	timer    Timer
	gen      uint64
	pending  bool
	scanning int
	capture  bool
	closed   bool
	scans    int
	cleanups []func()
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithAfterFunc replaces the timer factory
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = f
	}
}

// WithCapture sets the initial capture flag (enabled by default)
func WithCapture(on bool) Option {
	return func(s *Scheduler) {
		s.capture = on
	}
}

// New creates an idle scheduler that calls scan for every scan it runs
func New(delay time.Duration, scan func(Trigger), opts ...Option) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Scheduler{
		delay:     delay,
		scan:      scan,
		afterFunc: realAfterFunc,
		capture:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify records an observed mutation
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.capture {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = true
	s.timer = s.afterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	s.run(TriggerMutation)
}

// ScanNow runs a scan immediately, regardless of capture and pending timers
func (s *Scheduler) ScanNow() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.run(TriggerManual)
}

// run executes one scan; scans never overlap
func (s *Scheduler) run(trigger Trigger) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.mu.Lock()
	s.scanning++
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("trigger", string(trigger)).Msg("Scan panicked")
		}
		s.mu.Lock()
		s.scanning--
		s.scans++
		s.mu.Unlock()
	}()

	start := time.Now()
	s.scan(trigger)
	log.Debug().
		Str("trigger", string(trigger)).
		Dur("took", time.Since(start)).
		Msg("Scan finished")
}

// SetCapture enables or disables mutation-driven scans
func (s *Scheduler) SetCapture(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture = on
}

// Capture reports whether mutations schedule scans
func (s *Scheduler) Capture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}

// State returns the current state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.scanning > 0:
		return Scanning
	case s.pending:
		return Scheduled
	default:
		return Idle
	}
}

// Scans returns how many scans completed
func (s *Scheduler) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// OnTeardown registers fn to run once at teardown, in reverse registration order.
// Registering after teardown runs fn immediately.
func (s *Scheduler) OnTeardown(fn func()) {
	s.mu.Lock()
	if !s.closed {
		s.cleanups = append(s.cleanups, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Teardown stops the timer and runs every cleanup hook. Safe to call repeatedly.
func (s *Scheduler) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	log.Debug().Int("hooks", len(cleanups)).Msg("Scheduler torn down")
}

// Closed reports whether Teardown ran
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
