package panel

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// commandFeed reads one command reader for the whole process and hands each
// line to whichever panel is subscribed at the time. Reading pauses while no
// panel is subscribed, so a closed panel never swallows input.
type commandFeed struct {
	r    io.Reader
	mu   sync.Mutex
	cond *sync.Cond
	sub  *Panel
}

var (
	feedMu sync.Mutex
	feeds  = map[io.Reader]*commandFeed{}
)

// subscribe routes lines from r to p until the returned func is called
func subscribe(r io.Reader, p *Panel) (unsubscribe func()) {
	feedMu.Lock()
	f, ok := feeds[r]
	if !ok {
		f = &commandFeed{r: r}
		f.cond = sync.NewCond(&f.mu)
		feeds[r] = f
		go f.run()
	}
	feedMu.Unlock()

	f.mu.Lock()
	f.sub = p
	f.cond.Broadcast()
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		if f.sub == p {
			f.sub = nil
		}
		f.mu.Unlock()
	}
}

// subscriber blocks until a panel is subscribed and returns it
func (f *commandFeed) subscriber() *Panel {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.sub == nil {
		f.cond.Wait()
	}
	return f.sub
}

func (f *commandFeed) run() {
	sc := bufio.NewScanner(f.r)
	for {
		f.subscriber()
		if !sc.Scan() {
			break
		}
		// a line read just before teardown waits for the next panel
		f.subscriber().dispatch(sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Debug().Err(err).Msg("Command reader stopped")
	}

	feedMu.Lock()
	if feeds[f.r] == f {
		delete(feeds, f.r)
	}
	feedMu.Unlock()
}

func (p *Panel) dispatch(line string) {
	if err := p.Handle(line); err != nil && !errors.Is(err, ErrClosed) {
		p.printf("%v\n", err)
	}
}
