package scan

import (
	"context"
	"runtime"
	"sync"

	"github.com/law-makers/tally/internal/ratelimit"
	"github.com/law-makers/tally/internal/source"
)

// MaxConcurrency caps the batch worker count.
const MaxConcurrency = 16

// OptimalConcurrency sizes the worker pool from the CPU count. Scans are
// I/O bound, so it runs a few workers per core.
func OptimalConcurrency() int {
	n := runtime.NumCPU() * 2
	if n > MaxConcurrency {
		n = MaxConcurrency
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Opener builds the source for one input.
type Opener func(ctx context.Context, input string) (source.Source, error)

// Item is the outcome for one batch input.
type Item struct {
	Input  string
	Result Result
	Err    error
}

// Batch scans many inputs into one store.
type Batch struct {
	scanner     *Scanner
	open        Opener
	concurrency int
}

// NewBatch returns a batch runner. concurrency <= 0 auto-tunes.
func NewBatch(s *Scanner, open Opener, concurrency int) *Batch {
	if concurrency <= 0 {
		concurrency = OptimalConcurrency()
	}
	return &Batch{scanner: s, open: open, concurrency: concurrency}
}

// Run scans inputs and streams one Item per input. Inputs on the same host
// run back to back in one worker so per-host rate limits are not contended
// from several goroutines.
func (b *Batch) Run(ctx context.Context, inputs []string) <-chan Item {
	out := make(chan Item, len(inputs))
	groups := GroupByHost(inputs)

	go func() {
		defer close(out)
		sem := make(chan struct{}, b.concurrency)
		var wg sync.WaitGroup

		for _, group := range groups {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				for _, in := range group {
					out <- Item{Input: in, Err: ctx.Err()}
				}
				continue
			}

			wg.Add(1)
			go func(group []string) {
				defer wg.Done()
				defer func() { <-sem }()
				for _, in := range group {
					out <- b.one(ctx, in)
				}
			}(group)
		}
		wg.Wait()
	}()
	return out
}

func (b *Batch) one(ctx context.Context, input string) Item {
	if err := ctx.Err(); err != nil {
		return Item{Input: input, Err: err}
	}
	src, err := b.open(ctx, input)
	if err != nil {
		return Item{Input: input, Err: err}
	}
	defer src.Close()

	res, err := b.scanner.Scan(ctx, src)
	return Item{Input: input, Result: res, Err: err}
}

// GroupByHost buckets inputs by host, keeping first-seen order. Local files
// share the "" bucket.
func GroupByHost(inputs []string) [][]string {
	index := make(map[string]int)
	var groups [][]string
	for _, in := range inputs {
		h := ratelimit.Host(in)
		i, ok := index[h]
		if !ok {
			i = len(groups)
			index[h] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], in)
	}
	return groups
}
