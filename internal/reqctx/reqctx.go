// Package reqctx tags each scan pass with an ID so log lines from the
// fetch, extract and merge stages can be correlated.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type key int

const scanKey key = 0

type ScanContext struct {
	ScanID    string
	Tool      string
	StartTime time.Time
}

// WithScan returns ctx carrying a fresh scan ID.
func WithScan(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, scanKey, &ScanContext{
		ScanID:    uuid.NewString(),
		Tool:      tool,
		StartTime: time.Now(),
	})
}

// FromContext returns the scan context, or a placeholder when none is set.
func FromContext(ctx context.Context) *ScanContext {
	if sc, ok := ctx.Value(scanKey).(*ScanContext); ok {
		return sc
	}
	return &ScanContext{ScanID: "unknown", StartTime: time.Now()}
}

// Logger returns a zerolog logger with the scan fields attached.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	sc := FromContext(ctx)
	lc := base.With().Str("scan_id", sc.ScanID)
	if sc.Tool != "" {
		lc = lc.Str("tool", sc.Tool)
	}
	return lc.Logger()
}

// Elapsed is the time since the scan started.
func Elapsed(ctx context.Context) time.Duration {
	return time.Since(FromContext(ctx).StartTime)
}

type ScanError struct {
	ScanID string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("[scan %s] %v", e.ScanID, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Wrap tags err with the scan ID from ctx.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &ScanError{ScanID: FromContext(ctx).ScanID, Err: err}
}
