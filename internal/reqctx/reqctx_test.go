package reqctx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestWithScan(t *testing.T) {
	ctx := WithScan(context.Background(), "baytally")
	sc := FromContext(ctx)
	if _, err := uuid.Parse(sc.ScanID); err != nil {
		t.Errorf("Expected UUID scan id, got %q", sc.ScanID)
	}
	if sc.Tool != "baytally" {
		t.Errorf("Expected tool baytally, got %q", sc.Tool)
	}

	other := FromContext(WithScan(context.Background(), "baytally"))
	if other.ScanID == sc.ScanID {
		t.Error("Expected distinct scan ids")
	}
}

func TestFromContextDefault(t *testing.T) {
	if got := FromContext(context.Background()).ScanID; got != "unknown" {
		t.Errorf("Expected unknown, got %q", got)
	}
}

func TestLoggerAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithScan(context.Background(), "hotbids")
	l := Logger(ctx, zerolog.New(&buf))
	l.Info().Msg("hi")

	out := buf.String()
	if !strings.Contains(out, `"tool":"hotbids"`) || !strings.Contains(out, FromContext(ctx).ScanID) {
		t.Errorf("Expected scan fields in log line, got %s", out)
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")
	ctx := WithScan(context.Background(), "")
	err := Wrap(ctx, base)
	if !errors.Is(err, base) {
		t.Error("Expected wrapped error to unwrap")
	}
	if !strings.Contains(err.Error(), FromContext(ctx).ScanID) {
		t.Errorf("Expected scan id in message, got %s", err)
	}
	if Wrap(ctx, nil) != nil {
		t.Error("Expected nil passthrough")
	}
}
