package logctx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFromContextNil(t *testing.T) {
	logger := FromContext(nil)
	// Must not panic when used.
	logger.Debug().Msg("noop")
}

func TestFromContextEmpty(t *testing.T) {
	logger := FromContext(context.Background())
	logger.Debug().Msg("noop")
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), base)
	got := FromContext(ctx)
	got.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected log output to contain %q, got: %s", "hello", buf.String())
	}
}

func TestWithStrAddsField(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), base)
	ctx = WithStr(ctx, "game", "lotofacil")
	logger := FromContext(ctx)
	logger.Info().Msg("tagged")

	out := buf.String()
	if !strings.Contains(out, `"game":"lotofacil"`) {
		t.Errorf("expected game field in output, got: %s", out)
	}
}

func TestWithIntAddsField(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), base)
	ctx = WithInt(ctx, "draw_number", 3200)
	logger := FromContext(ctx)
	logger.Info().Msg("tagged")

	out := buf.String()
	if !strings.Contains(out, `"draw_number":3200`) {
		t.Errorf("expected draw_number field in output, got: %s", out)
	}
}

func TestNewConfiguredLoggerDebugLevel(t *testing.T) {
	logger := NewConfiguredLogger(true, false)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("GetLevel() = %v, want %v", logger.GetLevel(), zerolog.DebugLevel)
	}

	logger = NewConfiguredLogger(false, false)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("GetLevel() = %v, want %v", logger.GetLevel(), zerolog.InfoLevel)
	}
}
