package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_NonTerminalWritesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, false)
	l.Info().Str("table", "dim_time").Msg("stage=write ok")
	l.Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, `"table":"dim_time"`) {
		t.Fatalf("expected JSON field, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, true)
	l.Debug().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := WithContext(context.Background(), NewWithWriter(&buf))
	l := FromContext(ctx)
	l.Info().Msg("test")
	if buf.Len() == 0 {
		t.Fatalf("expected output from stored logger")
	}
}

func TestFromContext_DefaultIsDisabled(t *testing.T) {
	t.Parallel()

	l := FromContext(context.Background())
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("level=%v, want disabled", l.GetLevel())
	}
}

func TestWithFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := WithFields(NewWithWriter(&buf), map[string]any{"run_id": "abc", "rows": 3})
	l.Info().Msg("x")
	out := buf.String()
	if !strings.Contains(out, `"run_id":"abc"`) || !strings.Contains(out, `"rows":3`) {
		t.Fatalf("fields missing: %q", out)
	}
}
