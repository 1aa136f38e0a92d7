package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func setupBuffer(t *testing.T, enabled bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown, err := Setup(context.Background(), Config{Enabled: enabled}, logger)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return &buf
}

func TestStartSpanEnabled(t *testing.T) {
	buf := setupBuffer(t, true)

	ctx := WithRequestID(context.Background(), "req-1")
	_, end := StartSpan(ctx, "pipeline", "gate")
	end(nil)
	RecordMetric(ctx, "gate.score", 0.2, map[string]string{"is_food": "true"})

	out := buf.String()
	for _, want := range []string{"obs span start", "obs span end", "request_id=req-1", "metric=gate.score"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestStartSpanDisabledStillLogsFailures(t *testing.T) {
	buf := setupBuffer(t, false)

	_, end := StartSpan(context.Background(), "pipeline", "identify")
	end(nil)
	if strings.Contains(buf.String(), "obs span") {
		t.Fatalf("disabled span should be silent on success:\n%s", buf.String())
	}

	_, end = StartSpan(context.Background(), "pipeline", "identify")
	end(errors.New("boom"))
	if !strings.Contains(buf.String(), "error=boom") {
		t.Fatalf("failed span must be logged:\n%s", buf.String())
	}
}
