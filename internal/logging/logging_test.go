package logging

import (
	"context"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if logger := New(level, "text"); logger == nil {
			t.Fatalf("expected non-nil logger for level %q", level)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	if logger := New("info", "json"); logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123, got %q", got)
	}
}

func TestRequestID_Missing(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
}

func TestFromContext_Default(t *testing.T) {
	if logger := FromContext(context.Background()); logger == nil {
		t.Fatal("expected default logger, got nil")
	}
}

func TestL_WithRequestID(t *testing.T) {
	ctx := WithLogger(context.Background(), New("info", "text"))
	ctx = WithRequestID(ctx, "req-456")
	if logger := L(ctx); logger == nil {
		t.Fatal("expected non-nil logger")
	}
}
