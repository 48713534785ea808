package services_test

import (
	"errors"
	"strings"
	"testing"

	"volo/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "audio", "concat", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"audio", "concat", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "validation", err: services.Wrap(services.ErrValidation, "bot", "language", "unknown", nil), want: false},
		{name: "configuration", err: services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil), want: false},
		{name: "external tool", err: services.Wrap(services.ErrExternalTool, "audio", "mix", "exit 1", nil), want: true},
		{name: "transient", err: services.Wrap(services.ErrTransient, "delivery", "upload", "reset", nil), want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHintCoversMarkers(t *testing.T) {
	if services.Hint(nil) != "" {
		t.Fatal("expected empty hint for nil error")
	}
	err := services.Wrap(services.ErrExternalTool, "audio", "concat", "", nil)
	if !strings.Contains(services.Hint(err), "external tool") {
		t.Fatalf("unexpected hint %q", services.Hint(err))
	}
	if got := services.Hint(errors.New("plain")); got != "" {
		t.Fatalf("unclassified error got hint %q", got)
	}
}
