package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"volo/internal/services"
)

func TestReportErrorAddsHintForClassifiedErrors(t *testing.T) {
	var buf bytes.Buffer
	err := services.Wrap(services.ErrConfiguration, "config", "load", "bot token is empty", nil)
	reportError(&buf, err)

	out := buf.String()
	if !strings.HasPrefix(out, "Error: configuration error: config: load: bot token is empty\n") {
		t.Fatalf("unexpected error line: %q", out)
	}
	if !strings.Contains(out, "Hint: review the volo configuration file\n") {
		t.Fatalf("expected configuration hint, got %q", out)
	}
}

func TestReportErrorPlainError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, errors.New("session 42 not found on disk"))
	if got := buf.String(); got != "Error: session 42 not found on disk\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestReportErrorSilentOnCancel(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, fmt.Errorf("daemon: %w", context.Canceled))
	if buf.Len() != 0 {
		t.Fatalf("expected no output on interrupt, got %q", buf.String())
	}
}
