package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"volo/internal/services"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints a failed command's error followed by the operator hint
// for its error class. Interrupts print nothing.
func reportError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
	if hint := services.Hint(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}
