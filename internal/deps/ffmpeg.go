package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// CheckFFmpeg resolves the ffmpeg binary and records its version banner in
// Detail. A binary that exists but fails to report a version is unavailable.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Concatenates and mixes speaker tracks",
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Command = binary
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved

	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "-hide_banner", "-version").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("version probe failed: %v", err)
		return result
	}
	result.Available = true
	result.Detail = firstLine(out)
	return result
}

func firstLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
