package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sys/unix"

	"volo/internal/archive"
	"volo/internal/config"
	"volo/internal/deps"
	"volo/internal/logging"
	"volo/internal/playermap"
)

const checkTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckToken only verifies that a token is configured; validity is known once
// the gateway accepts it.
func CheckToken(token string) Result {
	const name = "Discord token"
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing (set DISCORD_BOT_TOKEN or discord.token)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckPlayerMap parses the player map when one is configured.
func CheckPlayerMap(path string) Result {
	const name = "Player map"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Optional: true, Detail: "not configured"}
	}
	m, err := playermap.Load(path)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%s (%d entries)", path, len(m))}
}

// CheckNtfy queries the health endpoint of the ntfy server hosting the topic.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"
	u, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Result{Name: name, Optional: true, Detail: "topic is not an absolute URL"}
	}
	health := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/v1/health"}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, health.String(), nil)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "Reachable"}
}

// CheckArchive verifies that the bucket endpoint answers with the configured
// credentials.
func CheckArchive(ctx context.Context, cfg config.Archive) Result {
	const name = "Archive"
	a, err := archive.New(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}
	if a == nil {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	exists, err := a.BucketExists(checkCtx)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeNetError(err)}
	}
	if !exists {
		return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("bucket %s will be created on first upload", cfg.Bucket)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("bucket %s reachable", cfg.Bucket)}
}

// CheckBrokers dials the first reachable Kafka broker.
func CheckBrokers(ctx context.Context, brokers []string) Result {
	const name = "Event brokers"
	var errs []error
	for _, broker := range brokers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		conn, err := kafka.DialContext(checkCtx, "tcp", broker)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", broker, err))
			continue
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Optional: true, Detail: broker + " reachable"}
	}
	return Result{Name: name, Optional: true, Detail: errors.Join(errs...).Error()}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := []deps.Status{deps.CheckFFmpeg(ctx, cfg.FFmpegBinary())}
	for _, req := range deps.Requirements(cfg) {
		if req.Name == "FFmpeg" {
			continue
		}
		statuses = append(statuses, deps.CheckBinaries([]deps.Requirement{req})...)
	}
	return statuses
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
