package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"volo/internal/daemonrun"
	"volo/internal/logging"
	"volo/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		lines     int
		sessionID string
		guildID   string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display bot logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if sessionID != "" && guildID != "" {
				return errors.New("--session and --guild are mutually exclusive")
			}
			var match func(string) bool
			switch {
			case strings.TrimSpace(sessionID) != "":
				match = logs.SessionMatcher(sessionID)
			case strings.TrimSpace(guildID) != "":
				match = logs.FieldMatcher(logging.FieldGuildID, guildID)
			}

			path := daemonrun.CurrentLogPath(cfg)
			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Match: match}
			if lines <= 0 {
				opts.Offset = 0
			}
			printed := false
			for {
				result, err := logs.Tail(cmd.Context(), path, opts)
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				printed = printed || len(result.Lines) > 0
				if !follow {
					if !printed {
						fmt.Fprintf(out, "No log entries in %s\n", path)
					}
					return nil
				}
				if len(result.Lines) == 0 {
					// The log may not exist yet; avoid spinning until it does.
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(250 * time.Millisecond):
					}
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Second, Match: match}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for the whole file)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Only show entries of this session")
	cmd.Flags().StringVar(&guildID, "guild", "", "Only show entries of this guild")
	return cmd
}
