package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"volo/internal/config"
	"volo/internal/daemon"
	"volo/internal/history"
	"volo/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bot, dependency and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			return ctx.withHistory(func(cfg *config.Config, store *history.Store) error {
				var lines []string
				lines = append(lines, renderSectionHeader("Volo", colorize)...)
				lines = append(lines, instanceLine(cfg, colorize))
				lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				lines = append(lines, renderStatusLine("History", statusInfo, store.Path(), colorize))
				counts, err := store.CountByStatus(cmd.Context())
				if err != nil {
					lines = append(lines, renderStatusLine("Sessions", statusWarn, err.Error(), colorize))
				} else {
					lines = append(lines, renderStatusLine("Sessions", statusInfo, formatCounts(counts), colorize))
				}

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
				lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Preflight", colorize)...)
				lines = append(lines, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize)...)

				_, err = fmt.Fprintln(out, strings.Join(lines, "\n"))
				return err
			})
		},
	}
}

func instanceLine(cfg *config.Config, colorize bool) string {
	running, err := daemon.InstanceRunning(cfg)
	switch {
	case err != nil:
		return renderStatusLine("Bot", statusWarn, err.Error(), colorize)
	case running:
		return renderStatusLine("Bot", statusOK, "Running", colorize)
	default:
		return renderStatusLine("Bot", statusInfo, "Not running", colorize)
	}
}

func formatCounts(counts map[history.Status]int) string {
	order := []history.Status{history.StatusRecording, history.StatusStopped, history.StatusFinalized, history.StatusDelivered}
	parts := make([]string, 0, len(order))
	total := 0
	for _, status := range order {
		n := counts[status]
		total += n
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if total == 0 {
		return "none recorded"
	}
	return fmt.Sprintf("%d total (%s)", total, strings.Join(parts, ", "))
}
