package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"volo/internal/audio"
	"volo/internal/config"
	"volo/internal/delivery"
	"volo/internal/discord"
	"volo/internal/history"
	"volo/internal/logging"
	"volo/internal/session"
)

const timeLayout = "2006-01-02 15:04:05"

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and reprocess recorded sessions",
	}
	cmd.AddCommand(newSessionsListCommand(ctx))
	cmd.AddCommand(newSessionsShowCommand(ctx))
	cmd.AddCommand(newSessionsExportCommand(ctx))
	cmd.AddCommand(newSessionsDeliverCommand(ctx))
	return cmd
}

func cliLogger(cfg *config.Config) *slog.Logger {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

type sessionRow struct {
	SessionID       string `json:"session_id"`
	GuildID         string `json:"guild_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	Status          string `json:"status"`
	StartedAt       string `json:"started_at"`
	Lines           int    `json:"lines"`
	Tracks          int    `json:"tracks"`
	Mixed           bool   `json:"mixed"`
	ExportError     string `json:"export_error,omitempty"`
	DeliveryOutcome string `json:"delivery_outcome,omitempty"`
	FailedUploads   int    `json:"failed_uploads"`
	RootDir         string `json:"root_dir"`
}

func toSessionRow(rec *history.Record) sessionRow {
	return sessionRow{
		SessionID:       rec.SessionID,
		GuildID:         rec.GuildID,
		ChannelID:       rec.ChannelID,
		Status:          string(rec.Status),
		StartedAt:       formatTime(rec.StartedAt),
		Lines:           rec.Lines,
		Tracks:          rec.Tracks,
		Mixed:           rec.Mixed,
		ExportError:     rec.ExportError,
		DeliveryOutcome: rec.DeliveryOutcome,
		FailedUploads:   rec.FailedUploads,
		RootDir:         rec.RootDir,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var (
		guildID string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				records, err := store.List(cmd.Context(), strings.TrimSpace(guildID), limit)
				if err != nil {
					return err
				}
				rows := make([]sessionRow, 0, len(records))
				for _, rec := range records {
					rows = append(rows, toSessionRow(rec))
				}
				if asJSON {
					return writeJSON(cmd, rows)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{
						r.SessionID,
						r.GuildID,
						r.Status,
						r.StartedAt,
						strconv.Itoa(r.Lines),
						strconv.Itoa(r.Tracks),
						r.DeliveryOutcome,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Guild", "Status", "Started", "Lines", "Tracks", "Delivery"},
					table,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "Only list sessions of this guild")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions (0 for all)")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and the artifacts on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				id := strings.TrimSpace(args[0])
				rec, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				sessions, err := ctx.sessionStore()
				if err != nil {
					return err
				}
				var artifacts []string
				rootDir := ""
				if s, openErr := sessions.Open(id); openErr == nil {
					rootDir = s.RootDir
					artifacts = session.RelativeArtifacts(s, session.Artifacts(s))
				} else if rec == nil {
					return openErr
				}

				row := sessionRow{SessionID: id, RootDir: rootDir}
				if rec != nil {
					row = toSessionRow(rec)
				}
				if asJSON {
					return writeJSON(cmd, struct {
						sessionRow
						Artifacts []string `json:"artifacts"`
					}{row, artifacts})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:    %s\n", row.SessionID)
				if rec == nil {
					fmt.Fprintln(out, "History:    not recorded")
				} else {
					fmt.Fprintf(out, "Guild:      %s\n", row.GuildID)
					fmt.Fprintf(out, "Status:     %s\n", row.Status)
					fmt.Fprintf(out, "Started:    %s\n", row.StartedAt)
					fmt.Fprintf(out, "Lines:      %d\n", row.Lines)
					fmt.Fprintf(out, "Tracks:     %d (mixed: %s)\n", row.Tracks, yesNo(row.Mixed))
					if row.ExportError != "" {
						fmt.Fprintf(out, "Export:     %s\n", row.ExportError)
					}
					if row.DeliveryOutcome != "" {
						fmt.Fprintf(out, "Delivery:   %s (%d failed)\n", row.DeliveryOutcome, row.FailedUploads)
					}
				}
				fmt.Fprintf(out, "Directory:  %s\n", row.RootDir)
				if len(artifacts) == 0 {
					fmt.Fprintln(out, "Artifacts:  none")
					return nil
				}
				fmt.Fprintln(out, "Artifacts:")
				for _, a := range artifacts {
					fmt.Fprintf(out, "  - %s\n", a)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newSessionsExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <session-id>",
		Short: "Rebuild speaker tracks and the mixed track from the recorded chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.sessionStore()
			if err != nil {
				return err
			}
			s, err := store.Open(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			logger := cliLogger(cfg)
			mgr := session.NewManager(store, audio.NewExporter(cfg.FFmpegBinary(), logger), session.Options{
				TrackBitrate: cfg.Recording.TrackBitrate,
				MixBitrate:   cfg.Recording.MixBitrate,
			}, logger)
			tracks, mixed, exportErr := mgr.ExportAudio(cmd.Context(), s)

			out := cmd.OutOrStdout()
			for _, t := range session.RelativeArtifacts(s, tracks) {
				fmt.Fprintf(out, "Track: %s\n", t)
			}
			if mixed != "" {
				fmt.Fprintf(out, "Mixed: %s\n", session.RelativeArtifacts(s, []string{mixed})[0])
			}
			if len(tracks) == 0 && exportErr == nil {
				fmt.Fprintln(out, "No speaker audio found")
			}
			if exportErr != nil {
				return fmt.Errorf("audio export incomplete: %w", exportErr)
			}
			return nil
		},
	}
}

func newSessionsDeliverCommand(ctx *commandContext) *cobra.Command {
	var channelID string
	cmd := &cobra.Command{
		Use:   "deliver <session-id>",
		Short: "Upload a session's artifacts to a text channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(cfg *config.Config, hist *history.Store) error {
				id := strings.TrimSpace(args[0])
				channel := strings.TrimSpace(channelID)
				rec, err := hist.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if channel == "" && rec != nil {
					channel = rec.ChannelID
				}
				if channel == "" {
					return errors.New("no channel recorded for this session; pass --channel")
				}
				store, err := ctx.sessionStore()
				if err != nil {
					return err
				}
				s, err := store.Open(id)
				if err != nil {
					return err
				}

				logger := cliLogger(cfg)
				client, err := discord.New(discord.Options{Token: cfg.Discord.Token}, logger)
				if err != nil {
					return err
				}
				deliverer := delivery.NewDeliverer(delivery.Options{
					ExportDir:     cfg.Paths.ExportDir,
					MaxFileBytes:  cfg.Delivery.MaxFileBytes,
					UploadTimeout: cfg.UploadTimeout(),
				}, logger)
				report := deliverer.Deliver(cmd.Context(), client.Channel(channel), s.ID, s.RootDir, session.Artifacts(s))
				if rec != nil {
					if err := hist.RecordDelivery(cmd.Context(), id, report.Outcome(), len(report.Failed)); err != nil {
						logger.Warn("history update failed", logging.Error(err))
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %d file(s), %d failed\n", len(report.Uploaded), len(report.Failed))
				if report.Status != "" {
					fmt.Fprintln(out, report.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "Target text channel id (defaults to the channel the recording started from)")
	return cmd
}
