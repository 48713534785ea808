package daemonrun

import (
	"fmt"
	"io"
	"log/slog"

	"volo/internal/archive"
	"volo/internal/audio"
	"volo/internal/bot"
	"volo/internal/capture"
	"volo/internal/config"
	"volo/internal/daemon"
	"volo/internal/delivery"
	"volo/internal/discord"
	"volo/internal/events"
	"volo/internal/history"
	"volo/internal/notifications"
	"volo/internal/playermap"
	"volo/internal/recording"
	"volo/internal/session"
)

// Build wires the recording pipeline, the observers and the gateway client.
// Nothing connects to the network until the daemon starts.
func Build(cfg *config.Config, logger *slog.Logger) (daemon.Components, error) {
	var closers []io.Closer
	fail := func(err error) (daemon.Components, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return daemon.Components{}, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fail(err)
	}

	client, err := discord.New(discord.Options{
		Token:      cfg.Discord.Token,
		GuildIDs:   cfg.Discord.GuildIDs,
		StatusText: cfg.Discord.StatusText,
	}, logger)
	if err != nil {
		return fail(err)
	}

	store := recording.NewStore(cfg.Paths.SessionsDir, loc)
	exporter := audio.NewExporter(cfg.FFmpegBinary(), logger)
	sessions := session.NewManager(store, exporter, session.Options{
		TrackBitrate: cfg.Recording.TrackBitrate,
		MixBitrate:   cfg.Recording.MixBitrate,
	}, logger)
	factory := capture.NewProcessFactory(capture.ProcessOptions{
		Command:     cfg.Capture.Command,
		Args:        cfg.Capture.Args,
		StopTimeout: cfg.StopTimeout(),
		Logger:      logger,
	})
	supervisor := capture.NewSupervisor(factory, cfg.RetryDelay(), logger)
	assembler := recording.NewAssembler(cfg.ChunkDuration(), client, logger)
	deliverer := delivery.NewDeliverer(delivery.Options{
		ExportDir:     cfg.Paths.ExportDir,
		MaxFileBytes:  cfg.Delivery.MaxFileBytes,
		UploadTimeout: cfg.UploadTimeout(),
	}, logger)
	players, err := playermap.OpenStore(cfg.Paths.PlayerMapFile)
	if err != nil {
		return fail(fmt.Errorf("open player map: %w", err))
	}

	observers, obsClosers, err := buildObservers(cfg, logger)
	closers = append(closers, obsClosers...)
	if err != nil {
		return fail(err)
	}

	b, err := bot.New(bot.Options{
		Language:      cfg.Recording.Language,
		Method:        cfg.Capture.Method,
		DataLength:    cfg.Capture.DataLength,
		MaxSpeakers:   cfg.Capture.MaxSpeakers,
		DrainInterval: cfg.DrainInterval(),
	}, bot.Dependencies{
		Platform:   client,
		Sessions:   sessions,
		Supervisor: supervisor,
		Assembler:  assembler,
		Deliverer:  deliverer,
		Players:    players,
		Observer:   observers,
		Logger:     logger,
	})
	if err != nil {
		return fail(err)
	}

	return daemon.Components{
		Handler: b,
		Gateway: client,
		Closers: closers,
	}, nil
}

// buildObservers returns the observers in the order they run: history first so
// the index is current before anything external is told.
func buildObservers(cfg *config.Config, logger *slog.Logger) (bot.Observers, []io.Closer, error) {
	var (
		observers bot.Observers
		closers   []io.Closer
	)

	hist, err := history.Open(cfg)
	if err != nil {
		return nil, closers, fmt.Errorf("open session history: %w", err)
	}
	closers = append(closers, hist)
	observers = append(observers, newHistoryObserver(hist, logger))

	arch, err := archive.New(cfg.Archive, logger)
	if err != nil {
		return nil, closers, err
	}
	if arch != nil {
		observers = append(observers, archive.NewObserver(arch, logger))
	}

	publisher := events.NewPublisher(cfg.Events)
	if publisher.Enabled() {
		closers = append(closers, publisher)
		observers = append(observers, events.NewObserver(publisher, logger))
	}

	observers = append(observers, notifications.NewObserver(notifications.NewService(cfg), logger))
	return observers, closers, nil
}
