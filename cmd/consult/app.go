package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alkime/consults/internal/audio"
	"github.com/alkime/consults/internal/backend"
	"github.com/alkime/consults/internal/catalog"
	"github.com/alkime/consults/internal/config"
	"github.com/alkime/consults/internal/logger"
	"github.com/alkime/consults/internal/playback"
	"github.com/alkime/consults/internal/portal"
	"github.com/alkime/consults/internal/session"
	"github.com/alkime/consults/internal/storage"
	"github.com/alkime/consults/internal/upload"
	"github.com/alkime/consults/internal/workdir"
)

// app is the wired client stack shared by the subcommands.
type app struct {
	cfg     *config.ClientConfig
	dir     workdir.Dir
	logger  *slog.Logger
	client  *backend.Client
	store   *storage.Store
	levels  *audio.LevelBuffer
	portal  *portal.Portal
	logFile io.Closer
}

// appOptions controls how much of the stack a command needs.
type appOptions struct {
	// logToFile sends logs to the work dir log file instead of stderr,
	// for commands that hand the terminal to the TUI.
	logToFile bool
	// needBucket checks the storage bucket before anything is recorded.
	needBucket bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dir, err := workdir.Resolve(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	if err := dir.Prep(); err != nil {
		return nil, fmt.Errorf("failed to prepare working directory: %w", err)
	}

	a := &app{cfg: cfg, dir: dir}

	var logOut io.Writer = os.Stderr
	if opts.logToFile {
		f, err := os.OpenFile(dir.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logOut = f
		a.logFile = f
	}
	a.logger = logger.SetupCLILogger(logOut, cfg.LogLevel)

	a.client = backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.HTTPTimeout)

	a.store, err = storage.New(cfg.Storage)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to configure storage: %w", err)
	}

	if opts.needBucket {
		if err := a.store.EnsureBucket(ctx); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("storage unavailable: %w", err)
		}
	}

	fetcher := storage.NewFetcher(cfg.HTTPTimeout, storage.WithResolver(a.store))

	devConf := audio.DefaultDeviceConfig()
	devConf.SampleRate = cfg.SampleRate
	devConf.ChunkInterval = cfg.ChunkInterval
	a.levels = audio.NewLevelBuffer(cfg.SampleRate)

	sess := session.NewController(
		func() audio.CaptureDevice { return audio.NewMicrophone(devConf, a.levels) },
		session.WithLogger(a.logger),
	)

	uploads := upload.NewCoordinator(a.client, a.store,
		upload.WithJournal(upload.NewFileJournal(dir.Pending())),
		upload.WithFormat(devConf.ChunkFormat),
		upload.WithLogger(a.logger),
	)

	player := audio.NewPlayer(fetcher)
	opener := playback.OpenerFunc(func(ctx context.Context, url string) (playback.Media, error) {
		track, err := player.Open(ctx, url)
		if err != nil {
			return nil, err
		}

		return track, nil
	})

	a.portal = portal.New(
		sess,
		uploads,
		catalog.New(a.client, a.logger),
		playback.NewController(opener,
			playback.WithSampleInterval(cfg.ProgressInterval),
			playback.WithLogger(a.logger),
		),
		portal.WithAppointments(a.client),
		portal.WithFetcher(fetcher),
		portal.WithResolver(a.store),
		portal.WithLogger(a.logger),
	)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.portal != nil {
		a.portal.Close(ctx)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}
}
