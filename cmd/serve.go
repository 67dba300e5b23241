package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tommyzliu/stickies/internal/broadcast"
	"github.com/tommyzliu/stickies/internal/clock"
	"github.com/tommyzliu/stickies/internal/config"
	"github.com/tommyzliu/stickies/internal/gateway"
	"github.com/tommyzliu/stickies/internal/i18n"
	"github.com/tommyzliu/stickies/internal/ipc"
	"github.com/tommyzliu/stickies/internal/persist"
	"github.com/tommyzliu/stickies/internal/settings"
	"github.com/tommyzliu/stickies/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stickies daemon",
	Long: `Run the daemon that owns the global settings and the workspace registry.

Windows connect to its Unix socket to read settings, dispatch actions and
subscribe to globalStoreChanged events. Edits made to settings.json while
the daemon runs are picked up and broadcast. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), paths, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, paths config.Paths, cfg *config.Config) error {
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	if err := config.InitDataDir(paths.DataDir); err != nil {
		return fmt.Errorf("failed to initialize data directory: %w", err)
	}

	catalog, err := i18n.NewCatalog()
	if err != nil {
		return err
	}
	if cfg.I18n.LocalesDir != "" {
		if err := catalog.LoadDir(cfg.I18n.LocalesDir); err != nil {
			return fmt.Errorf("failed to load locales: %w", err)
		}
	}
	if err := catalog.SetFallback(cfg.I18n.DefaultLanguage); err != nil {
		return err
	}

	cardDir, err := cfg.CardDir(paths)
	if err != nil {
		return err
	}

	file := persist.NewFile(paths.SettingsFile())
	writer := persist.NewWriter(file, logger, persist.WriterOptions{
		QueueSize:   cfg.Persist.QueueSize,
		MaxAttempts: cfg.Persist.MaxAttempts,
		Backoff:     cfg.RetryBackoff(),
	})

	store := settings.NewStore(settings.Options{
		Source:         file,
		Sink:           writer,
		Catalog:        catalog,
		DefaultCardDir: cardDir,
		Logger:         logger,
	})

	menu := newTrayMenu(store, logger)
	store.OnChange(menu.refresh)

	if err := store.Initialize(cfg.PreferredLanguage()); err != nil {
		logger.Warn("settings initialized with defaults", "error", err)
	}

	registryStore := workspace.NewFileStore(paths.WorkspacesFile())
	reg, found, err := registryStore.Load()
	if err != nil {
		return fmt.Errorf("failed to load workspace registry: %w", err)
	}

	workspaces, err := workspace.NewManager(reg, workspace.Options{
		Clock:             &clock.RealClock{},
		TransitionTimeout: cfg.TransitionTimeout(),
		Saver:             registryStore,
		Scheme:            cfg.Workspace.Scheme,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create workspace manager: %w", err)
	}
	if err := workspace.Bootstrap(workspaces, cfg.Workspace.InitialName); err != nil {
		return fmt.Errorf("failed to create initial workspace: %w", err)
	}
	if !found {
		logger.Info("created workspace registry", "path", registryStore.Path(), "current", workspaces.CurrentID())
	}

	bus := broadcast.NewBus(store, broadcast.Options{
		BufferSize: cfg.Broadcast.BufferSize,
		Logger:     logger,
	})
	defer bus.Close()

	if cfg.Broadcast.RedisURL != "" {
		mirror, err := broadcast.NewRedisMirror(cfg.Broadcast.RedisURL, cfg.Broadcast.RedisChannel, logger)
		if err != nil {
			logger.Warn("redis mirror disabled", "error", err)
		} else {
			bus.Subscribe(mirror)
			defer func() {
				bus.Close()
				mirror.Close()
			}()
			logger.Info("mirroring settings to redis", "channel", cfg.Broadcast.RedisChannel)
		}
	}

	gw := gateway.New(store, workspaces, bus, gateway.Options{Logger: logger})
	server := ipc.NewServer(paths.SocketFile(cfg.IPC.Socket), gw, logger)

	tooltip, _ := menu.labels()
	logger.Info("stickies daemon starting",
		"tray", tooltip,
		"languages", catalog.Languages(),
		"data_dir", paths.DataDir,
		"card_dir", store.State().CardDir,
		"language", store.State().I18n.Language,
		"workspace", workspaces.CurrentID(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writer.Run(gctx)
	})
	g.Go(func() error {
		// Flush once the gateway can no longer dispatch.
		<-gctx.Done()
		<-gw.Done()
		writer.Close()
		return nil
	})
	g.Go(func() error {
		return gw.Run(gctx)
	})
	g.Go(func() error {
		return server.Serve(gctx)
	})
	g.Go(func() error {
		return gw.WatchSettings(gctx, file, writer)
	})

	err = g.Wait()

	if perr := store.PersistErr(); perr != nil {
		logger.Warn("last settings write failed", "error", perr)
	}
	if serr := workspaces.SaveErr(); serr != nil {
		logger.Warn("last registry write failed", "error", serr)
	}
	logger.Info("stickies daemon stopped")
	return err
}
