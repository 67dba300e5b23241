package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/config"
	"github.com/tommyzliu/stickies/internal/ipc"
)

var dataDirFlag string

var rootCmd = &cobra.Command{
	Use:   "stickies",
	Short: "stickies - settings and workspace daemon for Media Stickies",
	Long: `stickies holds the global settings and workspace registry shared by every
card window, persists them, and pushes changes to subscribed windows.

Run 'stickies serve' to start the daemon; the other commands talk to it
over its Unix socket.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"data directory (default $STICKIES_DATA_DIR or <user config dir>/stickies)")
}

// resolvePaths returns the data directory paths selected by --data-dir.
func resolvePaths() (config.Paths, error) {
	if dataDirFlag != "" {
		return config.Paths{DataDir: dataDirFlag}, nil
	}
	dir, err := config.DefaultDataDir()
	if err != nil {
		return config.Paths{}, err
	}
	return config.Paths{DataDir: dir}, nil
}

// loadConfig reads config.toml from the data directory and applies
// environment overrides.
func loadConfig() (config.Paths, *config.Config, error) {
	paths, err := resolvePaths()
	if err != nil {
		return config.Paths{}, nil, err
	}

	cfg, err := config.LoadConfig(paths.DataDir)
	if err != nil {
		return config.Paths{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	return paths, cfg, nil
}

// newClient returns a client for the daemon serving the data directory.
func newClient() (*ipc.Client, error) {
	paths, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(paths.SocketFile(cfg.IPC.Socket)), nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
