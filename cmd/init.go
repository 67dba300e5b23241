package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the stickies data directory",
	Long:  "Initialize the data directory with a default config.toml and an empty settings.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}

		if _, err := os.Stat(paths.ConfigFile()); err == nil {
			return fmt.Errorf("stickies already initialized\n\nLocation: %s\n\nTo reconfigure:\n  1. Edit the config: %s\n  2. Or remove and reinitialize: rm -rf %s && stickies init", paths.DataDir, paths.ConfigFile(), paths.DataDir)
		}

		if err := config.InitDataDir(paths.DataDir); err != nil {
			return fmt.Errorf("failed to initialize data directory: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Success.Render("✓ stickies initialized successfully"))
		fmt.Printf("  Location: %s\n", paths.DataDir)
		fmt.Printf("  Config:   %s\n", paths.ConfigFile())
		fmt.Printf("  Settings: %s\n", paths.SettingsFile())
		fmt.Printf("\nNext steps:\n")
		fmt.Printf("  1. Review and customize %s\n", paths.ConfigFile())
		fmt.Printf("  2. Run 'stickies serve' to start the daemon\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
