package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open or display config file",
	Long:  "Open the config.toml file in $EDITOR, or display its path with --path",
	RunE: func(cmd *cobra.Command, args []string) error {
		showPath, _ := cmd.Flags().GetBool("path")

		paths, err := resolvePaths()
		if err != nil {
			return err
		}

		configPath := paths.ConfigFile()
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("%s not found; run 'stickies init' first", configPath)
		}

		if showPath {
			fmt.Println(configPath)
			return nil
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			content, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			fmt.Println(string(content))
			return nil
		}

		editorCmd := exec.Command(editor, configPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr

		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("failed to open editor: %w", err)
		}

		return nil
	},
}

func init() {
	configCmd.Flags().Bool("path", false, "Print config file path instead of opening")
	rootCmd.AddCommand(configCmd)
}
