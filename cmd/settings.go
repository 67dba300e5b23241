package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the current global settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		client, err := newClient()
		if err != nil {
			return err
		}

		state, err := client.Settings(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}

		if jsonOutput {
			return printJSON(state)
		}
		printSettings(state)
		return nil
	},
}

var i18nCmd = &cobra.Command{
	Use:   "i18n",
	Short: "Show the active language and its message table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		result, err := client.I18n(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get messages: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Header.Render("Language: " + result.Language))

		labels := make([]string, 0, len(result.Messages))
		for label := range result.Messages {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			fmt.Printf("  %-28s %q\n", label, result.Messages[label])
		}
		return nil
	},
}

func printSettings(state settings.State) {
	styles := defaultStyles()

	fmt.Println(styles.Header.Render("Settings"))
	fmt.Printf("  Card dir:  %s\n", state.CardDir)
	fmt.Printf("  Language:  %s (%d messages)\n", state.I18n.Language, len(state.I18n.Messages))

	if len(state.NavigationAllowedURLs) == 0 {
		fmt.Printf("  Allowed URLs: %s\n", styles.IdleStyle.Render("none"))
		return
	}
	fmt.Printf("  Allowed URLs:\n")
	for _, url := range state.NavigationAllowedURLs {
		fmt.Printf("    - %s\n", url)
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func init() {
	settingsCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(i18nCmd)
}
