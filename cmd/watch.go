package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/settings"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every globalStoreChanged event",
	Long: `Subscribe to the daemon and print the settings each time they change.

The current settings are printed first. Runs in the foreground until
interrupted with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		client, err := newClient()
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "👀 Watching settings (Press Ctrl+C to stop)...\n\n")

		err = client.Subscribe(cmd.Context(), func(state settings.State) {
			if jsonOutput {
				if err := printJSON(state); err != nil {
					fmt.Fprintf(os.Stderr, "Error encoding settings: %v\n", err)
				}
				return
			}
			printSettings(state)
			fmt.Println()
		})
		if err != nil {
			return fmt.Errorf("subscription ended: %w", err)
		}

		fmt.Fprintf(os.Stderr, "\n🛑 Stopping watch...\n")
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("json", false, "Print each snapshot as JSON")
	rootCmd.AddCommand(watchCmd)
}
