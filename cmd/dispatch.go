package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/settings"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send a settings action to the daemon",
	Long: `Send one settings action through the daemon's globalDispatch entry point.
Every subscribed window receives the resulting settings.`,
}

var dispatchCardDirCmd = &cobra.Command{
	Use:   "card-dir <path>",
	Short: "Set the card data directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAction(cmd, settings.SetCardDir{Dir: args[0]})
	},
}

var dispatchLanguageCmd = &cobra.Command{
	Use:   "language <code>",
	Short: "Switch the active language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAction(cmd, settings.SetLanguage{Language: args[0]})
	},
}

var dispatchAllowURLCmd = &cobra.Command{
	Use:       "allow-url <add|remove> <url>...",
	Short:     "Add or remove URLs the card windows may navigate to",
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{string(settings.OpAdd), string(settings.OpRemove)},
	RunE: func(cmd *cobra.Command, args []string) error {
		op := settings.Operation(args[0])
		if op != settings.OpAdd && op != settings.OpRemove {
			return fmt.Errorf("invalid operation %q (must be add or remove)", args[0])
		}

		return sendAction(cmd, settings.UpdateNavigationAllowedURLs{Operation: op, URLs: args[1:]})
	},
}

func sendAction(cmd *cobra.Command, action settings.Action) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	state, err := client.Dispatch(cmd.Context(), settings.ToRaw(action))
	if err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", action.Key(), err)
	}

	styles := defaultStyles()
	fmt.Println(styles.Success.Render("✓ Dispatched " + string(action.Key())))
	printSettings(state)
	return nil
}

func init() {
	dispatchCmd.AddCommand(dispatchCardDirCmd)
	dispatchCmd.AddCommand(dispatchLanguageCmd)
	dispatchCmd.AddCommand(dispatchAllowURLCmd)
	rootCmd.AddCommand(dispatchCmd)
}
