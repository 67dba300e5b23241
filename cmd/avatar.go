package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/workspace"
)

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Add or remove card URLs in a workspace",
	Long: `Add or remove card URLs in a workspace.

The workspace id may be omitted when the URL already names it, as in
media://local/avatar/2/card-1.`,
}

var avatarAddCmd = &cobra.Command{
	Use:   "add [workspace-id] <url>",
	Short: "Add a card URL to a workspace",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, url, err := avatarArgs(args)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.AddAvatar(cmd.Context(), id, url); err != nil {
			return fmt.Errorf("failed to add avatar: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Success.Render(fmt.Sprintf("✓ Added %s to workspace %s", url, id)))
		return nil
	},
}

var avatarRemoveCmd = &cobra.Command{
	Use:   "remove [workspace-id] <url>",
	Short: "Remove a card URL from a workspace",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, url, err := avatarArgs(args)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.RemoveAvatar(cmd.Context(), id, url); err != nil {
			return fmt.Errorf("failed to remove avatar: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Success.Render(fmt.Sprintf("✓ Removed %s from workspace %s", url, id)))
		return nil
	},
}

// avatarArgs returns the workspace id and URL, taking the id from the URL
// when only the URL is given.
func avatarArgs(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}

	id, err := workspace.IDFromURL(args[0])
	if err != nil {
		return "", "", fmt.Errorf("no workspace id given and none in url: %w", err)
	}
	return id, args[0], nil
}

func init() {
	avatarCmd.AddCommand(avatarAddCmd)
	avatarCmd.AddCommand(avatarRemoveCmd)
	rootCmd.AddCommand(avatarCmd)
}
