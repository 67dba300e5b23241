package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tommyzliu/stickies/internal/ipc"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
	Long: `Manage the workspace registry held by the daemon.

Switching is two-phase: 'begin' marks the target while windows of the
current workspace close, 'commit' makes it current. 'switch' does both.`,
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		id, err := client.CreateWorkspace(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Success.Render("✓ Created workspace: " + args[0]))
		fmt.Printf("  ID: %s\n", id)
		fmt.Printf("\nSwitch to it with: stickies workspace switch %s\n", id)
		return nil
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all workspaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		client, err := newClient()
		if err != nil {
			return err
		}

		list, err := client.ListWorkspaces(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list workspaces: %w", err)
		}

		if jsonOutput {
			return printJSON(list)
		}

		if len(list.Workspaces) == 0 {
			fmt.Println("No workspaces found.")
			fmt.Println("\nCreate a new workspace with: stickies workspace create <name>")
			return nil
		}

		printWorkspaces(list)
		return nil
	},
}

var workspaceCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		current, err := client.CurrentWorkspace(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get current workspace: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Header.Render(fmt.Sprintf("Workspace %s: %s", current.ID, current.Name)))
		fmt.Printf("  URL:     %s\n", current.URL)
		fmt.Printf("  Avatars: %d\n", len(current.Avatars))
		for _, avatar := range current.Avatars {
			fmt.Printf("    - %s\n", avatar)
		}
		return nil
	},
}

var workspaceSwitchCmd = &cobra.Command{
	Use:   "switch <id>",
	Short: "Switch to a workspace (begin and commit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.BeginTransition(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to begin transition: %w", err)
		}
		if err := client.CommitTransition(cmd.Context()); err != nil {
			return fmt.Errorf("failed to commit transition: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Success.Render("✓ Switched to workspace " + args[0]))
		return nil
	},
}

var workspaceBeginCmd = &cobra.Command{
	Use:   "begin <id>",
	Short: "Begin a transition to a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.BeginTransition(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to begin transition: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.PendingStyle.Render(styles.Pending + " Changing to workspace " + args[0]))
		fmt.Println("\nFinish with 'stickies workspace commit' or cancel with 'stickies workspace abort'")
		return nil
	},
}

var workspaceCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Complete the pending transition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.CommitTransition(cmd.Context()); err != nil {
			return fmt.Errorf("failed to commit transition: %w", err)
		}

		current, err := client.CurrentWorkspace(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get current workspace: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Success.Render(fmt.Sprintf("✓ Switched to workspace %s (%s)", current.ID, current.Name)))
		return nil
	},
}

var workspaceAbortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Cancel the pending transition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.AbortTransition(cmd.Context()); err != nil {
			return fmt.Errorf("failed to abort transition: %w", err)
		}

		styles := defaultStyles()
		fmt.Println(styles.Warning.Render("Transition aborted"))
		return nil
	},
}

func printWorkspaces(list ipc.ListResult) {
	styles := defaultStyles()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " \tID\tNAME\tAVATARS")
	fmt.Fprintln(w, " \t--\t----\t-------")

	for _, ws := range list.Workspaces {
		marker := " "
		switch ws.ID {
		case list.CurrentID:
			marker = styles.CurrentStyle.Render(styles.Current)
		case list.ChangingToID:
			marker = styles.PendingStyle.Render(styles.Pending)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", marker, ws.ID, ws.Name, len(ws.Avatars))
	}

	w.Flush()
}

func init() {
	workspaceListCmd.Flags().Bool("json", false, "Output as JSON")

	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceCurrentCmd)
	workspaceCmd.AddCommand(workspaceSwitchCmd)
	workspaceCmd.AddCommand(workspaceBeginCmd)
	workspaceCmd.AddCommand(workspaceCommitCmd)
	workspaceCmd.AddCommand(workspaceAbortCmd)
	rootCmd.AddCommand(workspaceCmd)
}
