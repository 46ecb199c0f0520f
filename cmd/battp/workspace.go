package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
}

var workspaceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workspaces; the current one is marked with *",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := application.Workspaces()
		return printWorkspaces(cmd.OutOrStdout(), m.Workspaces(), m.CurrentWorkspace().ID)
	},
}

var wsCreateSync string

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a workspace",
	Long: `Create a workspace. With --sync, requests are imported from the sync
file at that path (a folder or a .json/.yaml file) and the workspace is kept
exported there after every change.

Examples:
  battp workspace create Personal
  battp workspace create Team --sync ~/Dropbox/team-api`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := application.Workspaces().CreateWorkspace(args[0], wsCreateSync)
		if err != nil {
			return err
		}
		return printCreated(cmd, ws)
	},
}

var workspaceDeleteCmd = &cobra.Command{
	Use:     "delete <workspace>",
	Aliases: []string{"rm"},
	Short:   "Delete a workspace and its requests (the sync file is kept)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace(args[0])
		if err != nil {
			return err
		}
		if err := application.Workspaces().DeleteWorkspace(ws.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted workspace %q\n", ws.Name)
		return nil
	},
}

var workspaceRenameCmd = &cobra.Command{
	Use:   "rename <workspace> <new-name>",
	Short: "Rename a workspace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace(args[0])
		if err != nil {
			return err
		}
		return application.Workspaces().RenameWorkspace(ws.ID, args[1])
	},
}

var workspaceSwitchCmd = &cobra.Command{
	Use:   "switch <workspace>",
	Short: "Make a workspace current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace(args[0])
		if err != nil {
			return err
		}
		application.Workspaces().SwitchWorkspace(ws.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to %q\n", ws.Name)
		return nil
	},
}

var workspaceSetSyncCmd = &cobra.Command{
	Use:   "set-sync <workspace> [path]",
	Short: "Attach a workspace to a sync path, or detach it when path is omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := findWorkspace(args[0])
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		return application.Workspaces().SetSyncPath(ws.ID, path)
	},
}

var workspaceSyncCmd = &cobra.Command{
	Use:   "sync [workspace]",
	Short: "Export a synced workspace to its sync path now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := workspaceArg(args)
		if err != nil {
			return err
		}
		if err := application.Workspaces().ExportWorkspace(ws.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", ws.Name, ws.SyncPath)
		return nil
	},
}

var workspaceImportCmd = &cobra.Command{
	Use:   "import [workspace] [path]",
	Short: "Replace a workspace's requests with those of a sync file",
	Long: `Replace a workspace's requests and selection with the contents of a
sync file. Without a path, the workspace's own sync path is read.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := workspaceArg(args)
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		if err := application.Workspaces().ImportRequests(ws.ID, path); err != nil {
			return err
		}
		store, _ := application.Workspaces().Requests(ws.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d request(s) into %q\n", store.Len(), ws.Name)
		return nil
	},
}

func init() {
	workspaceCreateCmd.Flags().StringVar(&wsCreateSync, "sync", "", "sync folder or file")

	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceDeleteCmd)
	workspaceCmd.AddCommand(workspaceRenameCmd)
	workspaceCmd.AddCommand(workspaceSwitchCmd)
	workspaceCmd.AddCommand(workspaceSetSyncCmd)
	workspaceCmd.AddCommand(workspaceSyncCmd)
	workspaceCmd.AddCommand(workspaceImportCmd)
}

func printCreated(cmd *cobra.Command, ws domain.Workspace) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), ws)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %q (%s)\n", ws.Name, ws.ID)
	return nil
}

// findWorkspace resolves ref as an id first, then as an exact name.
func findWorkspace(ref string) (domain.Workspace, error) {
	m := application.Workspaces()
	if ws, ok := m.Workspace(ref); ok {
		return ws, nil
	}
	ref = strings.TrimSpace(ref)
	for _, ws := range m.Workspaces() {
		if ws.Name == ref {
			return ws, nil
		}
	}
	return domain.Workspace{}, apperrors.New(apperrors.KindInvalidInput, "Workspace Not Found",
		fmt.Errorf("%w: %s", apperrors.ErrWorkspaceNotFound, ref))
}

// workspaceArg resolves the optional first argument, then --workspace, then
// the current workspace.
func workspaceArg(args []string) (domain.Workspace, error) {
	if len(args) > 0 {
		return findWorkspace(args[0])
	}
	return targetWorkspace()
}

// targetWorkspace is the workspace named by --workspace, or the current one.
func targetWorkspace() (domain.Workspace, error) {
	if workspaceRef != "" {
		return findWorkspace(workspaceRef)
	}
	return application.Workspaces().CurrentWorkspace(), nil
}
