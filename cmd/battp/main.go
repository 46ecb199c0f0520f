package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/shhac/battp/internal/app"
	apperrors "github.com/shhac/battp/internal/errors"
)

// Version is set via ldflags at build time
var Version = "dev"

var (
	configFile   string
	jsonOutput   bool
	workspaceRef string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "battp",
	Short: "battp - HTTP API testing client",
	Long: `battp sends HTTP requests and keeps them organized in workspaces.
Workspaces can mirror themselves to a shared folder as a versioned sync file.`,
	Example: `  # One-off request
  battp send https://httpbin.org/get -q page=2

  # Save a request in a synced workspace and send it
  battp workspace create Team --sync ~/Shared/team
  battp workspace switch Team
  battp request new "List users" --url https://api.example.com/users
  battp request send`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: battp.yaml in . or ~/.battp)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON")
	rootCmd.PersistentFlags().StringVarP(&workspaceRef, "workspace", "w", "", "workspace name or id (default: current workspace)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "http", Title: "HTTP Commands:"},
		&cobra.Group{ID: "workspace", Title: "Workspace Commands:"},
	)

	sendCmd.GroupID = "http"
	requestCmd.GroupID = "http"
	workspaceCmd.GroupID = "workspace"

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func setupApp(cmd *cobra.Command, args []string) error {
	cfg, err := app.LoadConfig(configFile)
	if err != nil {
		return err
	}
	application, err = app.New(cfg, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return nil
}

func shutdownApp() error {
	if application == nil {
		return nil
	}
	err := application.Shutdown()
	application = nil
	return err
}

func main() {
	if err := run(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command tree with panic recovery.
func run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	err = rootCmd.Execute()
	// A failing command skips PersistentPostRunE; pending state still has
	// to reach disk.
	if shutdownErr := shutdownApp(); shutdownErr != nil {
		err = multierror.Append(err, shutdownErr).ErrorOrNil()
	}
	return err
}

// asAppError finds the categorized error in err's chain.
func asAppError(err error) (*apperrors.Error, bool) {
	var e *apperrors.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
