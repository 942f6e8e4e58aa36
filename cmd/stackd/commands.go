package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
}

// RunFlags holds flags for the run command.
type RunFlags struct {
	StrictPreflight bool
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	Events int
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	statusFlags := &StatusFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createStatusCommand(globalFlags, statusFlags),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "stackd",
		Short: "Health-gated supervisor for a two-service web stack",
		Long: `Stackd supervises an essential API backend and a non-essential dashboard
frontend. It launches the backend, gates the frontend on the backend's
readiness endpoint, monitors both for crashes, restarts within bounded
budgets, and shuts the stack down together on SIGTERM/SIGINT.

Examples:
  stackd run --config stackd.toml
  stackd status --config stackd.toml --events 20`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "stackd.toml", "path to TOML config file")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")

	return root
}

func createRunCommand(globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch and supervise the stack until signaled",
		Long: `Run launches the backend, waits for its readiness endpoint, launches the
frontend, and enters the monitor loop. The process exits 0 on a graceful
signal shutdown and 1 when the backend cannot be brought or kept ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStack(globalFlags, runFlags)
		},
	}
	cmd.Flags().BoolVar(&runFlags.StrictPreflight, "strict-preflight", false, "treat missing credentials as a fatal error instead of a warning")
	return cmd
}

func createStatusCommand(globalFlags *GlobalFlags, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report stack liveness from pid files and the event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd, globalFlags, statusFlags)
		},
	}
	cmd.Flags().IntVar(&statusFlags.Events, "events", 0, "also print the N most recent journal events")
	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stackd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "stackd", version)
		},
	}
}
