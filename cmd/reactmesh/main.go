// Package main is the entry point for the reactmesh CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	envFile    string
	configFile string
	catalog    string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "reactmesh",
		Short:         "Run ReAct agents with tools and handoffs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env", ".env", "path to .env file")
	pf.StringVar(&flags.configFile, "config", "", "config file exported as REACT_* variables")
	pf.StringVar(&flags.catalog, "catalog", "", "agent catalog (YAML); defaults to REACT_CATALOG or the built-in agents")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (text, json, console)")

	root.AddCommand(
		versionCmd(),
		runCmd(flags),
		serveCmd(flags),
		mcpCmd(flags),
		agentsCmd(flags),
	)

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reactmesh %s (commit: %s)\n", version, commit)
		},
	}
}
