package main

import (
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/reactmesh/tool"
	"github.com/hupe1980/reactmesh/tool/builtin"
	"github.com/hupe1980/reactmesh/tool/mcptool"
)

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the built-in tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol; logs go to stderr.
			_, logger, err := loadSettings(flags)
			if err != nil {
				return err
			}

			srv, err := mcptool.NewServer("reactmesh", version, logger)
			if err != nil {
				return err
			}

			if err := srv.Register(sortedTools(builtin.Tools())...); err != nil {
				return err
			}

			return srv.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}

func sortedTools(m map[string]tool.Tool) []tool.Tool {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		out = append(out, m[n])
	}

	return out
}
