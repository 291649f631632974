package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/reactmesh/runner"
	"github.com/hupe1980/reactmesh/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(ctx)) }()

			if addr == "" {
				addr = a.settings.ListenAddr
			}

			srv := server.New(
				runner.New(a.engine, runner.WithLogger(a.logger), runner.WithRunTimeout(a.settings.RunTimeout)),
				a.agents,
				server.WithLogger(a.logger),
				server.WithGatherer(a.registry),
				server.WithBearerToken(a.settings.APIToken),
			)

			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to REACT_LISTEN_ADDR)")

	return cmd
}
