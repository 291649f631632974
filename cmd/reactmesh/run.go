package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/reactmesh/engine"
)

func runCmd(flags *globalFlags) *cobra.Command {
	var (
		agentName string
		vars      map[string]string
		asJSON    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Execute a single request and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(ctx)) }()

			base := a.agents.Base()
			if agentName != "" {
				d, ok := a.agents.Get(agentName)
				if !ok {
					return fmt.Errorf("unknown agent %q (available: %s)", agentName, strings.Join(a.agents.Names(), ", "))
				}
				base = d
			}

			variables := make(map[string]any, len(vars))
			for k, v := range vars {
				variables[k] = v
			}

			res, err := a.engine.Execute(ctx, base, strings.Join(args, " "), engine.WithVariables(variables))
			if err != nil {
				return err
			}

			return printResult(cmd, res, asJSON)
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "base agent (defaults to the catalog base agent)")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "run variable key=value, visible to templated instructions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout")

	return cmd
}

func printResult(cmd *cobra.Command, res *engine.RunResult, asJSON bool) error {
	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	switch res.Outcome {
	case engine.OutcomeBudgetExhausted:
		fmt.Fprintf(out, "No answer after %d interactions.\n", res.Interactions)
	default:
		fmt.Fprintln(out, res.FinalAnswer)
		fmt.Fprintf(out, "\n(agent: %s, confidence: %.2f, interactions: %d)\n", res.Agent, res.Confidence, res.Interactions)
	}

	return nil
}
