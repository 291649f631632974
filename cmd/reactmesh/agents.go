package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func agentsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agents of the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, logger, err := loadSettings(flags)
			if err != nil {
				return err
			}

			agents, err := loadAgents(cmd.Context(), settings, logger)
			if err != nil {
				return err
			}
			defer func() { _ = agents.Close() }()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODEL\tCAPABILITIES\tBASE")

			for _, name := range agents.Names() {
				d, _ := agents.Get(name)

				base := ""
				if name == agents.Base().Name() {
					base = "*"
				}

				model := d.Model()
				if model == "" {
					model = "-"
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, model, capabilities(d.CapabilityNames()), base)
			}

			return w.Flush()
		},
	}
}

func capabilities(names []string) string {
	if len(names) == 0 {
		return "-"
	}

	return strings.Join(names, ",")
}
