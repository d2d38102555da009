package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pharmaintel/registry"
)

func newAgentsCmd(g *globalOptions) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the registered research agents in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeFn, err := buildApp(g.cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			ids := app.Registry().ListAgents()
			if asYAML {
				return registry.MarshalCatalog(cmd.OutOrStdout(), ids)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tID\tNAME")
			for _, id := range ids {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", id.ExecutionOrder, id.ID, id.DisplayName)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the registry as a catalog file")

	return cmd
}
