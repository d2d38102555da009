package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pharmaintel/config"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "pharmaintel",
		Short: "Agentic research pipeline for pharmaceutical innovation",
		Long: `pharmaintel dispatches a research query to a team of specialist agents
(clinical trials, patents, internal knowledge, web intelligence, IQVIA and
EXIM trade data), synthesizes their evidence into one product hypothesis and
asks a human reviewer to approve or reject it.

Configuration is read from pharmaintel.yaml (working directory or
$XDG_CONFIG_HOME/pharmaintel) and PHARMAINTEL_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to a config file")

	rootCmd.AddCommand(newRunCmd(g))
	rootCmd.AddCommand(newAgentsCmd(g))
	rootCmd.AddCommand(newHistoryCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
