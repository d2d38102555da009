package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pharmaintel/core"
)

func newHistoryCmd(g *globalOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived sessions, most recent first",
		Long: `List sessions stored in the SQLite archive configured by archive.path
(PHARMAINTEL_ARCHIVE_PATH).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(g.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No archive configured. Set archive.path to keep session history.")
				return nil
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return renderJSON(cmd.OutOrStdout(), sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions archived yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UPDATED\tSESSION\tSTATE\tCONFIDENCE\tQUERY")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					s.UpdatedAt.Local().Format(time.DateTime), shortID(s.SessionID), s.State, confidence(s), s.Query)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func confidence(s core.Snapshot) string {
	if s.Result == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", s.Result.Confidence)
}
