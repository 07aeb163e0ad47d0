// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/history"
	"github.com/pdiddy/mdconvert/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past conversions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asYAML, _ := cmd.Flags().GetBool("yaml")

		store, err := history.NewStore(cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if asYAML {
			return store.Export(ctx, cmd.OutOrStdout(), limit)
		}

		entries, err := store.List(ctx, limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSOURCE\tSTATE\tRESULT\tENGINE")
		for _, e := range entries {
			result := fmt.Sprintf("%d chars", e.Chars)
			if !e.OK {
				result = string(e.ErrorKind)
			}
			if e.State != types.StateDelivered {
				result = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.SubmittedAt.Local().Format("2006-01-02 15:04"), e.Source, e.State, result, e.Engine)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of conversions to show (0 for all)")
	historyCmd.Flags().Bool("yaml", false, "print the history as YAML")
	rootCmd.AddCommand(historyCmd)
}
