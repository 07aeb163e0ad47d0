// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/history"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently converted files",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if wipe, _ := cmd.Flags().GetBool("clear"); wipe {
			if err := store.ClearRecent(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "recent files cleared")
			return nil
		}

		files, err := store.Recent(ctx)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f.Path)
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().Bool("clear", false, "clear the recent files list")
	rootCmd.AddCommand(recentCmd)
}
