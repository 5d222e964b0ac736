package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"taskflow-backend/internal/tasks"
)

func aggregatesCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "aggregates",
		Short: "Print the current aggregate view as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := context.Background()
			be, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer be.close()

			view := tasks.NewView(be.store, log)
			if err := view.Refresh(ctx); err != nil {
				return err
			}

			aggs := view.Aggregates()
			if owner != "" {
				aggs = view.AggregatesFor(owner)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(aggs)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only aggregates owned by this identity")
	return cmd
}
