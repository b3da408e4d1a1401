package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/review-autopublisher/internal/publisher"
)

func newRunCmd() *cobra.Command {
	var req publisher.Request

	c := &cobra.Command{
		Use:   "run",
		Short: "Run one auto-publish batch now and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if !req.DryRun {
				if err := a.connectEvents(); err != nil {
					return err
				}
			}
			r, err := a.runner(req.DryRun)
			if err != nil {
				return err
			}
			rep, err := r.Run(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	c.Flags().StringVar(&req.TenantID, "tenant", "", "restrict the batch to one tenant id")
	c.Flags().IntVar(&req.Limit, "limit", 0, "max drafts to consider (default MAX_CANDIDATES, ceiling 200)")
	c.Flags().BoolVar(&req.DryRun, "dry-run", false, "decide outcomes without publishing or writing")
	return c
}
