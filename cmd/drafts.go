package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/drafts"
)

func newDraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect draft replies",
	}
	cmd.AddCommand(newDraftsListCmd())
	return cmd
}

func newDraftsListCmd() *cobra.Command {
	var (
		tenantID string
		status   string
		limit    int
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List draft replies with their publication status, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st autopublish.Status
			if status != "" {
				var err error
				if st, err = autopublish.ParseStatus(status); err != nil {
					return err
				}
			}
			if limit <= 0 {
				limit = 50
			}

			ctx := context.Background()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ds, err := drafts.NewRepo(a.db).List(ctx, tenantID, st, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range ds {
				fmt.Fprintf(out, "id=%s tenant=%s status=%s created=%s attempts=%d%s\n",
					d.ID, d.TenantID, d.Status, d.CreatedAt.Format(time.RFC3339), d.AttemptCount, detail(d))
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id (default all)")
	c.Flags().StringVar(&status, "status", "", "pending | skipped | done (default all)")
	c.Flags().IntVar(&limit, "limit", 50, "max rows")
	return c
}

func detail(d drafts.Draft) string {
	switch {
	case d.PublishedAt != nil:
		return " published_at=" + d.PublishedAt.Format(time.RFC3339)
	case d.SkipReason != nil:
		return " reason=" + *d.SkipReason
	case d.LastError != nil:
		return fmt.Sprintf(" last_error=%q", *d.LastError)
	}
	return ""
}
