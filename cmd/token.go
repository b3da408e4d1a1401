package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/review-autopublisher/internal/auth"
	"github.com/example/review-autopublisher/internal/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage trigger tokens for the run endpoint",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		caller string
		ttl    time.Duration
	)
	c := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for POST /api/autopublish/run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.RequireTriggerKeys(); err != nil {
				return err
			}
			tok, err := auth.NewStore(cfg.TriggerHashKey, cfg.TriggerBlockKey, ttl).IssueTriggerToken(caller)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	c.Flags().StringVar(&caller, "caller", "", "name of the caller, e.g. cloud-scheduler")
	c.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime (capped at one year by the server)")
	_ = c.MarkFlagRequired("caller")
	return c
}
