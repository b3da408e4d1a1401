package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/targets"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant auto-publish settings and platform credentials",
	}
	cmd.AddCommand(newTenantSetModeCmd())
	cmd.AddCommand(newTenantSetTokenCmd())
	cmd.AddCommand(newTenantSetTargetCmd())
	return cmd
}

func newTenantSetModeCmd() *cobra.Command {
	var tenantID, mode string

	c := &cobra.Command{
		Use:   "set-mode",
		Short: "Set a tenant's auto-publish mode (manual, positives, mixed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := autopublish.Mode(strings.ToLower(strings.TrimSpace(mode)))
			if autopublish.ParseMode(mode) != m {
				return fmt.Errorf("invalid --mode %q (want manual, positives or mixed)", mode)
			}

			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := a.tenants()
			if err != nil {
				return err
			}
			if err := repo.SetAutoPublishMode(ctx, tenantID, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %q auto-publish mode=%s\n", tenantID, m)
			return nil
		},
	}

	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&mode, "mode", "", "manual | positives | mixed")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("mode")
	return c
}

func newTenantSetTokenCmd() *cobra.Command {
	var tenantID string

	c := &cobra.Command{
		Use:   "set-token",
		Short: "Store a tenant's platform refresh token (read from stdin, encrypted at rest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			token := strings.TrimSpace(line)
			if token == "" {
				if err != nil {
					return fmt.Errorf("read refresh token from stdin: %w", err)
				}
				return fmt.Errorf("empty refresh token")
			}

			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.RequireCredEncKey(); err != nil {
				return err
			}
			repo, err := a.tenants()
			if err != nil {
				return err
			}
			if err := repo.SaveRefreshToken(ctx, tenantID, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored refresh token for tenant %q\n", tenantID)
			return nil
		},
	}

	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	_ = c.MarkFlagRequired("tenant")
	return c
}

func newTenantSetTargetCmd() *cobra.Command {
	var tenantID, reviewID, target string

	c := &cobra.Command{
		Use:   "set-target",
		Short: "Map a review's platform id to the resource a reply is submitted to",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			target = strings.Trim(strings.TrimSpace(target), "/")
			if target == "" {
				return fmt.Errorf("empty --target")
			}
			if err := targets.NewRepo(a.db).Put(ctx, tenantID, reviewID, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %q review %q -> %s\n", tenantID, reviewID, target)
			return nil
		},
	}

	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&reviewID, "review", "", "review id on the platform")
	c.Flags().StringVar(&target, "target", "", "platform resource name, e.g. accounts/1/locations/2/reviews/abc")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("review")
	_ = c.MarkFlagRequired("target")
	return c
}
