package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/review-autopublisher/internal/auth"
	"github.com/example/review-autopublisher/internal/scheduler"
	"github.com/example/review-autopublisher/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the run trigger endpoint and, if SCHED_INTERVAL_SECONDS is set, the in-process scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.RequireTriggerKeys(); err != nil {
				return err
			}
			if err := a.connectEvents(); err != nil {
				return err
			}
			runner, err := a.runner(false)
			if err != nil {
				return err
			}

			if iv := a.cfg.SchedInterval(); iv > 0 {
				s := &scheduler.Scheduler{Run: runner.Run, Interval: iv, Log: a.log.WithField("component", "scheduler")}
				go func() {
					if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						a.log.WithError(err).Error("scheduler exited")
					}
				}()
			}

			ws := &web.Server{
				Auth:   auth.NewStore(a.cfg.TriggerHashKey, a.cfg.TriggerBlockKey, 0),
				Runner: runner,
				Log:    a.log.WithField("component", "web"),
			}
			return web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
