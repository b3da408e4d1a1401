package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/example/review-autopublisher/internal/autopublish"
	"github.com/example/review-autopublisher/internal/config"
	"github.com/example/review-autopublisher/internal/crypto"
	"github.com/example/review-autopublisher/internal/db"
	"github.com/example/review-autopublisher/internal/drafts"
	"github.com/example/review-autopublisher/internal/events"
	"github.com/example/review-autopublisher/internal/gbp"
	"github.com/example/review-autopublisher/internal/logger"
	"github.com/example/review-autopublisher/internal/migrate"
	"github.com/example/review-autopublisher/internal/publisher"
	"github.com/example/review-autopublisher/internal/targets"
	"github.com/example/review-autopublisher/internal/tenants"
)

// app holds the process-wide dependencies shared by subcommands.
type app struct {
	cfg    config.Config
	log    *logrus.Logger
	db     *db.DB
	events events.Publisher
}

func openApp(ctx context.Context, migrateUp bool) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return &app{cfg: cfg, log: log, db: d, events: events.Nop{}}, nil
}

func (a *app) Close() {
	_ = a.events.Close()
	a.db.Close()
}

func (a *app) tenants() (*tenants.Repo, error) {
	var aead *crypto.AEAD
	if len(a.cfg.CredEncKey) > 0 {
		var err error
		if aead, err = crypto.New(a.cfg.CredEncKey); err != nil {
			return nil, err
		}
	}
	return tenants.NewRepo(a.db, aead), nil
}

// connectEvents swaps the no-op publisher for RabbitMQ when AMQP_URL is set.
func (a *app) connectEvents() error {
	if a.cfg.AMQPURL == "" {
		return nil
	}
	p, err := events.Dial(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.log)
	if err != nil {
		return fmt.Errorf("amqp: %w", err)
	}
	a.events = p
	return nil
}

func (a *app) window() autopublish.Window {
	return autopublish.Window{
		FromHour:     a.cfg.AllowedFromHour,
		ToHour:       a.cfg.AllowedToHour,
		MinDraftAge:  a.cfg.MinDraftAge(),
		MaxReviewAge: a.cfg.MaxReviewAge(),
		Location:     a.cfg.Location,
	}
}

// runner wires the batch runner. Publishing needs CRED_ENC_KEY; a dry run
// never reads credentials and can go without it.
func (a *app) runner(dryRunOnly bool) (*publisher.Runner, error) {
	if !dryRunOnly {
		if err := a.cfg.RequireCredEncKey(); err != nil {
			return nil, err
		}
	}
	tr, err := a.tenants()
	if err != nil {
		return nil, err
	}
	client := gbp.New(a.cfg.GBPBaseURL, a.cfg.CallTimeout())
	dr := drafts.NewRepo(a.db)
	w := a.window()

	orch := &publisher.Orchestrator{
		Drafts:  dr,
		Configs: tr,
		Creds: &gbp.TokenSource{
			Client:       client,
			Store:        tr,
			TokenURL:     a.cfg.GBPTokenURL,
			ClientID:     a.cfg.GBPClientID,
			ClientSecret: a.cfg.GBPClientSecret,
		},
		Targets:     targets.NewRepo(a.db),
		Replies:     client,
		Events:      a.events,
		Window:      w,
		Workers:     a.cfg.Workers,
		CallTimeout: a.cfg.CallTimeout(),
		Log:         a.log,
	}
	r := &publisher.Runner{
		Drafts:       dr,
		Orchestrator: orch,
		Window:       w,
		DefaultLimit: a.cfg.MaxCandidates,
		Deadline:     a.cfg.RunDeadline(),
		Events:       a.events,
		Log:          a.log,
	}
	if a.cfg.RunLock {
		r.Lock = publisher.AdvisoryLock{DB: a.db, Key: publisher.RunLockKey}
	}
	return r, nil
}
