// Package core assembles the engine's collaborators into a single
// explicit value instead of reaching for package-level globals: one
// place that owns the database handle, the event bus, and the
// detector/scheduler pair, constructed once at process start and
// threaded through to whatever needs it (the REST server, the worker
// loop, tests).
package core

import (
	"context"
	"fmt"
	"os"

	"github.com/RamfiAogusto/competitor-tracker/internal/alert"
	"github.com/RamfiAogusto/competitor-tracker/internal/alertwriter"
	"github.com/RamfiAogusto/competitor-tracker/internal/appconfig"
	"github.com/RamfiAogusto/competitor-tracker/internal/detector"
	"github.com/RamfiAogusto/competitor-tracker/internal/enrich"
	"github.com/RamfiAogusto/competitor-tracker/internal/enrichwriter"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/internal/notifyfanout"
	"github.com/RamfiAogusto/competitor-tracker/internal/render"
	"github.com/RamfiAogusto/competitor-tracker/internal/scheduler"
	"github.com/RamfiAogusto/competitor-tracker/internal/snapshotstore"
	"github.com/RamfiAogusto/competitor-tracker/internal/target"
	"github.com/RamfiAogusto/competitor-tracker/internal/user"
	"github.com/RamfiAogusto/competitor-tracker/pkg/llm"
	"github.com/RamfiAogusto/competitor-tracker/pkg/notify"
	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

// Core bundles every collaborator the server and worker processes
// share.
type Core struct {
	Config Config

	DB            *storage.DB
	Bus           *eventbus.Bus
	UserStore     *user.Store
	TargetStore   *target.Store
	SnapshotStore *snapshotstore.Store
	AlertStore    *alert.Store
	Detector      *detector.Detector
	Scheduler     *scheduler.Scheduler
	Renderer      render.Renderer
	Enricher      enrich.Enricher
	AlertWriter   *alertwriter.Writer
	EnrichWriter  *enrichwriter.Writer // nil when no enricher is configured
	Notifier      *notifyfanout.Fanout // nil when no notify channel is configured
}

// Config is an alias kept local to core so callers don't need to
// import appconfig just to read the field back off a *Core.
type Config = appconfig.Config

// New opens the database, migrates it, and wires every collaborator
// together against cfg. It does not start the scheduler loop or any
// subscriber — call Run for that.
func New(ctx context.Context, cfg Config, schemaPath string) (*Core, error) {
	db, err := storage.Open(storage.Config{Driver: storage.Driver(cfg.Database.Driver), DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if schema, err := os.ReadFile(schemaPath); err == nil {
		if err := db.Migrate(ctx, string(schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	bus := eventbus.New(appconfig.EventBufferPerSubscriber)

	snapStore := snapshotstore.New(db,
		snapshotstore.WithConsolidationPeriod(cfg.Snapshot.FullPeriod),
		snapshotstore.WithDiffRatioThreshold(cfg.Snapshot.FullIfDiffRatio))

	det := detector.New(snapStore, bus)
	if cfg.Snapshot.HTMLSizeCap > 0 {
		det = det.WithMaxHTMLBytes(cfg.Snapshot.HTMLSizeCap)
	}

	targetStore := target.New(db)

	renderer := buildRenderer(cfg)
	sched := scheduler.New(targetStore, renderer, det, cfg.Worker.Count, 0)

	writer := alertwriter.New(db)
	enricher := buildEnricher(cfg)

	c := &Core{
		Config:        cfg,
		DB:            db,
		Bus:           bus,
		UserStore:     user.NewStore(db),
		TargetStore:   targetStore,
		SnapshotStore: snapStore,
		AlertStore:    alert.New(db),
		Detector:      det,
		Scheduler:     sched,
		Renderer:      renderer,
		Enricher:      enricher,
		AlertWriter:   writer,
	}

	if enricher != nil {
		c.EnrichWriter = enrichwriter.New(enricher, snapStore, targetStore)
	}
	if fanout := buildNotifier(cfg); fanout != nil {
		c.Notifier = fanout
	}

	return c, nil
}

// Run starts the scheduler loop and the in-process subscribers
// (alertwriter always, enrichwriter/notifyfanout when configured),
// blocking until ctx is cancelled.
func (c *Core) Run(ctx context.Context) {
	go c.AlertWriter.Run(ctx, c.Bus)
	if c.EnrichWriter != nil {
		go c.EnrichWriter.Run(ctx, c.Bus)
	}
	if c.Notifier != nil {
		go c.Notifier.Run(ctx, c.Bus)
	}
	c.Scheduler.Run(ctx)
}

// Close releases the database connection.
func (c *Core) Close() error {
	return c.DB.Close()
}

func buildRenderer(cfg Config) render.Renderer {
	rc := render.DefaultHTTPConfig()
	if cfg.Render.ServiceURL != "" {
		rc.ServiceURL = cfg.Render.ServiceURL
	}
	if cfg.Render.AuthToken != "" {
		rc.AuthToken = cfg.Render.AuthToken
	}
	if cfg.Render.TimeoutSecs > 0 {
		rc.Timeout = cfg.Render.RenderTimeout()
	}
	if cfg.Render.Retries > 0 {
		rc.RetryCount = cfg.Render.Retries
	}
	return render.NewHTTPClient(rc)
}

func buildEnricher(cfg Config) enrich.Enricher {
	if cfg.Enrich.ServiceURL != "" {
		return enrich.NewHTTPClient(enrich.HTTPConfig{
			URL:       cfg.Enrich.ServiceURL,
			AuthToken: cfg.Enrich.AuthToken,
		})
	}
	if cfg.Enrich.LLMAPIKey == "" {
		return nil
	}
	client, err := llm.NewClient(llm.Config{
		Provider: llm.Provider(cfg.Enrich.LLMProvider),
		Model:    cfg.Enrich.LLMModel,
		APIKey:   cfg.Enrich.LLMAPIKey,
	})
	if err != nil {
		return nil
	}
	return enrich.NewLLMClient(client)
}

func buildNotifier(cfg Config) *notifyfanout.Fanout {
	dispatcher := notify.NewDispatcher()
	registered := false

	if cfg.Notify.TelegramBotToken != "" {
		dispatcher.Register(notify.NewTelegramNotifier(notify.TelegramConfig{
			BotToken:  cfg.Notify.TelegramBotToken,
			ChannelID: cfg.Notify.TelegramChannelID,
		}))
		registered = true
	}
	if cfg.Notify.WebhookURL != "" {
		dispatcher.Register(notify.NewWebhookNotifier(notify.WebhookConfig{URL: cfg.Notify.WebhookURL}))
		registered = true
	}

	if !registered {
		return nil
	}
	return notifyfanout.New(dispatcher)
}
