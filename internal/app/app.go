package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"curtailment-alerts/internal/alerting"
	"curtailment-alerts/internal/config"
	"curtailment-alerts/internal/portal"
	"curtailment-alerts/internal/scheduler"
	"curtailment-alerts/internal/service"
	"curtailment-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newPortal() portal.Client {
	return portal.NewHTTPClient(portal.HTTPOptions{
		BaseURL:           a.Config.Portal.BaseURL,
		ListingPath:       a.Config.Portal.ListingPath,
		ExtraListingPaths: a.Config.Portal.ExtraListingPaths,
		Timeout:           a.Config.Portal.RequestTimeout,
		UserAgent:         a.Config.Portal.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Notify.WebhookURL == "" {
		return nil
	}
	return alerting.NewWebhookNotifier(a.Config.Notify.WebhookURL, a.Config.Notify.RequestTimeout, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Logger)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("notify.webhook_url is required for the run command")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; duplicate suppression disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var ledger storage.NotificationLedger
	if store != nil {
		ledger = store
	}

	svc := service.New(a.Config, sched, a.newPortal(), ledger, notifier, a.Logger)

	a.Logger.Info().Msg("starting curtailment watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("curtailment watcher stopped")
	return nil
}

// InspectOptions configure the offline inspect command. A nil Threshold means
// the configured pipeline threshold; an explicit zero is a valid override.
type InspectOptions struct {
	Path      string
	PNGPath   string
	CSVPath   string
	Threshold *float64
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
