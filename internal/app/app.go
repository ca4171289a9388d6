package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/common"
	"github.com/ternarybob/marketbrief/internal/eodhd"
	"github.com/ternarybob/marketbrief/internal/interfaces"
	"github.com/ternarybob/marketbrief/internal/services/mailer"
	"github.com/ternarybob/marketbrief/internal/services/pipeline"
	"github.com/ternarybob/marketbrief/internal/services/scheduler"
	"github.com/ternarybob/marketbrief/internal/yahoo"
)

// BriefJobName is the scheduler job that runs the pipeline
const BriefJobName = "daily_brief"

// Options carries command-line choices that are not part of the config file
type Options struct {
	// NoEmail saves the brief to output.dir instead of sending it
	NoEmail bool
}

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Provider interfaces.QuoteProvider
	Notifier interfaces.Notifier

	PipelineService  *pipeline.Service
	SchedulerService *scheduler.Service

	// runCtx bounds scheduled runs; cancelled on Close
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}
	app.Provider = provider

	app.Notifier = app.newNotifier(opts)

	app.PipelineService, err = pipeline.NewService(cfg, app.Provider, app.Notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	logger.Info().
		Str("provider", app.Provider.Name()).
		Int("indices", len(cfg.Indices)).
		Bool("email", !opts.NoEmail && cfg.EmailEnabled()).
		Msg("Application initialization complete")

	return app, nil
}

// newProvider builds the configured market-data provider
func newProvider(cfg *common.Config, logger arbor.ILogger) (interfaces.QuoteProvider, error) {
	switch cfg.Provider.Name {
	case "", "yahoo":
		opts := []yahoo.ClientOption{
			yahoo.WithLogger(logger),
			yahoo.WithRateLimit(cfg.Provider.RateLimit),
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(cfg.Provider.BaseURL))
		}
		return yahoo.NewProvider(yahoo.NewClient(opts...)), nil

	case "eodhd":
		if cfg.Provider.APIKey == "" {
			return nil, fmt.Errorf("eodhd requires provider.api_key")
		}
		opts := []eodhd.ClientOption{
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(cfg.Provider.RateLimit),
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(cfg.Provider.BaseURL))
		}
		return eodhd.NewProvider(eodhd.NewClient(cfg.Provider.APIKey, opts...)), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// newNotifier picks SMTP delivery, or the file notifier when email is disabled or unconfigured
func (a *App) newNotifier(opts Options) interfaces.Notifier {
	if opts.NoEmail {
		a.Logger.Info().Str("dir", a.Config.Output.Dir).Msg("Email disabled, briefs will be saved to disk")
		return mailer.NewFileNotifier(a.Config.Output.Dir, a.Logger)
	}

	mailerSvc := mailer.NewService(a.Config.SMTP, a.Config.Email, a.Logger)
	if !mailerSvc.IsConfigured() {
		a.Logger.Warn().
			Str("dir", a.Config.Output.Dir).
			Msg("SMTP not configured (smtp.host, smtp.from, email.recipients), briefs will be saved to disk")
		return mailer.NewFileNotifier(a.Config.Output.Dir, a.Logger)
	}
	return mailerSvc
}

// RunOnce executes a single brief run
func (a *App) RunOnce(ctx context.Context) (*pipeline.RunResult, error) {
	return a.PipelineService.Run(ctx)
}

// StartScheduler registers the brief job and starts the cron trigger.
// With schedule.run_on_start the first run is triggered immediately.
func (a *App) StartScheduler() error {
	if a.SchedulerService != nil {
		return fmt.Errorf("scheduler already started")
	}

	a.runCtx, a.cancelRun = context.WithCancel(context.Background())
	a.SchedulerService = scheduler.NewService(a.Logger, a.Config.Location())

	err := a.SchedulerService.RegisterJob(BriefJobName, a.Config.Schedule.Cron, "Daily market brief", func() error {
		_, err := a.PipelineService.Run(a.runCtx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to register brief job: %w", err)
	}

	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if status, err := a.SchedulerService.GetJobStatus(BriefJobName); err == nil && status.NextRun != nil {
		a.Logger.Info().
			Str("schedule", status.Schedule).
			Str("next_run", status.NextRun.Format(time.RFC3339)).
			Msg("Brief scheduled")
	}

	if a.Config.Schedule.RunOnStart {
		if err := a.SchedulerService.TriggerJob(BriefJobName); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to trigger run on start")
		}
	}

	return nil
}

// Close stops the scheduler, waiting for an in-progress run
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}
	if a.cancelRun != nil {
		a.cancelRun()
	}
	return nil
}
