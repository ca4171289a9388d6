package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/app"
	"github.com/ternarybob/marketbrief/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	runOnce      = flag.Bool("once", false, "Run the brief once and exit (default unless -daemon or schedule.enabled)")
	daemon       = flag.Bool("daemon", false, "Stay running and trigger the brief on schedule.cron")
	noEmail      = flag.Bool("no-email", false, "Save the brief to the output directory instead of emailing it")
	outputDir    = flag.String("output", "", "Output directory for saved briefs (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Market Brief version %s\n", common.LoadVersionFromFile())
		os.Exit(0)
	}

	os.Exit(run())
}

func run() int {
	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> .env -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Validate
	// 4. Initialize logger
	// 5. Print banner
	common.InstallCrashHandler(common.LogDirectory())
	defer common.RecoverWithCrashFile()

	if len(configFiles) == 0 {
		if _, err := os.Stat("marketbrief.toml"); err == nil {
			configFiles = append(configFiles, "marketbrief.toml")
		} else if _, err := os.Stat("deployments/local/marketbrief.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/marketbrief.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return 1
	}

	// -once wins over schedule.enabled from the config file
	common.ApplyFlagOverrides(config, *daemon, *outputDir)
	if *runOnce {
		config.Schedule.Enabled = false
	}

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Error().Err(err).Msg("Configuration is invalid")
		return 1
	}

	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("output_dir", config.Output.Dir).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger, app.Options{NoEmail: *noEmail})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !config.Schedule.Enabled {
		result, err := application.RunOnce(ctx)
		if err != nil {
			event := logger.Error().Err(err)
			if result != nil && result.FallbackPath != "" {
				event = event.Str("saved", result.FallbackPath)
			}
			event.Msg("Brief run failed")
			return 1
		}
		return 0
	}

	if err := application.StartScheduler(); err != nil {
		logger.Error().Err(err).Msg("Failed to start scheduler")
		return 1
	}

	logger.Info().Msg("Scheduler running - Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received, waiting for any running brief")

	return 0
}
