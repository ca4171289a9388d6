package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is the prefix for environment variable overrides (MARKETBRIEF_SMTP_HOST etc).
const EnvPrefix = "MARKETBRIEF"

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment" envconfig:"ENV"`
	Provider    ProviderConfig `toml:"provider"`
	Fetch       FetchConfig    `toml:"fetch"`
	Indices     []Index        `toml:"indices" ignored:"true" validate:"required,min=1,dive"`
	SMTP        SMTPConfig     `toml:"smtp"`
	Email       EmailConfig    `toml:"email"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Output      OutputConfig   `toml:"output"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ProviderConfig selects and configures the market-data provider
type ProviderConfig struct {
	Name string `toml:"name" envconfig:"NAME" validate:"oneof=yahoo eodhd"`

	// Required for eodhd
	APIKey string `toml:"api_key" envconfig:"API_KEY"`

	// Empty = provider default
	BaseURL string `toml:"base_url" envconfig:"BASE_URL"`

	// Requests per second
	RateLimit int `toml:"rate_limit" envconfig:"RATE_LIMIT" validate:"gte=1"`
}

// FetchConfig bounds the fetch stage
type FetchConfig struct {
	// Per-symbol fetch timeout
	Timeout Duration `toml:"timeout" envconfig:"TIMEOUT"`

	Concurrency int `toml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1,lte=32"`
}

// SMTPConfig holds the outbound mail transport settings
type SMTPConfig struct {
	Host     string   `toml:"host" envconfig:"HOST"`
	Port     int      `toml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	Username string   `toml:"username" envconfig:"USERNAME"`
	Password string   `toml:"password" envconfig:"PASSWORD"`
	From     string   `toml:"from" envconfig:"FROM" validate:"omitempty,email"`
	FromName string   `toml:"from_name" envconfig:"FROM_NAME"`
	UseTLS   bool     `toml:"use_tls" envconfig:"USE_TLS"`
	Timeout  Duration `toml:"timeout" envconfig:"TIMEOUT"`
}

// EmailConfig holds message-level settings
type EmailConfig struct {
	Recipients    []string `toml:"recipients" envconfig:"RECIPIENTS" validate:"dive,email"`
	SubjectPrefix string   `toml:"subject_prefix" envconfig:"SUBJECT_PREFIX"`
	AttachPDF     bool     `toml:"attach_pdf" envconfig:"ATTACH_PDF"`
}

// ScheduleConfig controls the optional in-process trigger
type ScheduleConfig struct {
	Enabled    bool   `toml:"enabled" envconfig:"ENABLED"`
	Cron       string `toml:"cron" envconfig:"CRON"` // 5-field cron expression
	RunOnStart bool   `toml:"run_on_start" envconfig:"RUN_ON_START"`
	Timezone   string `toml:"timezone" envconfig:"TIMEZONE"` // IANA name, empty = local
}

// OutputConfig controls where rendered briefs are saved when not (or not successfully) emailed
type OutputConfig struct {
	Dir string `toml:"dir" envconfig:"DIR"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output []string `toml:"output" envconfig:"OUTPUT"` // "stdout", "file"
}

// Duration is a time.Duration that unmarshals from "15s"-style strings in TOML and env vars
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Decode implements envconfig.Decoder
func (d *Duration) Decode(value string) error {
	return d.UnmarshalText([]byte(value))
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Provider: ProviderConfig{
			Name:      "yahoo",
			RateLimit: 5,
		},
		Fetch: FetchConfig{
			Timeout:     Duration{15 * time.Second},
			Concurrency: 4,
		},
		Indices: DefaultIndices(),
		SMTP: SMTPConfig{
			Host:     "smtp.gmail.com",
			Port:     587,
			FromName: "Market Brief",
			UseTLS:   true,
			Timeout:  Duration{30 * time.Second},
		},
		Email: EmailConfig{
			Recipients: []string{},
		},
		Schedule: ScheduleConfig{
			Enabled:    false,
			Cron:       "0 9 * * *", // Daily at 09:00
			RunOnStart: true,
		},
		Output: OutputConfig{
			Dir: "./output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env
// CLI flags are applied afterwards by the caller via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// A file that declares [[indices]] replaces the default list rather than appending to it
		fileIndices := struct {
			Indices []Index `toml:"indices"`
		}{}
		if err := toml.Unmarshal(data, &fileIndices); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
		if len(fileIndices.Indices) > 0 {
			config.Indices = nil
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	config.Indices = NormalizeIndices(config.Indices)

	return config, nil
}

// applyEnvOverrides loads an optional .env file and applies MARKETBRIEF_* variables.
// Variables already present in the process environment win over .env entries.
func applyEnvOverrides(config *Config) error {
	envFile := os.Getenv(EnvPrefix + "_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	recipients := make([]string, 0, len(config.Email.Recipients))
	for _, r := range config.Email.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	config.Email.Recipients = recipients

	// Comma-separated symbol list replaces the configured indices
	if symbols := os.Getenv(EnvPrefix + "_INDICES"); symbols != "" {
		config.Indices = ParseIndexList(symbols)
	}

	return nil
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, daemon bool, outputDir string) {
	if daemon {
		config.Schedule.Enabled = true
	}
	if outputDir != "" {
		config.Output.Dir = outputDir
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Provider.Name == "eodhd" && c.Provider.APIKey == "" {
		return fmt.Errorf("invalid configuration: provider.api_key is required for eodhd")
	}

	if c.Schedule.Enabled {
		if err := ValidateSchedule(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid configuration: schedule.cron: %w", err)
		}
	}

	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid configuration: schedule.timezone: %w", err)
		}
	}

	return nil
}

// EmailEnabled reports whether enough SMTP settings exist to attempt delivery
func (c *Config) EmailEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != "" && len(c.Email.Recipients) > 0
}

// ValidateSchedule validates a 5-field cron expression and rejects every-minute schedules
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Location resolves the schedule timezone, defaulting to local time
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
