package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points the .env lookup at a missing file so the working directory cannot leak in
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPrefix+"_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "yahoo", config.Provider.Name)
	assert.Equal(t, 15*time.Second, config.Fetch.Timeout.Duration)
	assert.Equal(t, 4, config.Fetch.Concurrency)
	assert.Len(t, config.Indices, 9)
	assert.Equal(t, "0 9 * * *", config.Schedule.Cron)
	assert.False(t, config.EmailEnabled())
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	base := writeFile(t, dir, "base.toml", `
[provider]
name = "eodhd"
api_key = "base-key"

[fetch]
timeout = "5s"

[[indices]]
name = "S&P 500"
symbol = "GSPC.INDX"
region = "US"

[[indices]]
name = "Nifty 50"
symbol = "NSEI.INDX"
region = "India"
`)
	override := writeFile(t, dir, "override.toml", `
[provider]
api_key = "override-key"

[email]
recipients = ["ops@example.com"]
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "eodhd", config.Provider.Name)
	assert.Equal(t, "override-key", config.Provider.APIKey)
	assert.Equal(t, 5*time.Second, config.Fetch.Timeout.Duration)
	assert.Equal(t, []string{"ops@example.com"}, config.Email.Recipients)

	// Declared indices replace the defaults
	require.Len(t, config.Indices, 2)
	assert.Equal(t, "GSPC.INDX", config.Indices[0].Symbol)
	assert.Equal(t, "India", config.Indices[1].Region)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	_, err := LoadFromFiles(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.toml", "[provider\nname = ")
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)

	badDuration := writeFile(t, dir, "duration.toml", "[fetch]\ntimeout = \"soon\"\n")
	_, err = LoadFromFiles(badDuration)
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("MARKETBRIEF_SMTP_HOST", "mail.example.com")
	t.Setenv("MARKETBRIEF_SMTP_PORT", "2525")
	t.Setenv("MARKETBRIEF_SMTP_FROM", "brief@example.com")
	t.Setenv("MARKETBRIEF_EMAIL_RECIPIENTS", "a@example.com, b@example.com,")
	t.Setenv("MARKETBRIEF_FETCH_TIMEOUT", "3s")
	t.Setenv("MARKETBRIEF_INDICES", "S&P 500=^GSPC, ^DJI, ^GSPC")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com", config.SMTP.Host)
	assert.Equal(t, 2525, config.SMTP.Port)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, config.Email.Recipients)
	assert.Equal(t, 3*time.Second, config.Fetch.Timeout.Duration)
	assert.True(t, config.EmailEnabled())

	require.Len(t, config.Indices, 2)
	assert.Equal(t, Index{Name: "S&P 500", Symbol: "^GSPC"}, config.Indices[0])
	assert.Equal(t, Index{Name: "^DJI", Symbol: "^DJI"}, config.Indices[1])
}

func TestLoadFromFiles_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "MARKETBRIEF_SMTP_PASSWORD=from-dotenv\nMARKETBRIEF_SMTP_USERNAME=dotenv-user\n")
	t.Setenv(EnvPrefix+"_ENV_FILE", envFile)

	// Process environment wins over .env
	t.Setenv("MARKETBRIEF_SMTP_USERNAME", "process-user")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", config.SMTP.Password)
	assert.Equal(t, "process-user", config.SMTP.Username)

	// godotenv.Load sets variables on the process; clear what this test introduced
	os.Unsetenv("MARKETBRIEF_SMTP_PASSWORD")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider.Name = "bloomberg" }, wantErr: true},
		{name: "eodhd without key", mutate: func(c *Config) { c.Provider.Name = "eodhd" }, wantErr: true},
		{name: "eodhd with key", mutate: func(c *Config) { c.Provider.Name = "eodhd"; c.Provider.APIKey = "k" }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Fetch.Concurrency = 0 }, wantErr: true},
		{name: "invalid recipient", mutate: func(c *Config) { c.Email.Recipients = []string{"not-an-email"} }, wantErr: true},
		{name: "invalid from", mutate: func(c *Config) { c.SMTP.From = "nobody" }, wantErr: true},
		{name: "no indices", mutate: func(c *Config) { c.Indices = nil }, wantErr: true},
		{name: "index without symbol", mutate: func(c *Config) { c.Indices = []Index{{Name: "x"}} }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad cron when enabled", mutate: func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Cron = "daily" }, wantErr: true},
		{name: "bad cron when disabled", mutate: func(c *Config) { c.Schedule.Cron = "daily" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "good timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Asia/Kolkata" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"0 9 * * *", false},
		{"30 16 * * 1-5", false},
		{"*/5 * * * *", false},
		{"*/15 9-17 * * *", false},
		{"* * * * *", true},
		{"*/1 * * * *", true},
		{"*/4 * * * *", true},
		{"0 0 9 * * *", true},
		{"", true},
		{"every day", true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, false, "")
	assert.False(t, config.Schedule.Enabled)
	assert.Equal(t, "./output", config.Output.Dir)

	ApplyFlagOverrides(config, true, "/tmp/briefs")
	assert.True(t, config.Schedule.Enabled)
	assert.Equal(t, "/tmp/briefs", config.Output.Dir)
}

func TestLocation(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, time.Local, config.Location())

	config.Schedule.Timezone = "America/New_York"
	assert.Equal(t, "America/New_York", config.Location().String())

	config.Schedule.Timezone = "nowhere"
	assert.Equal(t, time.Local, config.Location())
}

func TestIsProduction(t *testing.T) {
	config := NewDefaultConfig()
	assert.False(t, config.IsProduction())
	config.Environment = " Production "
	assert.True(t, config.IsProduction())
}
