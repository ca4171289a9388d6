package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved run settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("Market Brief", GetVersion())

	symbols := make([]string, 0, len(config.Indices))
	for _, idx := range config.Indices {
		symbols = append(symbols, idx.Symbol)
	}

	logger.Info().
		Str("version", GetFullVersion()).
		Str("provider", config.Provider.Name).
		Strs("indices", symbols).
		Int("recipients", len(config.Email.Recipients)).
		Bool("scheduled", config.Schedule.Enabled).
		Msg("Market brief configured")
}
