package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Settings are the environment-backed process settings, distinct from
// the YAML definition files: where to listen, how to log, which model
// providers have credentials.
type Settings struct {
	Host      string
	Port      int
	ConfigDir string

	LogLevel  string
	LogFormat string // "text" or "json"

	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	LocalModel      string

	OTLPEndpoint string
	TraceStdout  bool
}

// LoadSettings reads settings from the environment, applying defaults.
func LoadSettings() (Settings, error) {
	port, err := strconv.Atoi(envOrDefault("PRAETOR_PORT", "8080"))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid PRAETOR_PORT: %w", err)
	}

	s := Settings{
		Host:            envOrDefault("PRAETOR_HOST", "0.0.0.0"),
		Port:            port,
		ConfigDir:       envOrDefault("PRAETOR_CONFIG_DIR", "./config"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		LocalModel:      os.Getenv("PRAETOR_LOCAL_MODEL"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceStdout:     os.Getenv("PRAETOR_TRACE_STDOUT") == "true",
	}
	return s, nil
}

// Addr returns the host:port listen address.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SlogLevel maps the LOG_LEVEL setting to a slog level. Unknown values
// fall back to info.
func (s Settings) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger per the log settings.
func (s Settings) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
