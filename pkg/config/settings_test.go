package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", s.Addr())
	assert.Equal(t, slog.LevelInfo, s.SlogLevel())
	assert.Equal(t, "./config", s.ConfigDir)
}

func TestLoadSettings_FromEnv(t *testing.T) {
	t.Setenv("PRAETOR_HOST", "127.0.0.1")
	t.Setenv("PRAETOR_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", s.Addr())
	assert.Equal(t, slog.LevelDebug, s.SlogLevel())
}

func TestLoadSettings_BadPort(t *testing.T) {
	t.Setenv("PRAETOR_PORT", "not-a-port")

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestSlogLevel_UnknownFallsBack(t *testing.T) {
	s := Settings{LogLevel: "verbose"}
	assert.Equal(t, slog.LevelInfo, s.SlogLevel())
}
