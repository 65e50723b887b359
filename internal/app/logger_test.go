package app

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLevelMapping(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, logLevel(&Config{LogLevel: in}), in)
	}
	require.Equal(t, slog.LevelInfo, logLevel(nil))
}
