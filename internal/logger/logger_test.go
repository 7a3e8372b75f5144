package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugPhiluu/PhilCard/internal/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, logger.ParseLevel(in), in)
	}
}

func TestInitWithWriter_LowercaseLevelAndFiltering(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger.InitWithWriter(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("link saved", logger.KeyModule, "service", logger.KeyResult, "ok")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "level=warn")
	require.Contains(t, out, "module=service")
	require.Contains(t, out, "result=ok")
}
