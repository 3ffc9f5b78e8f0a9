package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := newLogger(&Config{LogLevel: "debug", LogFormat: "json"}, buf)
	logger.Debug("engine ready")

	require.Contains(t, buf.String(), `"msg":"engine ready"`)
	require.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestNewLogger_TextFormatIsDefault(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := newLogger(&Config{LogLevel: "info", LogFormat: "text"}, buf)
	logger.Info("engine ready")

	require.Contains(t, buf.String(), "msg=")
	require.Contains(t, buf.String(), "engine ready")
}

func TestNewLogger_LevelFiltersOutput(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := newLogger(&Config{LogLevel: "error", LogFormat: "text"}, buf)
	logger.Info("suppressed")
	logger.Error("surfaced")

	require.NotContains(t, buf.String(), "suppressed")
	require.Contains(t, buf.String(), "surfaced")
}
