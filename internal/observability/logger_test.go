package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/framewalk/internal/config"
)

func newTestLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitializeConsoleFormat(t *testing.T) {
	buf := newTestLogger(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "framewalk",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Info("harvest started", zap.String("route", "orders"))
	out := buf.String()
	assert.Contains(t, out, "harvest started")
	assert.Contains(t, out, "framewalk.")
	assert.Contains(t, out, "\x1b[32mINFO\x1b[0m")
	assert.Contains(t, out, "orders")
}

func TestInitializeRespectsLevel(t *testing.T) {
	buf := newTestLogger(t, config.LoggerConfig{
		Level:       "warn",
		Format:      "json",
		ServiceName: "framewalk",
	})

	logger := GetLogger()
	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestInitializeBadLevelFallsBackToInfo(t *testing.T) {
	buf := newTestLogger(t, config.LoggerConfig{
		Level:       "nonsense",
		Format:      "json",
		ServiceName: "framewalk",
	})

	logger := GetLogger()
	logger.Debug("filtered at info")
	logger.Info("visible")

	out := buf.String()
	assert.NotContains(t, out, "filtered at info")
	assert.Contains(t, out, "visible")
}

func TestInitializeHappensOnce(t *testing.T) {
	buf := newTestLogger(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"})

	var second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, zapcore.AddSync(&second))

	GetLogger().Info("routed to the first writer")
	assert.Contains(t, buf.String(), "routed to the first writer")
	assert.Empty(t, second.String())
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	require.NotNil(t, GetLogger())
}
