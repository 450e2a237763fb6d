// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"sigitm-exporter/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

// resetGlobalLogger restores the package singleton between tests; the
// sync.Once otherwise makes the first test win.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

func TestInitializeConsoleLogger(t *testing.T) {
	resetGlobalLogger()
	var buf syncBuffer

	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "test-service",
	}, zapcore.Lock(&buf))

	logger := GetLogger()
	require.NotNil(t, logger)

	logger.Info("portal session started")
	logger.Debug("captcha fingerprint recorded")

	out := buf.String()
	assert.Contains(t, out, "portal session started")
	assert.Contains(t, out, "captcha fingerprint recorded")
	assert.Contains(t, out, "test-service")
	assert.Contains(t, out, colorGreen, "console format colorizes levels")
}

func TestInitializeRespectsLevel(t *testing.T) {
	resetGlobalLogger()
	var buf syncBuffer

	Initialize(config.LoggerConfig{
		Level:       "warn",
		Format:      "console",
		ServiceName: "test-service",
	}, zapcore.Lock(&buf))

	logger := GetLogger()
	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestInitializeFallsBackOnBadLevel(t *testing.T) {
	resetGlobalLogger()
	var buf syncBuffer

	Initialize(config.LoggerConfig{
		Level:       "not-a-level",
		Format:      "console",
		ServiceName: "test-service",
	}, zapcore.Lock(&buf))

	logger := GetLogger()
	logger.Debug("debug suppressed at info")
	logger.Info("info passes")

	out := buf.String()
	assert.NotContains(t, out, "debug suppressed at info")
	assert.Contains(t, out, "info passes")
}

func TestInitializeWithJSONFileCore(t *testing.T) {
	resetGlobalLogger()
	var buf syncBuffer

	logFile := filepath.Join(t.TempDir(), "exporter.log")
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "test-service",
		LogFile:     logFile,
		MaxSize:     1,
	}, zapcore.Lock(&buf))

	GetLogger().Info("written to both cores")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	// Every file line must be valid JSON.
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "file core must emit JSON: %s", line)
		assert.Equal(t, "written to both cores", entry["msg"])
	}
}

func TestGetLoggerBeforeInitialization(t *testing.T) {
	resetGlobalLogger()

	logger := GetLogger()
	require.NotNil(t, logger, "a fallback logger must always be available")
}

func TestInitializeIsIdempotent(t *testing.T) {
	resetGlobalLogger()
	var first, second syncBuffer

	Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "first"}, zapcore.Lock(&first))
	Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "second"}, zapcore.Lock(&second))

	GetLogger().Info("routed to the first writer")

	assert.Contains(t, first.String(), "routed to the first writer")
	assert.Empty(t, second.String())
}
