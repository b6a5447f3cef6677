// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/gleanerhq/gleaner/internal/config"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func testLoggerConfig(format string) config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      format,
		ServiceName: "gleaner-test",
		Colors:      config.ColorConfig{Info: "green", Warn: "yellow", Error: "red"},
	}
}

func TestInitialize(t *testing.T) {
	t.Run("console format colorizes the level", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()

		var buf bufferSyncer
		Initialize(testLoggerConfig("console"), &buf)

		GetLogger().Info("hello from the console core")
		out := buf.String()
		assert.Contains(t, out, "hello from the console core")
		assert.Contains(t, out, "\x1b[32mINFO\x1b[0m")
		assert.Contains(t, out, "gleaner-test.")
	})

	t.Run("json format emits structured entries", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()

		var buf bufferSyncer
		Initialize(testLoggerConfig("json"), &buf)

		GetLogger().Warn("structured entry")
		out := buf.String()
		assert.Contains(t, out, `"msg":"structured entry"`)
		assert.Contains(t, out, `"level":"WARN"`)
		assert.NotContains(t, out, "\x1b[")
	})

	t.Run("only the first Initialize wins", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()

		var first, second bufferSyncer
		Initialize(testLoggerConfig("console"), &first)
		Initialize(testLoggerConfig("console"), &second)

		GetLogger().Info("where does this go")
		assert.Contains(t, first.String(), "where does this go")
		assert.Empty(t, second.String())
	})

	t.Run("an unknown level falls back to info", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()

		cfg := testLoggerConfig("console")
		cfg.Level = "chatty"
		var buf bufferSyncer
		Initialize(cfg, &buf)

		GetLogger().Debug("should be filtered")
		GetLogger().Info("should appear")
		assert.NotContains(t, buf.String(), "should be filtered")
		assert.Contains(t, buf.String(), "should appear")
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestColorizedLevelEncoder(t *testing.T) {
	enc := colorizedLevelEncoder(config.ColorConfig{Error: "red"})

	var got recordingArrayEncoder
	enc(zapcore.ErrorLevel, &got)
	require.Len(t, got.strings, 1)
	assert.Equal(t, colorRed+"ERROR"+colorReset, got.strings[0])

	got = recordingArrayEncoder{}
	enc(zapcore.InfoLevel, &got)
	require.Len(t, got.strings, 1)
	assert.Equal(t, "INFO", got.strings[0])
	assert.False(t, strings.Contains(got.strings[0], "\x1b["))
}

// recordingArrayEncoder captures appended strings for encoder assertions.
type recordingArrayEncoder struct {
	zapcore.PrimitiveArrayEncoder
	strings []string
}

func (r *recordingArrayEncoder) AppendString(s string) {
	r.strings = append(r.strings, s)
}
