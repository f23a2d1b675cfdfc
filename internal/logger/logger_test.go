package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/microhttpd/internal/config"
)

func decodeLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestErrorLogFieldsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	lg := NewTestLogger(&buf)

	lg.Info("request denied", LogFields{"path": "/secret", "status": 403})
	lg.Debug("probe", nil)

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "request denied", entries[0]["message"])
	assert.Equal(t, "/secret", entries[0]["path"])
	assert.Equal(t, float64(403), entries[0]["status"])
	assert.Equal(t, "debug", entries[1]["level"])
}

func TestLogLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "error.log")
	enabled := false
	lg, err := NewLogger(&config.LoggingConfig{
		LogLevel:  config.LogLevelWarning,
		ErrorLog:  &config.ErrorLogConfig{Target: target},
		AccessLog: &config.AccessLogConfig{Enabled: &enabled},
	})
	require.NoError(t, err)

	lg.Debug("dropped", nil)
	lg.Info("dropped too", nil)
	lg.Warn("kept", nil)
	lg.Error("kept as well", nil)
	lg.CloseLogFiles()

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	entries := decodeLines(t, data)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "error", entries[1]["level"])
}

func TestAccessLog(t *testing.T) {
	dir := t.TempDir()
	accessTarget := filepath.Join(dir, "access.log")
	errorTarget := filepath.Join(dir, "error.log")
	lg, err := NewLogger(&config.LoggingConfig{
		LogLevel:  config.LogLevelInfo,
		ErrorLog:  &config.ErrorLogConfig{Target: errorTarget},
		AccessLog: &config.AccessLogConfig{Target: accessTarget},
	})
	require.NoError(t, err)

	lg.Access("192.0.2.7:5000", "GET", "/hello.txt?x=1", 200, 12, 34*time.Millisecond)
	lg.CloseLogFiles()

	data, err := os.ReadFile(accessTarget)
	require.NoError(t, err)
	entries := decodeLines(t, data)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "192.0.2.7:5000", e["remote_addr"])
	assert.Equal(t, "GET", e["method"])
	assert.Equal(t, "/hello.txt?x=1", e["uri"])
	assert.Equal(t, float64(200), e["status"])
	assert.Equal(t, float64(12), e["resp_bytes"])
	assert.Equal(t, float64(34), e["duration_ms"])
}

func TestAccessLogDisabled(t *testing.T) {
	enabled := false
	lg, err := NewLogger(&config.LoggingConfig{
		LogLevel:  config.LogLevelInfo,
		ErrorLog:  &config.ErrorLogConfig{Target: "stderr"},
		AccessLog: &config.AccessLogConfig{Enabled: &enabled},
	})
	require.NoError(t, err)
	defer lg.CloseLogFiles()

	// Must be a no-op, not a panic.
	lg.Access("192.0.2.7:5000", "GET", "/", 200, 0, 0)
}

func TestCloseLogFiles(t *testing.T) {
	dir := t.TempDir()
	lg, err := NewLogger(&config.LoggingConfig{
		LogLevel:  config.LogLevelInfo,
		ErrorLog:  &config.ErrorLogConfig{Target: filepath.Join(dir, "error.log")},
		AccessLog: &config.AccessLogConfig{Target: filepath.Join(dir, "access.log")},
	})
	require.NoError(t, err)

	assert.NoError(t, lg.CloseLogFiles())
	assert.NoError(t, lg.CloseLogFiles(), "second close must be a no-op")
}

func TestDiscardLoggerDropsEverything(t *testing.T) {
	lg := NewDiscardLogger()
	lg.Error("nothing to see", LogFields{"k": "v"})
	lg.Access("a", "GET", "/", 200, 0, 0)
}
