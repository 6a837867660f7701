package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

// records decodes one JSON object per log line.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestRunLifecycleLogs(t *testing.T) {
	logger, buf := newJSONLogger()

	LogRunStart(logger, "s-1")
	LogRunInterrupted(logger, "s-1", "doc_flow")
	LogResume(logger, "s-1", "doc_flow", 3*time.Second)
	LogRunComplete(logger, "s-1", 12, 4)

	recs := records(t, buf)
	require.Len(t, recs, 4)

	assert.Equal(t, "graph run starting", recs[0]["msg"])
	assert.Equal(t, "s-1", recs[0]["run_id"])

	assert.Equal(t, "graph run interrupted", recs[1]["msg"])
	assert.Equal(t, "doc_flow", recs[1]["interrupted_at"])

	assert.Equal(t, "graph run resuming", recs[2]["msg"])
	assert.Equal(t, "s-1", recs[2]["session_id"])
	assert.EqualValues(t, 3*time.Second, recs[2]["paused_for"])

	assert.Equal(t, "graph run completed", recs[3]["msg"])
	assert.EqualValues(t, 4, recs[3]["nodes_executed"])
}

func TestRunErrorLog(t *testing.T) {
	logger, buf := newJSONLogger()

	LogRunError(logger, "s-1", errors.New("boom"), 5, "intent")

	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "ERROR", recs[0]["level"])
	assert.Equal(t, "boom", recs[0]["error"])
	assert.Equal(t, "intent", recs[0]["last_node"])
}

func TestNodeLogs(t *testing.T) {
	logger, buf := newJSONLogger()

	LogNodeStart(logger, "weather")
	LogNodeComplete(logger, "weather", 1.5)
	LogNodeRetry(logger, "weather", 1, errors.New("flaky"))
	LogNodeError(logger, "weather", errors.New("down"))
	LogCheckpoint(logger, "doc_flow", 128)
	LogCheckpointError(logger, "doc_flow", "delete", errors.New("io"))

	recs := records(t, buf)
	require.Len(t, recs, 6)
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "WARN", recs[2]["level"])
	assert.EqualValues(t, 1, recs[2]["attempt"])
	assert.Equal(t, "ERROR", recs[3]["level"])
	assert.EqualValues(t, 128, recs[4]["size_bytes"])
	assert.Equal(t, "delete", recs[5]["operation"])
}

func TestLogFunctions_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "r")
		LogRunComplete(nil, "r", 0, 0)
		LogRunInterrupted(nil, "r", "n")
		LogResume(nil, "r", "n", 0)
		LogRunError(nil, "r", errors.New("x"), 0, "n")
		LogNodeStart(nil, "n")
		LogNodeComplete(nil, "n", 0)
		LogNodeRetry(nil, "n", 1, errors.New("x"))
		LogNodeError(nil, "n", errors.New("x"))
		LogCheckpoint(nil, "n", 0)
		LogCheckpointError(nil, "n", "save", errors.New("x"))
	})
}
