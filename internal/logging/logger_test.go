package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestNewJSON_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "info", time.UTC)

	log.Info(context.Background(), "document uploaded", "id", 7, "filename", "a.pdf")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "document uploaded", entry["msg"])
	assert.Equal(t, float64(7), entry["id"])
	assert.Equal(t, "a.pdf", entry["filename"])
	assert.NotEmpty(t, entry["ts"])
	_, hasTime := entry["time"]
	assert.False(t, hasTime)

	_, err := time.Parse(time.RFC3339Nano, entry["ts"].(string))
	assert.NoError(t, err)
}

func TestNewJSON_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "warn", nil)
	ctx := context.Background()

	log.Info(ctx, "dropped")
	log.Warn(ctx, "kept-warn")
	log.Error(ctx, "kept-error")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "debug", time.UTC).With("component", "pruner")

	log.Info(context.Background(), "hello", "k", "v")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "pruner", lines[0]["component"])
	assert.Equal(t, "v", lines[0]["k"])
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop()
	ctx := context.TODO()
	log.Info(ctx, "ok")
	log.Warn(ctx, "ok")
	log.Error(ctx, "ok")
	log.With("a", 1).Info(ctx, "ok")
}
