package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, time.UTC, "ocr")

	log.Info("ocr_completed", Fields{"document_id": "d1"})
	log.With("storage").Error("delete_failed", Fields{"error": errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "ocr", first["component"])
	assert.Equal(t, "ocr_completed", first["event"])
	assert.Equal(t, "d1", first["document_id"])
	assert.NotEmpty(t, first["ts"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "storage", second["component"])
	assert.Equal(t, "boom", second["error"])
}
