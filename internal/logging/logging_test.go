package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", false, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "v", entry["k"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNewUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("loud", false, &buf)

	assert.Contains(t, buf.String(), "unknown log level")
	buf.Reset()
	logger.Info().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
