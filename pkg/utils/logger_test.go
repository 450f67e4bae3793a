package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("info", "json", &buf)

	logger.WithField("icao", "LFPG").WithFields(map[string]interface{}{
		"source": "MSFS",
	}).Info("METAR fetched")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "LFPG", entry["icao"])
	assert.Equal(t, "MSFS", entry["source"])
	assert.Equal(t, "METAR fetched", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("warn", "text", &buf)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}
