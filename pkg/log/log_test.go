package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Info("node started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "node started", entry["message"])
	require.Equal(t, "info", entry["level"])
}

func TestInitRespectsLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Info("should be dropped")
	Warn("should appear")

	out := buf.String()
	require.NotContains(t, out, "should be dropped")
	require.Contains(t, out, "should appear")
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithComponent("raft").Info().Msg("tick")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "raft", entry["component"])
}

func TestWithConfigKeyAddsDataIDAndGroup(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithConfigKey("app.properties", "DEFAULT_GROUP").Info().Msg("applied")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "app.properties", entry["data_id"])
	require.Equal(t, "DEFAULT_GROUP", entry["group"])
}

func TestErrorfIncludesErrorField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	Errorf("apply failed", errString("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "apply failed", entry["message"])
	require.True(t, strings.Contains(entry["error"].(string), "boom"))
}

type errString string

func (e errString) Error() string { return string(e) }
