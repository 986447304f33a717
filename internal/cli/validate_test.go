package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidScript(t *testing.T) {
	path := writeScriptFile(t)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Script valid")
	assert.Contains(t, out, "3 action(s)")
}

func TestValidate_ValidScriptJSON(t *testing.T) {
	path := writeScriptFile(t)

	out, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_RejectsMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 42}`), 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
}

func TestValidate_RejectsOutOfOrderTimestamps(t *testing.T) {
	doc := []byte(`{
		"version": "1.0",
		"metadata": {
			"created_at": "2024-03-01T10:00:00Z",
			"duration": 2.0,
			"action_count": 2,
			"core_type": "interpreted",
			"platform": "linux"
		},
		"actions": [
			{"type": "mouse_move", "timestamp": 2.0, "x": 1, "y": 1},
			{"type": "mouse_move", "timestamp": 1.0, "x": 2, "y": 2}
		]
	}`)
	path := filepath.Join(t.TempDir(), "regress.json")
	require.NoError(t, os.WriteFile(path, doc, 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "OUT_OF_ORDER_TIMESTAMP")
}
