package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends_ReportsBoth(t *testing.T) {
	policyPath := filepath.Join(t.TempDir(), "policy.json")

	out, err := execute(t, "backends", "--policy", policyPath)
	require.NoError(t, err)
	assert.Contains(t, out, "interpreted")
	assert.Contains(t, out, "native")
	assert.Contains(t, out, "Active backend: interpreted")
}

func TestBackends_JSONOutput(t *testing.T) {
	policyPath := filepath.Join(t.TempDir(), "policy.json")

	out, err := execute(t, "--format", "json", "backends", "--policy", policyPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "interpreted", data["active"])
	backends, ok := data["backends"].([]any)
	require.True(t, ok)
	assert.Len(t, backends, 2)
}
