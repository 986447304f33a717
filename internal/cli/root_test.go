package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replaykit/internal/script"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "replaykit", cmd.Use)
	assert.Contains(t, cmd.Long, "execution backends")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "play", "compat", "backends"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestPlayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	playCmd, _, err := cmd.Find([]string{"play"})
	require.NoError(t, err)

	speedFlag := playCmd.Flags().Lookup("speed")
	require.NotNil(t, speedFlag)
	assert.Equal(t, "1", speedFlag.DefValue)

	loopsFlag := playCmd.Flags().Lookup("loops")
	require.NotNil(t, loopsFlag)
	assert.Equal(t, "1", loopsFlag.DefValue)

	backendFlag := playCmd.Flags().Lookup("backend")
	require.NotNil(t, backendFlag)
	assert.Equal(t, "auto", backendFlag.DefValue)
}

func TestCompatCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compatCmd, _, err := cmd.Find([]string{"compat"})
	require.NoError(t, err)

	targetFlag := compatCmd.Flags().Lookup("target")
	require.NotNil(t, targetFlag)
	assert.Equal(t, "interpreted", targetFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "nope.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "boom", assert.AnError)))
}

// writeScriptFile persists a well-formed script to a temp file and
// returns its path.
func writeScriptFile(t *testing.T) string {
	t.Helper()

	s := script.New("interpreted", "linux")
	s.Metadata.CreatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Metadata.ScreenResolution = &script.Resolution{Width: 1920, Height: 1080}
	s.AddAction(script.Action{Type: script.MouseMove, Timestamp: 0, X: script.IntPtr(100), Y: script.IntPtr(100)})
	s.AddAction(script.Action{Type: script.MouseClick, Timestamp: 0.01, X: script.IntPtr(100), Y: script.IntPtr(100), Button: "left"})
	s.AddAction(script.Action{Type: script.KeyType, Timestamp: 0.02, Text: "hi"})

	path := filepath.Join(t.TempDir(), "script.json")
	require.NoError(t, script.SaveFile(s, path))
	return path
}

// execute runs the root command with args and captures stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEndToEnd_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
