package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncCommand(t *testing.T) {
	cmd := newSyncCommand()

	assert.Equal(t, "sync", cmd.Name)
	assert.Equal(t, "Run one corpus sync against the configured storage", cmd.Description)
	assert.NotNil(t, cmd.Run)
	require.NotNil(t, cmd.Flags)

	source := cmd.Flags.Lookup("source")
	require.NotNil(t, source)
	assert.Equal(t, "", source.DefValue)

	root := cmd.Flags.Lookup("root")
	require.NotNil(t, root)
	assert.Equal(t, "", root.DefValue)
}

func TestSyncCommand_NoSource(t *testing.T) {
	oldSource := os.Getenv("LANTERN_CORPUS_SOURCE")
	os.Unsetenv("LANTERN_CORPUS_SOURCE")
	defer func() {
		if oldSource != "" {
			os.Setenv("LANTERN_CORPUS_SOURCE", oldSource)
		}
	}()

	err := runSyncCommand([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no corpus source")
}

func TestSyncCommand_InvalidSource(t *testing.T) {
	err := runSyncCommand([]string{"-source", "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration invalid")
}
