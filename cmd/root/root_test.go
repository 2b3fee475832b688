package root

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCmdRoot(t *testing.T) {
	defaultDataDir := "/test/data/dir"
	cmd := NewCmdRoot(defaultDataDir)

	// Test command configuration
	assert.Equal(t, "pxedeck", cmd.Use)
	assert.Equal(t, "Fleet imaging operations dashboard", cmd.Short)
	assert.Contains(t, cmd.Long, "PXE imaging deployments")
	assert.Contains(t, cmd.Long, "recurring deployment schedules")

	// Test that PersistentPreRun is set
	assert.NotNil(t, cmd.PersistentPreRun)

	// Verify the command can be found by name
	assert.Equal(t, "pxedeck", cmd.Name())

	// Test that subcommands are properly registered
	subcommands := cmd.Commands()
	assert.NotEmpty(t, subcommands)

	subcommandNames := make([]string, len(subcommands))
	for i, subcmd := range subcommands {
		subcommandNames[i] = subcmd.Name()
	}

	expectedSubcommands := []string{"deployment", "device", "observe", "server", "version"}
	for _, expected := range expectedSubcommands {
		assert.Contains(t, subcommandNames, expected, "Expected subcommand %s not found", expected)
	}
}

func TestNewCmdRootFlags(t *testing.T) {
	defaultDataDir := "/test/data/dir"
	cmd := NewCmdRoot(defaultDataDir)

	// Check persistent flags exist
	dataDirFlag := cmd.PersistentFlags().Lookup("data-dir")
	assert.NotNil(t, dataDirFlag)
	assert.Equal(t, "d", dataDirFlag.Shorthand)
	assert.Equal(t, defaultDataDir, dataDirFlag.DefValue)

	logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
	assert.NotNil(t, logLevelFlag)
	assert.Equal(t, "l", logLevelFlag.Shorthand)

	noColorFlag := cmd.PersistentFlags().Lookup("no-color")
	assert.NotNil(t, noColorFlag)
	assert.Equal(t, "n", noColorFlag.Shorthand)
}
