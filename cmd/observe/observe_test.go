package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCmdObserve(t *testing.T) {
	cmd := NewCmdObserve()

	assert.Equal(t, "observe", cmd.Use)
	assert.Equal(t, "Follow a pxedeck server's live event stream", cmd.Short)

	serverFlag := cmd.Flags().Lookup("server")
	require.NotNil(t, serverFlag)
	assert.Equal(t, "s", serverFlag.Shorthand)
	assert.Equal(t, "http://127.0.0.1:8080", serverFlag.DefValue)
}

func TestNewCmdObserve_FlagParsing(t *testing.T) {
	cmd := NewCmdObserve()

	err := cmd.Flags().Parse([]string{"--server", "http://10.0.0.5:9090"})
	require.NoError(t, err)

	server, err := cmd.Flags().GetString("server")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:9090", server)
}
