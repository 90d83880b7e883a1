package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesFileAndConsole(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	path := filepath.Join(t.TempDir(), "grow.log")
	var console bytes.Buffer
	closer, err := Init(zerolog.InfoLevel, path, &console)
	require.NoError(t, err)

	log.Debug().Msg("filtered")
	log.Info().Str("zone", "water").Msg("Watering finished")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"zone":"water"`)
	assert.NotContains(t, string(data), "filtered")
	assert.Contains(t, console.String(), "Watering finished")
}

func TestInitBadPath(t *testing.T) {
	_, err := Init(zerolog.InfoLevel, filepath.Join(t.TempDir(), "missing", "dir", "grow.log"), nil)
	assert.Error(t, err)
}
