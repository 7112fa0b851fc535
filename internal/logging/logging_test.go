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

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	SetLevel("trace")
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel())
	SetLevel(" DEBUG ")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	SetLevel("bogus")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, "info", LevelFromVerbosity(0, "info"))
	assert.Equal(t, "debug", LevelFromVerbosity(1, "info"))
	assert.Equal(t, "trace", LevelFromVerbosity(3, "info"))
}

func TestApply_WritesConsoleAndFile(t *testing.T) {
	original := log.Logger
	t.Cleanup(func() {
		log.Logger = original
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "attendance.log")

	opts := DefaultOptions()
	opts.FilePath = path
	opts.Console = &console
	closer := Apply(opts)

	log.Info().Str("employee_id", "7").Msg("hello")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "employee_id=7")
}

func TestApply_ConsoleOnly(t *testing.T) {
	original := log.Logger
	t.Cleanup(func() { log.Logger = original })

	var console bytes.Buffer
	opts := DefaultOptions()
	opts.Console = &console

	require.NoError(t, Apply(opts).Close())
	log.Info().Msg("console only")
	assert.Contains(t, console.String(), "console only")
}
