package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, false)
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	buf.Reset()
	log = NewWriter(&buf, true)
	log.Debug().Msg("debug line")
	require.Contains(t, buf.String(), "debug line")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.log")
	log, file, err := NewFile(path, false)
	require.NoError(t, err)
	log.Info().Str("prefix", "0x00").Msg("search started")
	require.NoError(t, file.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), `"prefix":"0x00"`)

	_, _, err = NewFile(filepath.Join(t.TempDir(), "missing", "x.log"), false)
	require.Error(t, err)
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsole(&buf, false)
	log.Info().Str("status", "matched").Msg("search finished")
	require.Contains(t, buf.String(), "search finished")
	require.Contains(t, buf.String(), "status=matched")
	require.NotContains(t, buf.String(), "\x1b[")
}
