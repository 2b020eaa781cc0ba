package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharfside/wharf/pkg/logger"
)

func TestToWriter(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New().ToWriter(&buf).Make()
	require.NoError(t, err)

	require.Zero(t, buf.Len())
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestLevelFiltersBelow(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New().ToWriter(&buf).Level(zerolog.WarnLevel).Make()
	require.NoError(t, err)

	log.Info().Msg("quiet")
	assert.Zero(t, buf.Len())
	log.Warn().Msg("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wharf.log")
	log, err := logger.New().ToPath(path).Make()
	require.NoError(t, err)

	log.Info().Msg("persisted")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "persisted")
}
