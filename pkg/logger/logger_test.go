package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer

	l, err := New(&buf, "warn", false)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Str("id", "raspi").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"id":"raspi"`)
}

func TestNew_EmptyLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer

	l, err := New(&buf, "", false)
	require.NoError(t, err)

	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer

	l, err := New(&buf, "info", true)
	require.NoError(t, err)

	l.Info().Msg("hello")
	assert.NotContains(t, buf.String(), `"message"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(nil, "loud", false)
	assert.Error(t, err)
}
