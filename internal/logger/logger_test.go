package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})
	cl := Component(l, "indexer")
	cl.Info().Int("documents", 3).Msg("index built")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ragspan", line["service"])
	assert.Equal(t, "indexer", line["component"])
	assert.Equal(t, "index built", line["message"])
	assert.EqualValues(t, 3, line["documents"])
}

func TestNew_WithCaller(t *testing.T) {
	tests := []struct {
		name       string
		withCaller bool
	}{
		{"caller", true},
		{"no caller", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: "info", Output: &buf, WithCaller: tc.withCaller})
			l.Info().Msg("hello")

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			caller, ok := line[zerolog.CallerFieldName]
			assert.Equal(t, tc.withCaller, ok)
			if ok {
				assert.Contains(t, caller, "logger_test.go")
			}
		})
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})
	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
