package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs re-inits the logger against a buffer and restores defaults
// when the test ends.
func captureLogs(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	Init(cfg)
	t.Cleanup(func() {
		Close()
		Init(DefaultConfig())
	})
	return &buf
}

func TestInit_EmitsStructuredJSON(t *testing.T) {
	buf := captureLogs(t, Config{Level: DebugLevel})

	Info().Str("session", "general_260802_101500").Msg("session started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "session started", record["message"])
	assert.Equal(t, "general_260802_101500", record["session"])
	assert.NotEmpty(t, record["time"])
}

func TestInit_LevelFiltering(t *testing.T) {
	buf := captureLogs(t, Config{Level: WarnLevel})

	Debug().Msg("hidden")
	Info().Msg("hidden too")
	Warn().Msg("visible")
	Error().Msg("also visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "also visible")
}

func TestInit_PrettyConsoleIsNotJSON(t *testing.T) {
	buf := captureLogs(t, Config{Level: InfoLevel, Pretty: true})

	Info().Msg("readable line")

	out := buf.String()
	assert.Contains(t, out, "readable line")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))), "pretty output is for humans, not parsers")
}

func TestInit_FileLogging(t *testing.T) {
	dir := t.TempDir()
	captureLogs(t, Config{Level: InfoLevel, LogToFile: true, LogDir: dir})

	path := GetLogFilePath()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "wolo-"))
	assert.True(t, strings.HasSuffix(path, ".log"))

	Info().Msg("to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestClose_ReleasesFile(t *testing.T) {
	dir := t.TempDir()
	captureLogs(t, Config{Level: InfoLevel, LogToFile: true, LogDir: dir})

	require.NotEmpty(t, GetLogFilePath())
	Close()
	assert.Empty(t, GetLogFilePath())
}

func TestWith_ChildLoggerCarriesFields(t *testing.T) {
	buf := captureLogs(t, Config{Level: DebugLevel})

	child := With().Str("component", "watch").Logger()
	child.Info().Msg("observer attached")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "watch", record["component"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		" info ":  InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"ERROR":   ErrorLevel,
		"fatal":   FatalLevel,
		"":        InfoLevel,
		"verbose": InfoLevel, // unknown names fall back, never fail
	}
	for in, want := range cases {
		assert.Equalf(t, want, ParseLevel(in), "input %q", in)
	}
}
