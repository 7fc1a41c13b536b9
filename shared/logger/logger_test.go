package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_JSONLevels(t *testing.T) {
	tests := []struct {
		level      string
		wantLevels []string
	}{
		{level: "debug", wantLevels: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantLevels: []string{"INFO", "WARN", "ERROR"}},
		{level: "WARN", wantLevels: []string{"WARN", "ERROR"}},
		{level: "error", wantLevels: []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := &bytes.Buffer{}
			log, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e", slog.String("job_id", "abc"))

			entries := decodeLines(t, output)
			require.Len(t, entries, len(tt.wantLevels))
			for i, entry := range entries {
				assert.Equal(t, tt.wantLevels[i], entry["level"])
			}
			assert.Equal(t, "abc", entries[len(entries)-1]["job_id"])
		})
	}
}

func TestNew_Console(t *testing.T) {
	output := &bytes.Buffer{}
	log, err := New(&Config{Level: "info", Format: "console", NoColor: true, writer: output})
	require.NoError(t, err)

	log.Info("conversion finished", slog.String("gif_file_id", "01J"))

	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "conversion finished")
	assert.Contains(t, output.String(), "gif_file_id=01J")
}

func TestNew_SourceLocation(t *testing.T) {
	output := &bytes.Buffer{}
	log, err := New(&Config{Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	log.Info("with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	log, err := New(&Config{Format: "json", Output: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("written to file")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
	assert.NoError(t, log.Close())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" info ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestLogger_WithGroupAndJobAttrs(t *testing.T) {
	output := &bytes.Buffer{}
	log, err := New(&Config{Format: "json", writer: output})
	require.NoError(t, err)

	log.With(JobAttrs("conversions", "job-1", 2)...).WithGroup("transcoder").Info("exited", slog.Int("code", 1))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "conversions", entries[0]["queue"])
	assert.Equal(t, "job-1", entries[0]["job_id"])
	assert.Equal(t, float64(2), entries[0]["attempt"])

	group, ok := entries[0]["transcoder"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), group["code"])
}
