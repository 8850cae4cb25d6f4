package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z - `)

func TestErrorLogHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewErrorLogHandler(&buf))

	logger.Info("ignored")
	logger.Warn("ignored too")
	logger.Error("Failed to remove role 42", "error", errors.New("missing access"))
	logger.With("scan", "01H").WithGroup("role").Error("add failed\nsecond line", "id", "7")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Regexp(t, linePattern, l)
	}
	assert.True(t, strings.HasSuffix(lines[0], " - Failed to remove role 42 error=missing access"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " - add failed second line scan=01H role.id=7"), lines[1])
}

func TestNewAppendsErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	require.NoError(t, os.WriteFile(path, []byte("2024-01-01T00:00:00.000Z - earlier\n"), 0o644))

	var console bytes.Buffer
	logger, closeLog, err := New(Options{Level: "warn", Console: &console, ErrorLog: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown on console")
	logger.Error("persisted")
	require.NoError(t, closeLog())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown on console")
	assert.Contains(t, console.String(), "persisted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-01-01T00:00:00.000Z - earlier", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " - persisted"))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
