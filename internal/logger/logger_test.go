package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, WARN)

	l.Info("CHECKOUT", "hidden")
	l.Warn("CHECKOUT", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "[CHECKOUT  ] shown")
}

func TestSpecializedHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, DEBUG)

	l.LogInventory("RESERVE", 12, "-2")
	l.LogCheckout("COMMITTED", "BK1", "ok")
	l.LogSecurity("DENIED", "user 4")

	out := buf.String()
	assert.Contains(t, out, "[RESERVE] category 12 - -2")
	assert.Contains(t, out, "[COMMITTED] BK1 - ok")
	assert.Contains(t, out, "WARN  [SECURITY  ] [DENIED] user 4")
}

func TestFileSinkWritesJSON(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, INFO)
	require.NoError(t, err)
	l.terminal = &bytes.Buffer{}

	l.Error("DATABASE", "connection lost")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "startickets-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == "connection lost" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "DATABASE", entry.Category)
			assert.Equal(t, "logger_test.go", entry.File)
		}
	}
	assert.True(t, found)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, INFO)

	h := RequestLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Contains(t, buf.String(), "GET /health - 418")
}
