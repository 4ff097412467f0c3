package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout redirects both os.Stdout and color.Output: the color
// package binds its writer at init, so swapping os.Stdout alone would
// miss the colored helpers.
func captureStdout(f func()) string {
	oldStd, oldColor := os.Stdout, color.Output
	r, w, _ := os.Pipe()
	os.Stdout = w
	color.Output = w

	f()

	w.Close()
	os.Stdout = oldStd
	color.Output = oldColor

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess(t *testing.T) {
	out := captureStdout(func() {
		Success("started %s monitoring", "file")
	})

	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "started file monitoring")
}

func TestErrorGoesToStderr(t *testing.T) {
	var out string
	errOut := captureStderr(func() {
		out = captureStdout(func() {
			Error("connect to %s: refused", "localhost:8175")
		})
	})

	assert.Empty(t, out)
	assert.Contains(t, errOut, "✗")
	assert.Contains(t, errOut, "connect to localhost:8175: refused")
}

func TestInfoHasNoGlyph(t *testing.T) {
	out := captureStdout(func() {
		Info("watching all categories")
	})

	assert.Contains(t, out, "watching all categories")
	assert.NotContains(t, out, "✓")
	assert.NotContains(t, out, "✗")
}

func TestWarn(t *testing.T) {
	out := captureStdout(func() {
		Warn("snapshot is %ds old", 95)
	})

	assert.Contains(t, out, "⚠")
	assert.Contains(t, out, "snapshot is 95s old")
}

func TestJSONIndented(t *testing.T) {
	out := captureStdout(func() {
		require.NoError(t, JSON(map[string]interface{}{
			"class": "network",
			"total": 42,
		}))
	})

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "network", parsed["class"])
	assert.Equal(t, float64(42), parsed["total"])
	assert.Contains(t, out, "  \"class\":")
}

func TestTableRender(t *testing.T) {
	table := NewTable([]string{"CLASS", "STATE"})
	table.AddRow([]string{"file", "running"})
	table.AddRow([]string{"network", "idle"})

	out := captureStdout(func() {
		table.Render()
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "CLASS")
	assert.Contains(t, lines[1], "----")
	assert.Contains(t, lines[2], "file")
	assert.Contains(t, lines[3], "network")

	// Columns pad to the widest cell so rows line up.
	assert.True(t, strings.HasPrefix(lines[3], "network  "), "row = %q", lines[3])
}

func TestTableRenderEmpty(t *testing.T) {
	table := NewTable([]string{"NAME"})

	out := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "----")
}

func TestTableIgnoresExtraCells(t *testing.T) {
	table := NewTable([]string{"A"})
	table.AddRow([]string{"1", "overflow"})

	out := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, out, "1")
	assert.NotContains(t, out, "overflow")
}
