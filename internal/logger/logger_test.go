package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("Should write text output at or above the level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Format: FormatText, Output: &buf})
		l.Debug("hidden")
		l.Info("window grew", "ref", "Genesis.2")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "window grew")
		assert.Contains(t, out, "Genesis.2")
	})

	t.Run("Should write JSON when the output is not a terminal", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DebugLevel, Format: FormatAuto, Output: &buf})
		l.Warn("fetch failed", "ref", "Genesis.3")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "fetch failed", entry["msg"])
		assert.Equal(t, "Genesis.3", entry["ref"])
	})

	t.Run("Should carry fields added with With", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Format: FormatText, Output: &buf}).With("component", "window")
		l.Info("reset")
		assert.Contains(t, buf.String(), "component")
		assert.Contains(t, buf.String(), "window")
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return the logger stored in the context", func(t *testing.T) {
		l := Discard()
		ctx := ContextWithLogger(context.Background(), l)
		assert.Equal(t, l, FromContext(ctx))
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
		assert.NotNil(t, FromContext(nil)) //nolint:staticcheck // nil context is tolerated
	})
}
