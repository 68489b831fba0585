package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json at warn level", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, false)

		l.Info().Msg("hidden")
		assert.Zero(t, buf.Len())

		l.Warn().Str("key", "value").Msg("shown")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "shown", entry["message"])
		assert.Equal(t, "value", entry["key"])
		assert.Contains(t, entry["caller"], "logger_test.go")
	})

	t.Run("console at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, true)

		l.Debug().Msg("visible")
		assert.Contains(t, buf.String(), "visible")
		assert.Contains(t, buf.String(), "DBG")
		assert.Contains(t, buf.String(), "logger_test.go")
	})
}
