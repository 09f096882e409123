package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	err := NewAppError(ErrCodeDatabase, "Failed to insert alert", "disk full")
	assert.Equal(t, "DATABASE_ERROR: Failed to insert alert (disk full)", err.Error())
	assert.NotEmpty(t, err.File)
	assert.NotZero(t, err.Line)

	plain := NewAppError(ErrCodeShutdown, "Monitor has been shut down")
	assert.Equal(t, "SHUTDOWN_ERROR: Monitor has been shut down", plain.Error())

	wrapped := fmt.Errorf("cycle: %w", err)
	assert.True(t, HasCode(wrapped, ErrCodeDatabase))
	assert.False(t, HasCode(wrapped, ErrCodeNotFound))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrCodeDatabase))

	assert.Contains(t, plain.WithStackTrace().StackTrace, "goroutine")
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsValidID(a))
	assert.False(t, IsValidID("not-an-id"))
}

func TestInitLogger(t *testing.T) {
	t.Run("rejects unknown level", func(t *testing.T) {
		assert.Error(t, InitLogger("loud", "text", "stdout", ""))
	})

	t.Run("writes json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "monitor.log")
		require.NoError(t, InitLogger("debug", "json", "file", path))
		defer InitLogger("info", "text", "stdout", "")

		assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
		ComponentLogger("test").Info("hello")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"component":"test"`)
		assert.Contains(t, string(data), `"msg":"hello"`)
	})
}
