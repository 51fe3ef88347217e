package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"sk-1234567890abcdef", "sk-12345...cdef"},
		{"short", "***"},
		{"exactly12chr", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskKey(tt.key), tt.key)
	}
}

func TestSaveEnvFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	s := Settings{
		APIKey:   "sk-abc123",
		BaseURL:  "https://api.deepseek.com",
		Model:    "deepseek-chat",
		Provider: "deepseek",
		Timeout:  30 * time.Second,
	}
	require.NoError(t, SaveEnvFile(path, s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# Provider: deepseek")
	assert.Contains(t, string(raw), "# MAX_RETRIES=3")

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", values["API_KEY"])
	assert.Equal(t, "https://api.deepseek.com", values["API_BASE_URL"])
	assert.Equal(t, "deepseek-chat", values["MODEL_NAME"])
	assert.Equal(t, "deepseek", values["API_PROVIDER"])
	_, hasTimeout := values["API_TIMEOUT"]
	assert.False(t, hasTimeout, "commented settings must not be parsed")
}

func TestCheckEnvFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		st, err := CheckEnvFile(filepath.Join(dir, "nope.env"))
		require.NoError(t, err)
		assert.False(t, st.Exists)
		assert.False(t, st.HasKey)
	})

	t.Run("placeholder", func(t *testing.T) {
		path := filepath.Join(dir, "placeholder.env")
		require.NoError(t, os.WriteFile(path, []byte("API_KEY=your-api-key-here\n"), 0o600))
		st, err := CheckEnvFile(path)
		require.NoError(t, err)
		assert.True(t, st.Exists)
		assert.True(t, st.Placeholder)
		assert.False(t, st.HasKey)
	})

	t.Run("legacy key counts", func(t *testing.T) {
		path := filepath.Join(dir, "legacy.env")
		require.NoError(t, os.WriteFile(path, []byte("DEEP_SEEK_API_KEY=sk-legacy\n"), 0o600))
		st, err := CheckEnvFile(path)
		require.NoError(t, err)
		assert.True(t, st.HasKey)
	})

	t.Run("empty key", func(t *testing.T) {
		path := filepath.Join(dir, "empty.env")
		require.NoError(t, os.WriteFile(path, []byte("API_KEY=\nMODEL_NAME=gpt-4\n"), 0o600))
		st, err := CheckEnvFile(path)
		require.NoError(t, err)
		assert.True(t, st.Exists)
		assert.False(t, st.HasKey)
		assert.Equal(t, "gpt-4", st.Values["MODEL_NAME"])
	})
}
