package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaskKey hides all but the first 8 and last 4 characters of key.
func MaskKey(key string) string {
	if len(key) > 12 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	return "***"
}

const envFooter = `
# Optional settings
# API_TIMEOUT=30
# MAX_RETRIES=3
# DEBUG_LOGGING=false
`

// SaveEnvFile writes the connection settings of s to path, replacing it.
func SaveEnvFile(path string, s Settings) error {
	body, err := godotenv.Marshal(map[string]string{
		"API_KEY":      s.APIKey,
		"API_BASE_URL": s.BaseURL,
		"MODEL_NAME":   s.Model,
		"API_PROVIDER": s.Provider,
	})
	if err != nil {
		return fmt.Errorf("encode env file: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# AI investment toolkit API configuration\n")
	fmt.Fprintf(&b, "# Generated %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "# Provider: %s\n\n", s.Provider)
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(envFooter)

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// EnvFileStatus describes a .env file on disk.
type EnvFileStatus struct {
	Path   string
	Exists bool
	HasKey bool
	// Placeholder is set when the key still holds a "your-..." template value.
	Placeholder bool
	Values      map[string]string
}

// CheckEnvFile inspects path without touching the process environment.
func CheckEnvFile(path string) (EnvFileStatus, error) {
	st := EnvFileStatus{Path: path}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("read env file: %w", err)
	}
	st.Exists = true
	st.Values = values

	key := values["API_KEY"]
	if key == "" {
		key = values["DEEP_SEEK_API_KEY"]
	}
	st.Placeholder = strings.HasPrefix(strings.ToLower(key), "your-")
	st.HasKey = key != "" && !st.Placeholder
	return st, nil
}

// LoadEnvFile loads path into the process environment. Variables that are
// already set keep their values. A missing file is ignored.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}
