package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultModel    = "gpt-3.5-turbo"
	DefaultProvider = "openai"

	LegacyBaseURL  = "https://api.deepseek.com"
	LegacyModel    = "deepseek-chat"
	LegacyProvider = "deepseek"
)

var (
	ErrMissingAPIKey = errors.New("API_KEY not found in environment variables; set API_KEY in your .env file")
	ErrMissingModel  = errors.New("MODEL_NAME not found in environment variables; set MODEL_NAME in your .env file")
)

var validate = validator.New()

// Settings is the resolved connection configuration for one provider.
type Settings struct {
	APIKey            string        `validate:"required"`
	BaseURL           string        `validate:"required,url"`
	Model             string        `validate:"required"`
	Provider          string        `validate:"required"`
	Timeout           time.Duration `validate:"gt=0"`
	MaxRetries        int           `validate:"gte=0,lte=10"` // 0 defers to the provider policy
	RequestsPerSecond float64       `validate:"gte=0"`
	Temperature       *float64      `validate:"omitempty,gte=0,lte=2"`
	MaxTokens         int           `validate:"gte=0"`
	// Legacy is set when the key came from DEEP_SEEK_API_KEY.
	Legacy bool
}

// LLMFileConfig holds the non-secret LLM defaults of config.yaml.
type LLMFileConfig struct {
	Provider          string   `yaml:"provider" default:"openai"`
	BaseURL           string   `yaml:"base_url" default:"https://api.openai.com/v1"`
	Model             string   `yaml:"model" default:"gpt-3.5-turbo"`
	TimeoutSeconds    int      `yaml:"timeout_seconds" default:"30"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestsPerSecond float64  `yaml:"requests_per_second" default:"5"`
	Temperature       *float64 `yaml:"temperature"`
	MaxTokens         int      `yaml:"max_tokens"`
}

type TranslationConfig struct {
	CacheDir  string `yaml:"cache_dir" default:"cache/translation"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	Workers   int    `yaml:"workers" default:"3"`
}

type ScoreWeights struct {
	Technical   float64 `yaml:"technical" default:"0.25"`
	Fundamental float64 `yaml:"fundamental" default:"0.30"`
	Sentiment   float64 `yaml:"sentiment" default:"0.10"`
	Valuation   float64 `yaml:"valuation" default:"0.35"`
}

type ScreenerConfig struct {
	Concurrency    int          `yaml:"concurrency" default:"3"`
	DelaySeconds   float64      `yaml:"delay_seconds" default:"2"`
	TopN           int          `yaml:"top_n" default:"10"`
	InitialCapital float64      `yaml:"initial_capital" default:"100000"`
	NumOfNews      int          `yaml:"num_of_news" default:"5"`
	LookbackDays   int          `yaml:"lookback_days" default:"90"`
	Weights        ScoreWeights `yaml:"weights"`
}

type CallLogConfig struct {
	Dir           string `yaml:"dir" default:"logs"`
	RetentionDays int    `yaml:"retention_days"`
}

// Config is the full application configuration.
type Config struct {
	LLM         Settings          `yaml:"-"`
	Translation TranslationConfig `yaml:"translation"`
	Screener    ScreenerConfig    `yaml:"screener"`
	CallLog     CallLogConfig     `yaml:"call_log"`
}

type fileConfig struct {
	LLM         LLMFileConfig     `yaml:"llm"`
	Translation TranslationConfig `yaml:"translation"`
	Screener    ScreenerConfig    `yaml:"screener"`
	CallLog     CallLogConfig     `yaml:"call_log"`
}

// LoadConfig reads the optional YAML file at path and resolves the LLM
// settings from the environment on top of it. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg, base, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	settings, err := ResolveSettings(base)
	if err != nil {
		return nil, err
	}
	cfg.LLM = settings
	return cfg, nil
}

// LoadConfigWithSettings reads path like LoadConfig but takes the LLM
// connection from s instead of the environment.
func LoadConfigWithSettings(path string, s Settings) (*Config, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg, _, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.LLM = s
	return cfg, nil
}

func readConfig(path string) (*Config, LLMFileConfig, error) {
	var fc fileConfig
	if err := defaults.Set(&fc); err != nil {
		return nil, fc.LLM, fmt.Errorf("apply config defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &fc); err != nil {
				return nil, fc.LLM, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fc.LLM, fmt.Errorf("read config: %w", err)
		}
	}

	if v := os.Getenv("API_LOG_DIR"); v != "" {
		fc.CallLog.Dir = v
	}
	if n, ok := envInt("API_LOG_RETENTION_DAYS"); ok {
		fc.CallLog.RetentionDays = n
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		fc.Translation.RedisAddr = v
	}

	return &Config{
		Translation: fc.Translation,
		Screener:    fc.Screener,
		CallLog:     fc.CallLog,
	}, fc.LLM, nil
}

// LoadSettings resolves LLM settings from the environment alone.
func LoadSettings() (Settings, error) {
	var base LLMFileConfig
	if err := defaults.Set(&base); err != nil {
		return Settings{}, err
	}
	return ResolveSettings(base)
}

// ResolveSettings applies the environment on top of base.
//
// API_KEY wins together with API_BASE_URL, MODEL_NAME and API_PROVIDER.
// Without it, DEEP_SEEK_API_KEY selects the DeepSeek endpoint with
// DEEP_SEEK_MODEL. Without either, ErrMissingAPIKey is returned.
func ResolveSettings(base LLMFileConfig) (Settings, error) {
	s := Settings{
		APIKey:            os.Getenv("API_KEY"),
		BaseURL:           envOr("API_BASE_URL", base.BaseURL),
		Model:             envOr("MODEL_NAME", base.Model),
		Provider:          envOr("API_PROVIDER", base.Provider),
		Timeout:           time.Duration(base.TimeoutSeconds) * time.Second,
		MaxRetries:        base.MaxRetries,
		RequestsPerSecond: base.RequestsPerSecond,
		Temperature:       base.Temperature,
		MaxTokens:         base.MaxTokens,
	}

	if s.APIKey == "" {
		if legacy := os.Getenv("DEEP_SEEK_API_KEY"); legacy != "" {
			s.APIKey = legacy
			s.BaseURL = LegacyBaseURL
			s.Model = envOr("DEEP_SEEK_MODEL", LegacyModel)
			s.Provider = LegacyProvider
			s.Legacy = true
		}
	}

	ApplyEnvOverrides(&s)
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ApplyEnvOverrides applies API_TIMEOUT, MAX_RETRIES and
// API_REQUESTS_PER_SECOND to s. Unset or unparsable values leave s as is.
func ApplyEnvOverrides(s *Settings) {
	if n, ok := envInt("API_TIMEOUT"); ok && n > 0 {
		s.Timeout = time.Duration(n) * time.Second
	}
	if n, ok := envInt("MAX_RETRIES"); ok {
		s.MaxRetries = n
	}
	if v := os.Getenv("API_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			s.RequestsPerSecond = f
		}
	}
}

// Validate checks the settings. Missing key and model map to their sentinels.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(s.Model) == "" {
		return ErrMissingModel
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}
