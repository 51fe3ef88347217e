// Package bootstrap wires configuration, observability and the LLM client
// shared by the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-invest/internal/calllog"
	"ai-invest/internal/interfaces"
	"ai-invest/internal/llm"
	"ai-invest/internal/llm/llmobs"
	"ai-invest/internal/logger"
	"ai-invest/internal/metrics"
	"ai-invest/internal/store"
	"ai-invest/internal/trace"
	"ai-invest/internal/translate"
)

// InitializeSystem loads the env file, then sets up the logger and tracer.
func InitializeSystem(envFile string) error {
	if err := store.LoadEnvFile(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// Shutdown flushes pending spans.
func Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
}

// LoadConfig loads config.yaml (optional) and the LLM settings.
func LoadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	if cfg.LLM.Legacy {
		logger.Warn(ctx, "Using legacy DEEP_SEEK_API_KEY configuration; consider migrating to API_KEY")
	}
	return cfg, nil
}

// Runtime holds the wired components of one command invocation.
type Runtime struct {
	Config    *store.Config
	Metrics   *metrics.Recorder
	CallLog   *calllog.Log
	Client    *llm.Client
	Completer interfaces.Completer
}

// NewRuntime constructs the observed LLM client from cfg and compresses call
// logs older than the configured retention.
func NewRuntime(ctx context.Context, cfg *store.Config) *Runtime {
	rt := &Runtime{
		Config:  cfg,
		Metrics: metrics.New(),
		CallLog: calllog.New(cfg.CallLog.Dir),
		Client:  llm.New(cfg.LLM),
	}
	rt.Completer = llmobs.Wrap(rt.Client, cfg.LLM.Provider, cfg.LLM.Model,
		llmobs.WithMetrics(rt.Metrics),
		llmobs.WithCallLog(rt.CallLog),
	)

	if days := cfg.CallLog.RetentionDays; days > 0 {
		n, err := rt.CallLog.CompressOlder(days)
		if err != nil {
			logger.Warn(ctx, "Failed to compress old call logs", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "Compressed old call logs", "files", n, "retention_days", days)
		}
	}

	logger.Info(ctx, "LLM client ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"base_url", cfg.LLM.BaseURL,
		"max_attempts", rt.Client.Policy().MaxAttempts,
	)
	return rt
}

// Translator builds a translator backed by Redis when configured, otherwise
// by the file cache.
func (rt *Runtime) Translator(ctx context.Context) (*translate.Translator, func(), error) {
	tc := rt.Config.Translation
	opts := []translate.Option{
		translate.WithMetrics(rt.Metrics),
		translate.WithWorkers(tc.Workers),
	}

	if tc.RedisAddr != "" {
		rs, err := translate.NewRedisStore(ctx, tc.RedisAddr, os.Getenv("REDIS_PASSWORD"), tc.RedisDB)
		if err == nil {
			logger.Info(ctx, "Using Redis translation cache", "addr", tc.RedisAddr)
			return translate.New(rt.Completer, rs, opts...), func() { _ = rs.Close() }, nil
		}
		logger.Warn(ctx, "Redis translation cache unavailable, using file cache", "addr", tc.RedisAddr, "error", err)
	}

	fs, err := translate.NewFileStore(tc.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open translation cache: %w", err)
	}
	return translate.New(rt.Completer, fs, opts...), func() {}, nil
}
