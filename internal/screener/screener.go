package screener

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-invest/internal/advisor"
	"ai-invest/internal/logger"
	"ai-invest/internal/metrics"
	"ai-invest/internal/types"
)

// Analyzer produces a recommendation for one ticker.
type Analyzer interface {
	Advise(ctx context.Context, req advisor.Request) (types.Recommendation, error)
}

// Analysis is the screening result of one ticker.
type Analysis struct {
	Symbol         string                       `json:"symbol"`
	Name           string                       `json:"name"`
	CompositeScore float64                      `json:"composite_score"`
	AgentSignals   map[string]types.AgentSignal `json:"agent_signals"`
	KeyReasons     []string                     `json:"key_reasons"`
	RiskFactors    []string                     `json:"risk_factors"`
	Recommendation types.Recommendation         `json:"recommendation"`
}

// Config controls a screening run.
type Config struct {
	Concurrency int
	// Delay is waited before each analysis to stay under provider limits.
	Delay   time.Duration
	TopN    int
	Weights Weights
	// Template supplies the capital, news count and dates of every request.
	Template advisor.Request
}

func DefaultConfig() Config {
	return Config{
		Concurrency: 3,
		Delay:       2 * time.Second,
		TopN:        10,
		Weights:     DefaultWeights(),
	}
}

type Screener struct {
	analyzer Analyzer
	cfg      Config
	metrics  *metrics.Recorder
	// names resolves display names; the default is "Stock_<symbol>".
	names func(symbol string) string
}

type Option func(*Screener)

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Screener) { s.metrics = r }
}

func WithNames(fn func(symbol string) string) Option {
	return func(s *Screener) { s.names = fn }
}

func New(a Analyzer, cfg Config, opts ...Option) *Screener {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	s := &Screener{
		analyzer: a,
		cfg:      cfg,
		names:    func(symbol string) string { return "Stock_" + symbol },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run analyses tickers and returns the ranked top picks.
func (s *Screener) Run(ctx context.Context, tickers []string) ([]Analysis, error) {
	analyses, err := s.Analyze(ctx, tickers)
	if err != nil {
		return nil, err
	}
	top := Rank(analyses, s.cfg.TopN)
	logger.Info(ctx, "Screening completed",
		"tickers", len(tickers),
		"analysed", len(analyses),
		"top_picks", len(top),
	)
	return top, nil
}

// Analyze runs one analysis per ticker with bounded concurrency. Tickers
// whose analysis fails are logged and dropped; the order of the survivors
// follows the input. Only context cancellation fails the whole run.
func (s *Screener) Analyze(ctx context.Context, tickers []string) ([]Analysis, error) {
	results := make([]*Analysis, len(tickers))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, ticker := range tickers {
		i, ticker := i, strings.TrimSpace(ticker)
		if ticker == "" {
			continue
		}
		g.Go(func() error {
			if err := sleepCtx(gctx, s.cfg.Delay); err != nil {
				return err
			}
			a, err := s.analyzeOne(gctx, ticker)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.ErrorWithErr(gctx, "Analysis failed, skipping ticker", err, "ticker", ticker)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screening cancelled: %w", err)
	}

	out := make([]Analysis, 0, len(tickers))
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	if failed > 0 {
		logger.Warn(ctx, "Some analyses failed", "failed", failed, "succeeded", len(out))
	}
	return out, nil
}

func (s *Screener) analyzeOne(ctx context.Context, ticker string) (*Analysis, error) {
	req := s.cfg.Template
	req.Ticker = ticker
	req.ShowReasoning = false

	rec, err := s.analyzer.Advise(ctx, req)
	if err != nil {
		return nil, err
	}
	score, signals := Score(rec, s.cfg.Weights)
	if s.metrics != nil {
		s.metrics.RecordScore(ticker, score)
	}
	logger.Debug(ctx, "Ticker analysed", "ticker", ticker, "score", score, "action", rec.Action)
	return &Analysis{
		Symbol:         ticker,
		Name:           s.names(ticker),
		CompositeScore: score,
		AgentSignals:   signals,
		KeyReasons:     KeyReasons(signals),
		RiskFactors:    RiskFactors(signals),
		Recommendation: rec,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
