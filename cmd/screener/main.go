package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"ai-invest/internal/advisor"
	"ai-invest/internal/bootstrap"
	"ai-invest/internal/logger"
	"ai-invest/internal/metrics"
	"ai-invest/internal/screener"
	"ai-invest/internal/store"
	"ai-invest/internal/types"
)

type options struct {
	tickers     []string
	top         int
	concurrency int
	metricsAddr string
	format      string
	configPath  string
	envFile     string
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "screener [tickers...]",
		Short: "Analyse a list of tickers and rank the best candidates",
		Long: `Run the advisor on every ticker with bounded concurrency, score each
recommendation by weighted agent confidence and print the ranked top picks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.tickers = append(o.tickers, args...)
			if len(o.tickers) == 0 {
				return errors.New("no tickers given; use --tickers or positional arguments")
			}
			format, err := parseFormat(o.format)
			if err != nil {
				return err
			}
			o.format = format
			return run(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&o.tickers, "tickers", nil, "Comma separated ticker symbols")
	f.IntVar(&o.top, "top", 0, "Number of top picks (default from config)")
	f.IntVar(&o.concurrency, "concurrency", 0, "Parallel analyses (default from config)")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while screening, e.g. :9090")
	f.StringVar(&o.format, "format", "json", "Output format: json or text")
	f.StringVar(&o.configPath, "config", "config.yaml", "Optional YAML config file")
	f.StringVar(&o.envFile, "env-file", ".env", "Env file to load")
	return cmd
}

func run(ctx context.Context, out io.Writer, o options) error {
	if err := bootstrap.InitializeSystem(o.envFile); err != nil {
		return err
	}
	defer bootstrap.Shutdown()

	cfg, err := bootstrap.LoadConfig(ctx, o.configPath)
	if err != nil {
		return err
	}
	rt := bootstrap.NewRuntime(ctx, cfg)

	if o.metricsAddr != "" {
		stop := serveMetrics(ctx, o.metricsAddr, rt.Metrics)
		defer stop()
	}

	sc := screener.New(advisor.New(rt.Completer), screenerConfig(cfg.Screener, o, time.Now()),
		screener.WithMetrics(rt.Metrics),
	)
	top, err := sc.Run(ctx, o.tickers)
	if err != nil {
		return err
	}

	if o.format == formatText {
		printText(out, top)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(top)
}

const (
	formatJSON = "json"
	formatText = "text"
)

// parseFormat normalizes the --format value.
func parseFormat(v string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(v)); f {
	case formatJSON, formatText:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q; use %s or %s", v, formatJSON, formatText)
	}
}

// screenerConfig merges config.yaml values with command line overrides.
func screenerConfig(sc store.ScreenerConfig, o options, now time.Time) screener.Config {
	cfg := screener.Config{
		Concurrency: sc.Concurrency,
		Delay:       time.Duration(sc.DelaySeconds * float64(time.Second)),
		TopN:        sc.TopN,
		Weights: screener.Weights{
			Technical:   sc.Weights.Technical,
			Fundamental: sc.Weights.Fundamental,
			Sentiment:   sc.Weights.Sentiment,
			Valuation:   sc.Weights.Valuation,
		},
	}
	if o.top > 0 {
		cfg.TopN = o.top
	}
	if o.concurrency > 0 {
		cfg.Concurrency = o.concurrency
	}

	end := now.AddDate(0, 0, -1)
	cfg.Template = advisor.Request{
		InitialCapital: sc.InitialCapital,
		NumOfNews:      sc.NumOfNews,
		EndDate:        end.Format(advisor.DateLayout),
	}
	if sc.LookbackDays > 0 {
		cfg.Template.StartDate = end.AddDate(0, 0, -sc.LookbackDays).Format(advisor.DateLayout)
	}
	return cfg
}

func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info(ctx, "Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server failed", err, "addr", addr)
		}
	}()

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
}

func signalMark(signal string) string {
	switch signal {
	case types.SignalBullish:
		return "+"
	case types.SignalBearish:
		return "-"
	default:
		return "="
	}
}

func printText(w io.Writer, top []screener.Analysis) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "TOP %d STOCK RECOMMENDATIONS\n", len(top))
	fmt.Fprintln(w, line)
	for i, a := range top {
		fmt.Fprintf(w, "\n#%d %s - %s\n", i+1, a.Symbol, a.Name)
		fmt.Fprintf(w, "Composite score: %.1f/100  Action: %s\n", a.CompositeScore, a.Recommendation.Action)
		for _, cat := range screener.Categories {
			if s, ok := a.AgentSignals[cat]; ok {
				fmt.Fprintf(w, "  [%s] %s: %s (%.0f%%)\n", signalMark(s.Signal), cat, s.Signal, s.Confidence*100)
			}
		}
		for _, r := range a.KeyReasons {
			fmt.Fprintf(w, "  * %s\n", r)
		}
		for _, r := range a.RiskFactors {
			fmt.Fprintf(w, "  ! %s\n", r)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
