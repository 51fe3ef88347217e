package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ai-invest/internal/advisor"
	"ai-invest/internal/bootstrap"
	"ai-invest/internal/llm"
	"ai-invest/internal/logger"
	"ai-invest/internal/store"
)

type options struct {
	req        advisor.Request
	translate  bool
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Ask the configured LLM for a trading recommendation",
		Long: `Ask the configured OpenAI-compatible provider for a trading decision on
one ticker and print it as JSON on stdout. Logs are written to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.req.Ticker, "ticker", "", "Stock ticker symbol (required)")
	f.BoolVar(&o.req.ShowReasoning, "show-reasoning", false, "Include per-agent reasoning in the output")
	f.Float64Var(&o.req.InitialCapital, "initial-capital", advisor.DefaultInitialCapital, "Initial cash amount")
	f.IntVar(&o.req.Stock, "stock", 0, "Shares currently held")
	f.IntVar(&o.req.NumOfNews, "num-of-news", advisor.DefaultNumOfNews, "Number of news articles to consider (1-100)")
	f.StringVar(&o.req.StartDate, "start-date", "", "Start date YYYY-MM-DD (default: one year before end date)")
	f.StringVar(&o.req.EndDate, "end-date", "", "End date YYYY-MM-DD (default: yesterday)")
	f.BoolVar(&o.translate, "translate", false, "Add Chinese reasoning and agent display names")
	f.StringVar(&o.configPath, "config", "config.yaml", "Optional YAML config file")
	f.StringVar(&o.envFile, "env-file", ".env", "Env file to load")
	_ = cmd.MarkFlagRequired("ticker")
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

	rec, err := advisor.New(rt.Completer).Advise(ctx, o.req)
	if err != nil {
		return err
	}

	var result any = rec
	if o.translate {
		tr, closeFn, err := rt.Translator(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		result = tr.TranslateRecommendation(ctx, rec)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Advisor failed", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printHint(err)
		stop()
		os.Exit(1)
	}
}

func printHint(err error) {
	switch {
	case errors.Is(err, store.ErrMissingAPIKey), errors.Is(err, store.ErrMissingModel):
		fmt.Fprintln(os.Stderr, "Hint: run checkapi --interactive to create a .env file")
	default:
		if h := llm.Hint(err); h != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", h)
		}
	}
}
