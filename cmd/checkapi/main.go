package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ai-invest/internal/bootstrap"
	"ai-invest/internal/llm"
	"ai-invest/internal/provider"
	"ai-invest/internal/store"
)

type options struct {
	showConfig  bool
	provider    string
	advanced    bool
	interactive bool
	envFile     string
	configPath  string
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "checkapi",
		Short: "Diagnose the LLM API configuration",
		Long: `Inspect the API configuration and test connectivity with the configured provider.

Without flags the current environment is loaded and a basic completion is requested.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.showConfig, "show-config", false, "Print the current configuration and supported providers")
	f.StringVar(&o.provider, "provider", "", "Test a provider template using API_KEY and MODEL_NAME from the environment")
	f.BoolVar(&o.advanced, "advanced", false, "Also run a test with sampling parameters")
	f.BoolVar(&o.interactive, "interactive", false, "Prompt for a provider configuration and write the env file once the test passes")
	f.StringVar(&o.envFile, "env-file", ".env", "Env file to load and write")
	f.StringVar(&o.configPath, "config", "config.yaml", "Optional YAML config file")
	cmd.MarkFlagsMutuallyExclusive("provider", "interactive")
	return cmd
}

func run(ctx context.Context, in io.Reader, out io.Writer, o options) error {
	if err := bootstrap.InitializeSystem(o.envFile); err != nil {
		return err
	}
	defer bootstrap.Shutdown()

	fmt.Fprintln(out, "AI investment toolkit - API configuration check")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	if o.showConfig {
		if err := showConfig(out, o.envFile); err != nil {
			return err
		}
		if !o.interactive && o.provider == "" && !o.advanced {
			return nil
		}
		fmt.Fprintln(out)
	}

	cfg, err := resolveConfig(in, out, o)
	if err != nil {
		fmt.Fprintln(out, suggestions)
		return err
	}
	rt := bootstrap.NewRuntime(ctx, cfg)

	fmt.Fprintf(out, "Testing %s (%s, model %s)...\n", cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.Model)
	var saveTo string
	if o.interactive {
		saveTo = o.envFile
	}
	if err := connectionTest(ctx, rt.Completer, out, cfg.LLM, saveTo); err != nil {
		reportFailure(out, err)
		return err
	}

	if o.advanced {
		reply, took, err := advancedTest(ctx, rt.Completer)
		if err != nil {
			reportFailure(out, err)
			return err
		}
		fmt.Fprintf(out, "✓ Advanced test passed in %s\n  Reply: %s\n", took.Round(1e6), llm.Preview(reply))
	}

	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out, "API configuration OK")
	return nil
}

func resolveConfig(in io.Reader, out io.Writer, o options) (*store.Config, error) {
	var (
		s   store.Settings
		err error
	)
	switch {
	case o.interactive:
		s, err = interactiveSetup(in, out)
	case o.provider != "":
		s, err = provider.Setup(o.provider, os.Getenv("API_KEY"), os.Getenv("MODEL_NAME"))
	default:
		cfg, err := store.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		if cfg.LLM.Legacy {
			fmt.Fprintln(out, "⚠ Using legacy DEEP_SEEK_API_KEY; consider migrating to API_KEY")
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	store.ApplyEnvOverrides(&s)
	return store.LoadConfigWithSettings(o.configPath, s)
}

func reportFailure(out io.Writer, err error) {
	fmt.Fprintf(out, "✗ API connection failed: %v\n", err)
	if h := llm.Hint(err); h != "" {
		fmt.Fprintf(out, "  Hint: %s\n", h)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, suggestions)
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
