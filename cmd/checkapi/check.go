package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ai-invest/internal/interfaces"
	"ai-invest/internal/llm"
	"ai-invest/internal/provider"
	"ai-invest/internal/store"
	"ai-invest/internal/types"
)

const expectedReply = "API test successful"

var errUnexpectedReply = errors.New("unexpected reply from model")

// basicTest asks for a fixed phrase and checks the reply contains it.
func basicTest(ctx context.Context, c interfaces.Completer) (string, error) {
	reply, err := c.Complete(ctx, []types.Message{
		types.User("Hello, please respond with '" + expectedReply + "'"),
	})
	if err != nil {
		return "", err
	}
	if !strings.Contains(strings.ToLower(reply), strings.ToLower(expectedReply)) {
		return reply, fmt.Errorf("%w: %q", errUnexpectedReply, llm.Preview(reply))
	}
	return reply, nil
}

// advancedTest exercises sampling parameters and a system prompt.
func advancedTest(ctx context.Context, c interfaces.Completer) (string, time.Duration, error) {
	start := time.Now()
	reply, err := c.Complete(ctx, []types.Message{
		types.System("You are a concise financial analyst."),
		types.User("In one sentence, what does a P/E ratio measure?"),
	}, llm.WithTemperature(0.7), llm.WithMaxTokens(100))
	return reply, time.Since(start), err
}

var configVars = []string{"API_KEY", "API_BASE_URL", "MODEL_NAME", "API_PROVIDER", "DEEP_SEEK_API_KEY", "DEEP_SEEK_MODEL"}

// showConfig prints the environment configuration with keys masked.
func showConfig(w io.Writer, envFile string) error {
	fmt.Fprintln(w, "Environment variables:")
	for _, k := range configVars {
		v := os.Getenv(k)
		switch {
		case v == "":
			fmt.Fprintf(w, "  ✗ %s: not set\n", k)
		case strings.HasSuffix(k, "API_KEY"):
			fmt.Fprintf(w, "  ✓ %s: %s\n", k, store.MaskKey(v))
		default:
			fmt.Fprintf(w, "  ✓ %s: %s\n", k, v)
		}
	}

	st, err := store.CheckEnvFile(envFile)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	switch {
	case !st.Exists:
		fmt.Fprintf(w, "✗ Env file not found: %s\n", envFile)
	case st.Placeholder:
		fmt.Fprintf(w, "⚠ Env file %s still contains a placeholder API key\n", envFile)
	case !st.HasKey:
		fmt.Fprintf(w, "⚠ Env file %s has no API key\n", envFile)
	default:
		fmt.Fprintf(w, "✓ Env file: %s\n", envFile)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported providers:")
	for _, name := range provider.Names() {
		t, _ := provider.Lookup(name)
		fmt.Fprintf(w, "  %-12s %s (default model %s)\n", t.Name, t.BaseURL, t.DefaultModel)
	}
	return nil
}

// prompter reads answers line by line.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(question, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, fallback)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return fallback, nil
	}
	return line, nil
}

// interactiveSetup prompts for provider, key and model. Nothing is written;
// see connectionTest.
func interactiveSetup(in io.Reader, out io.Writer) (store.Settings, error) {
	p := &prompter{in: bufio.NewReader(in), out: out}

	fmt.Fprintf(out, "Supported providers: %s\n", strings.Join(provider.Names(), ", "))
	name, err := p.ask("Provider", store.DefaultProvider)
	if err != nil {
		return store.Settings{}, err
	}
	t, ok := provider.Lookup(name)
	if !ok {
		return store.Settings{}, fmt.Errorf("unsupported provider %q", name)
	}

	var key string
	if t.NoKey {
		key, err = p.ask("API key (optional)", "")
	} else {
		key, err = p.ask("API key", "")
	}
	if err != nil {
		return store.Settings{}, err
	}

	fmt.Fprintf(out, "Available models: %s\n", strings.Join(t.Models, ", "))
	model, err := p.ask("Model", t.DefaultModel)
	if err != nil {
		return store.Settings{}, err
	}
	if !t.HasModel(model) {
		fmt.Fprintf(out, "⚠ Model %s is not in the known list for %s\n", model, t.Name)
	}

	return provider.Setup(t.Name, key, model)
}

// connectionTest runs basicTest and, when saveTo is set, writes s there
// once the provider has answered correctly.
func connectionTest(ctx context.Context, c interfaces.Completer, out io.Writer, s store.Settings, saveTo string) error {
	reply, err := basicTest(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ API connection successful\n  Reply: %s\n", llm.Preview(reply))
	if saveTo == "" {
		return nil
	}
	if err := store.SaveEnvFile(saveTo, s); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Configuration saved to %s\n", saveTo)
	return nil
}

const suggestions = `Suggestions:
  1. Make sure the env file exists and holds a valid API configuration
  2. Check that the API key is valid and has remaining balance
  3. Verify API_BASE_URL
  4. Confirm MODEL_NAME is offered by the provider
  5. Check network connectivity and firewall settings

Example .env:
  API_KEY=sk-your-actual-api-key-here
  API_BASE_URL=https://api.siliconflow.cn/v1
  MODEL_NAME=deepseek-ai/DeepSeek-V3
  API_PROVIDER=siliconflow`
