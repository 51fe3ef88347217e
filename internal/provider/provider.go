package provider

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-invest/internal/store"
)

// Template describes a known OpenAI-compatible endpoint.
type Template struct {
	Name         string
	BaseURL      string
	Models       []string
	DefaultModel string
	// NoKey marks local providers that accept any key.
	NoKey bool
}

var templates = map[string]Template{
	"openai": {
		Name:         "openai",
		BaseURL:      "https://api.openai.com/v1",
		Models:       []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo", "gpt-4o"},
		DefaultModel: "gpt-3.5-turbo",
	},
	"deepseek": {
		Name:         "deepseek",
		BaseURL:      "https://api.deepseek.com",
		Models:       []string{"deepseek-chat", "deepseek-coder"},
		DefaultModel: "deepseek-chat",
	},
	"siliconflow": {
		Name:    "siliconflow",
		BaseURL: "https://api.siliconflow.cn/v1",
		Models: []string{
			"deepseek-ai/DeepSeek-V3",
			"deepseek-ai/DeepSeek-R1",
			"Qwen/Qwen3-32B",
			"Qwen/Qwen3-30B-A3B",
			"Qwen/Qwen3-14B",
			"Qwen/Qwen3-8B",
			"Qwen/Qwen3-235B-A22B",
		},
		DefaultModel: "deepseek-ai/DeepSeek-V3",
	},
	"anthropic": {
		Name:         "anthropic",
		BaseURL:      "https://api.anthropic.com/v1",
		Models:       []string{"claude-3-sonnet-20240229", "claude-3-opus-20240229"},
		DefaultModel: "claude-3-sonnet-20240229",
	},
	"ollama": {
		Name:         "ollama",
		BaseURL:      "http://localhost:11434/v1",
		Models:       []string{"llama2", "codellama", "mistral"},
		DefaultModel: "llama2",
		NoKey:        true,
	},
	"together": {
		Name:         "together",
		BaseURL:      "https://api.together.xyz/v1",
		Models:       []string{"meta-llama/Llama-2-7b-chat-hf", "meta-llama/Llama-2-13b-chat-hf"},
		DefaultModel: "meta-llama/Llama-2-7b-chat-hf",
	},
	"groq": {
		Name:         "groq",
		BaseURL:      "https://api.groq.com/openai/v1",
		Models:       []string{"mixtral-8x7b-32768", "llama2-70b-4096"},
		DefaultModel: "mixtral-8x7b-32768",
	},
}

// Lookup returns the template registered under name (case-insensitive).
func Lookup(name string) (Template, bool) {
	t, ok := templates[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Names lists the registered providers in sorted order.
func Names() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasModel reports whether model is one of the template's known models.
func (t Template) HasModel(model string) bool {
	for _, m := range t.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Setup builds settings for the named provider. An empty model selects the
// template default.
func Setup(name, apiKey, model string) (store.Settings, error) {
	t, ok := Lookup(name)
	if !ok {
		return store.Settings{}, fmt.Errorf("unsupported provider %q; supported: %s", name, strings.Join(Names(), ", "))
	}
	if model == "" {
		model = t.DefaultModel
	}
	if apiKey == "" && t.NoKey {
		apiKey = t.Name
	}
	s := store.Settings{
		APIKey:            apiKey,
		BaseURL:           t.BaseURL,
		Model:             model,
		Provider:          t.Name,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
	}
	if err := s.Validate(); err != nil {
		return store.Settings{}, err
	}
	return s, nil
}
