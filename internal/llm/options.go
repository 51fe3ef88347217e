package llm

import "ai-invest/internal/types"

// WithModel overrides the configured model for one call.
func WithModel(model string) types.CallOption {
	return func(o *types.CallOptions) { o.Model = model }
}

func WithTemperature(t float64) types.CallOption {
	return func(o *types.CallOptions) { o.Temperature = &t }
}

func WithMaxTokens(n int) types.CallOption {
	return func(o *types.CallOptions) { o.MaxTokens = n }
}

// WithParam adds a provider-specific request field such as top_p.
func WithParam(key string, value any) types.CallOption {
	return func(o *types.CallOptions) {
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = value
	}
}
