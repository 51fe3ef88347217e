package types

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// CallOptions are per-call overrides of the client defaults.
type CallOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Extra       map[string]any
}

type CallOption func(*CallOptions)

// ApplyCallOptions folds opts into a fresh CallOptions.
func ApplyCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"

	SignalBullish = "bullish"
	SignalBearish = "bearish"
	SignalNeutral = "neutral"
)

type AgentSignal struct {
	Agent      string  `json:"agent"`
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Recommendation is the final trading recommendation printed by the CLIs.
type Recommendation struct {
	Action       string        `json:"action"`
	Quantity     int           `json:"quantity"`
	Confidence   float64       `json:"confidence"`
	AgentSignals []AgentSignal `json:"agent_signals"`
	Reasoning    string        `json:"reasoning"`
}

// Portfolio is the starting position handed to the model.
type Portfolio struct {
	Cash  float64 `json:"cash"`
	Stock int     `json:"stock"`
}

// ErrorKind classifies a failed completion call.
type ErrorKind string

const (
	KindInvalidKey    ErrorKind = "invalid_key"
	KindModelNotFound ErrorKind = "model_not_found"
	KindRateLimit     ErrorKind = "rate_limit"
	KindTimeout       ErrorKind = "timeout"
	KindConnection    ErrorKind = "connection"
	KindServer        ErrorKind = "server"
	KindBadRequest    ErrorKind = "bad_request"
	KindAFC           ErrorKind = "afc"
	KindEmpty         ErrorKind = "empty_response"
	KindUnknown       ErrorKind = "unknown"
)
