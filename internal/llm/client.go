package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ai-invest/internal/api"
	"ai-invest/internal/interfaces"
	"ai-invest/internal/logger"
	"ai-invest/internal/provider"
	"ai-invest/internal/store"
	"ai-invest/internal/types"
)

const previewLimit = 500

var _ interfaces.Completer = (*Client)(nil)

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	http     *api.Client
	settings store.Settings
	policy   provider.Policy

	initialInterval time.Duration
	maxInterval     time.Duration
	waitHint        func(types.ErrorKind) time.Duration
}

type Option func(*Client)

// WithPolicy replaces the provider retry policy.
func WithPolicy(p provider.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithBackoff sets the first and largest exponential backoff interval.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = max
	}
}

// WithWaitHints replaces the per-kind minimum wait. nil disables the floor.
func WithWaitHints(fn func(types.ErrorKind) time.Duration) Option {
	return func(c *Client) { c.waitHint = fn }
}

// WithAPIClient replaces the HTTP transport.
func WithAPIClient(hc *api.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client for s. MaxRetries > 0 overrides the provider policy.
func New(s store.Settings, opts ...Option) *Client {
	c := &Client{
		settings:        s,
		policy:          provider.PolicyFor(s.Provider).WithMaxAttempts(s.MaxRetries),
		initialInterval: time.Second,
		maxInterval:     30 * time.Second,
		waitHint:        provider.WaitHint,
	}
	c.http = api.NewClient(
		api.WithBaseURL(strings.TrimRight(s.BaseURL, "/")),
		api.WithTimeout(s.Timeout),
		api.WithHeader("Authorization", "Bearer "+s.APIKey),
		api.WithRateLimit(s.RequestsPerSecond),
		api.WithLogging(true),
	)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Settings() store.Settings { return c.settings }
func (c *Client) Policy() provider.Policy  { return c.policy }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete sends messages and returns the first choice's content. Failures
// are retried according to the policy and returned as *Error.
func (c *Client) Complete(ctx context.Context, messages []types.Message, opts ...types.CallOption) (string, error) {
	o := types.ApplyCallOptions(opts...)
	model := c.settings.Model
	if o.Model != "" {
		model = o.Model
	}
	body := c.requestBody(model, messages, o)

	var (
		attempts int
		lastKind types.ErrorKind
	)
	op := func() (string, error) {
		attempts++
		logger.Debug(ctx, "Calling chat completion",
			"provider", c.settings.Provider,
			"model", model,
			"attempt", attempts,
			"max_attempts", c.policy.MaxAttempts,
		)

		text, kind, status, err := c.once(ctx, body)
		if err == nil {
			return text, nil
		}
		lastKind = kind
		le := &Error{Kind: kind, StatusCode: status, Provider: c.settings.Provider, Model: model, Err: err}
		// a denied limiter wait only gets worse as the deadline approaches
		var limited *api.LimitError
		if ctx.Err() != nil || errors.As(err, &limited) || !c.policy.Retryable(kind) {
			return "", backoff.Permanent(le)
		}
		return "", le
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn(ctx, "Chat completion failed, retrying",
			"provider", c.settings.Provider,
			"model", model,
			"attempt", attempts,
			"kind", KindOf(err),
			"wait", wait,
			"error", err,
		)
	}

	text, err := backoff.RetryNotifyWithData(op, c.backOff(ctx, &lastKind), notify)
	if err != nil {
		var le *Error
		if !errors.As(err, &le) {
			le = &Error{Kind: types.KindUnknown, Provider: c.settings.Provider, Model: model, Err: err}
		}
		le.Attempts = attempts
		return "", le
	}

	logger.Debug(ctx, "Chat completion succeeded",
		"provider", c.settings.Provider,
		"model", model,
		"attempts", attempts,
		"preview", Preview(text),
	)
	return text, nil
}

func (c *Client) requestBody(model string, messages []types.Message, o types.CallOptions) map[string]any {
	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	temp := c.settings.Temperature
	if o.Temperature != nil {
		temp = o.Temperature
	}
	if temp != nil {
		body["temperature"] = *temp
	}
	maxTokens := c.settings.MaxTokens
	if o.MaxTokens > 0 {
		maxTokens = o.MaxTokens
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	for k, v := range o.Extra {
		body[k] = v
	}
	return body
}

func (c *Client) once(ctx context.Context, body map[string]any) (string, types.ErrorKind, int, error) {
	resp, err := c.http.POST(ctx, "/chat/completions", body)
	if err != nil {
		kind, status := classify(err)
		return "", kind, status, err
	}

	raw := resp.String()
	if strings.Contains(raw, "AFC is enabled") {
		return "", types.KindAFC, resp.StatusCode, errors.New("AFC is enabled")
	}

	var r chatResponse
	if err := resp.ParseJSON(&r); err != nil {
		return "", types.KindEmpty, resp.StatusCode, fmt.Errorf("%w: %s", err, Preview(raw))
	}
	if r.Error != nil {
		kind := classifyStatus(resp.StatusCode, r.Error.Type+" "+r.Error.Message)
		if kind == types.KindUnknown {
			kind = types.KindServer
		}
		return "", kind, resp.StatusCode, fmt.Errorf("provider error: %s", r.Error.Message)
	}
	if len(r.Choices) == 0 {
		return "", types.KindEmpty, resp.StatusCode, errors.New("no choices in response")
	}
	text := r.Choices[0].Message.Content
	if text == "" {
		text = r.Choices[0].Text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.KindEmpty, resp.StatusCode, errors.New("empty message content")
	}
	return text, "", resp.StatusCode, nil
}

func (c *Client) backOff(ctx context.Context, lastKind *types.ErrorKind) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.initialInterval
	exp.MaxInterval = c.maxInterval
	exp.MaxElapsedTime = c.policy.MaxElapsed

	var b backoff.BackOff = exp
	if c.waitHint != nil {
		b = &hintedBackOff{exp: exp, floor: func() time.Duration { return c.waitHint(*lastKind) }}
	}
	retries := c.policy.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// hintedBackOff never waits less than floor(). When the floor does not fit
// in the remaining MaxElapsedTime it stops instead of overrunning it.
type hintedBackOff struct {
	exp   *backoff.ExponentialBackOff
	floor func() time.Duration
}

func (h *hintedBackOff) Reset() { h.exp.Reset() }

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.exp.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	f := h.floor()
	if f <= next {
		return next
	}
	if max := h.exp.MaxElapsedTime; max > 0 && h.exp.GetElapsedTime()+f > max {
		return backoff.Stop
	}
	return f
}

// Preview truncates s for logging.
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit]) + "..."
}
