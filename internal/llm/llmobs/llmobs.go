package llmobs

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"ai-invest/internal/calllog"
	"ai-invest/internal/interfaces"
	"ai-invest/internal/llm"
	"ai-invest/internal/logger"
	"ai-invest/internal/metrics"
	"ai-invest/internal/trace"
	"ai-invest/internal/types"
)

// observableCompleter wraps a Completer with logging, tracing, metrics and
// the call log.
type observableCompleter struct {
	completer interfaces.Completer
	provider  string
	model     string
	metrics   *metrics.Recorder
	calls     *calllog.Log
}

// Compile-time interface check
var _ interfaces.Completer = (*observableCompleter)(nil)

type Option func(*observableCompleter)

func WithMetrics(r *metrics.Recorder) Option {
	return func(o *observableCompleter) { o.metrics = r }
}

func WithCallLog(l *calllog.Log) Option {
	return func(o *observableCompleter) { o.calls = l }
}

// Wrap wraps a completer with observability middleware. provider and model
// label the records; a per-call model override takes precedence.
func Wrap(c interfaces.Completer, provider, model string, opts ...Option) interfaces.Completer {
	o := &observableCompleter{completer: c, provider: provider, model: model}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type operationKey struct{}

// WithOperation labels calls made with ctx, e.g. "advise" or "translate".
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operation(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}

func (o *observableCompleter) Complete(ctx context.Context, messages []types.Message, opts ...types.CallOption) (string, error) {
	model := o.model
	if m := types.ApplyCallOptions(opts...).Model; m != "" {
		model = m
	}
	op := operation(ctx)

	ctx, span := trace.StartSpan(ctx, "llm.Complete", oteltrace.WithAttributes(
		attribute.String("llm.provider", o.provider),
		attribute.String("llm.model", model),
		attribute.String("llm.operation", op),
	))
	defer span.End()

	// DebugSkip(1) reports the caller of this middleware
	logger.DebugSkip(ctx, 1, "Requesting chat completion",
		"provider", o.provider,
		"model", model,
		"operation", op,
		"messages", len(messages),
	)

	start := time.Now()
	text, err := o.completer.Complete(ctx, messages, opts...)
	elapsed := time.Since(start)

	entry := calllog.Entry{
		Provider:  o.provider,
		Model:     model,
		Operation: op,
		LatencyMS: elapsed.Milliseconds(),
	}

	if err != nil {
		kind := llm.KindOf(err)
		logger.ErrorWithErrSkip(ctx, 1, "Chat completion failed", err,
			"provider", o.provider,
			"model", model,
			"operation", op,
			"kind", kind,
			"hint", llm.Hint(err),
			"duration_ms", elapsed.Milliseconds(),
		)
		if o.metrics != nil {
			o.metrics.RecordRequest(o.provider, model, "error", elapsed.Seconds())
			o.metrics.RecordError(o.provider, string(kind))
		}
		entry.Status = "error"
		entry.Kind = string(kind)
		entry.Error = err.Error()
		var le *llm.Error
		if errors.As(err, &le) {
			entry.Attempts = le.Attempts
		}
		o.record(ctx, entry)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Chat completion received",
		"provider", o.provider,
		"model", model,
		"operation", op,
		"chars", len(text),
		"duration_ms", elapsed.Milliseconds(),
	)
	if o.metrics != nil {
		o.metrics.RecordRequest(o.provider, model, "success", elapsed.Seconds())
	}
	entry.Status = "success"
	entry.Preview = llm.Preview(text)
	o.record(ctx, entry)
	return text, nil
}

func (o *observableCompleter) record(ctx context.Context, e calllog.Entry) {
	if o.calls == nil {
		return
	}
	if _, err := o.calls.Append(e); err != nil {
		logger.Warn(ctx, "Failed to write call log", "dir", o.calls.Dir(), "error", err)
	}
}
