package translate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"ai-invest/internal/interfaces"
	"ai-invest/internal/llm"
	"ai-invest/internal/llm/llmobs"
	"ai-invest/internal/logger"
	"ai-invest/internal/metrics"
	"ai-invest/internal/types"
)

const systemPrompt = `你是一个专业的金融投资翻译专家，擅长将英文的股票分析内容翻译成自然流畅的中文。

翻译要求：
1. 保持金融术语的专业性和准确性
2. 翻译要自然流畅，符合中文表达习惯
3. 保留原文的逻辑结构和语气
4. 对于专业术语，使用标准的中文金融术语

常见术语对照：
- bullish = 看涨/看好
- bearish = 看跌/看空
- neutral = 中性
- technical analysis = 技术分析
- fundamental analysis = 基本面分析
- sentiment analysis = 情绪分析
- valuation analysis = 估值分析
- risk management = 风险管理
- confidence = 置信度
- fair value = 公允价值
- portfolio = 投资组合

请直接返回翻译结果，不要添加解释或前缀。`

const (
	// NoReasoning is returned for empty reasoning.
	NoReasoning = "系统未提供详细的决策理由。建议结合各项指标综合考虑。"

	reasoningTemplate = `基于综合分析的投资建议：

原文：%s

**分析要点：**
- 技术面：关注价格趋势和技术指标
- 基本面：评估公司财务状况和业务前景
- 情绪面：考虑市场情绪和投资者预期
- 估值面：判断当前价格是否合理
- 风险面：评估投资风险和仓位管理

建议投资者结合自身风险承受能力和投资目标，谨慎决策。`
)

// Translator renders model output in Chinese. Without a completer it falls
// back to phrase mapping.
type Translator struct {
	completer   interfaces.Completer
	store       Store
	metrics     *metrics.Recorder
	workers     int
	itemTimeout time.Duration
	attempts    int
	retryWait   time.Duration
}

type Option func(*Translator)

func WithMetrics(r *metrics.Recorder) Option {
	return func(t *Translator) { t.metrics = r }
}

// WithWorkers bounds parallel batch translation.
func WithWorkers(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithItemTimeout bounds each translation in a batch.
func WithItemTimeout(d time.Duration) Option {
	return func(t *Translator) { t.itemTimeout = d }
}

// WithAttempts sets how many model answers are tried before mapping.
func WithAttempts(n int, wait time.Duration) Option {
	return func(t *Translator) {
		if n > 0 {
			t.attempts = n
		}
		t.retryWait = wait
	}
}

func New(c interfaces.Completer, store Store, opts ...Option) *Translator {
	t := &Translator{
		completer:   c,
		store:       store,
		workers:     3,
		itemTimeout: 30 * time.Second,
		attempts:    2,
		retryWait:   time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Translator) lookup(ctx context.Context, text string) (string, bool) {
	if t.store == nil {
		return "", false
	}
	e, ok, err := t.store.Get(ctx, Key(text))
	if err != nil {
		logger.Warn(ctx, "Translation cache read failed", "error", err)
	}
	if t.metrics != nil {
		t.metrics.RecordCacheLookup(ok)
	}
	return e.Translation, ok
}

func (t *Translator) remember(ctx context.Context, text, translation string) {
	if t.store == nil {
		return
	}
	if err := t.store.Set(ctx, Key(text), newEntry(text, translation)); err != nil {
		logger.Warn(ctx, "Translation cache write failed", "error", err)
	}
}

// TranslateText returns the Chinese translation of text. Cached results are
// reused; failed or low-quality answers fall back to SimpleMapping.
func (t *Translator) TranslateText(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if cached, ok := t.lookup(ctx, text); ok {
		return cached
	}
	return t.translateUncached(ctx, text)
}

func acceptable(s string) bool {
	return utf8.RuneCountInString(s) > 10 && !strings.HasPrefix(s, "I ")
}

func (t *Translator) translateUncached(ctx context.Context, text string) string {
	if t.completer == nil {
		return SimpleMapping(text)
	}
	ctx = llmobs.WithOperation(ctx, "translate")
	messages := []types.Message{
		types.System(systemPrompt),
		types.User("请将以下投资分析内容翻译成中文：\n\n" + text),
	}
	for attempt := 1; attempt <= t.attempts; attempt++ {
		out, err := t.completer.Complete(ctx, messages, llm.WithTemperature(0.3), llm.WithMaxTokens(500))
		out = strings.TrimSpace(out)
		switch {
		case err != nil:
			logger.Warn(ctx, "Translation call failed", "attempt", attempt, "attempts", t.attempts, "error", err)
		case acceptable(out):
			t.remember(ctx, text, out)
			return out
		default:
			logger.Debug(ctx, "Translation rejected by quality check", "attempt", attempt, "preview", llm.Preview(out))
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < t.attempts && t.retryWait > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(t.retryWait):
			}
		}
	}
	logger.Info(ctx, "Falling back to phrase mapping for translation", "chars", utf8.RuneCountInString(text))
	return SimpleMapping(text)
}

// TranslateMultiple translates texts in parallel and preserves their order.
// Each item gets its own timeout; an item that runs out falls back to
// SimpleMapping.
func (t *Translator) TranslateMultiple(ctx context.Context, texts []string) []string {
	results := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = text
			continue
		}
		if cached, ok := t.lookup(ctx, text); ok {
			results[i] = cached
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(t.workers)
	for _, i := range pending {
		i := i
		g.Go(func() error {
			ictx := ctx
			if t.itemTimeout > 0 {
				var cancel context.CancelFunc
				ictx, cancel = context.WithTimeout(ctx, t.itemTimeout)
				defer cancel()
			}
			results[i] = t.translateUncached(ictx, texts[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func nonASCIIShare(s string) float64 {
	total, wide := 0, 0
	for _, r := range s {
		total++
		if r > 127 {
			wide++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(wide) / float64(total)
}

// TranslateReasoning translates decision reasoning. Text that is already
// mostly non-ASCII is returned unchanged; a translation that is too short or
// identical to the input is replaced by an explanatory template.
func (t *Translator) TranslateReasoning(ctx context.Context, reasoning string) string {
	trimmed := strings.TrimSpace(reasoning)
	if trimmed == "" || trimmed == "无详细说明" {
		return NoReasoning
	}
	if nonASCIIShare(reasoning) > 0.3 {
		return reasoning
	}
	translated := t.TranslateText(ctx, reasoning)
	if utf8.RuneCountInString(translated) < 20 || translated == reasoning {
		return fmt.Sprintf(reasoningTemplate, reasoning)
	}
	return translated
}

// AgentDisplayName returns the Chinese display name of an agent: standard
// names first, then keywords, then the model for names of reasonable length.
func (t *Translator) AgentDisplayName(ctx context.Context, name string) string {
	if mapped, ok := mapAgentName(name); ok {
		return mapped
	}
	n := utf8.RuneCountInString(name)
	if t.completer == nil || n <= 3 || n >= 50 {
		return name
	}
	if cached, ok := t.lookup(ctx, "agent:"+name); ok {
		return cached
	}

	ctx = llmobs.WithOperation(ctx, "translate")
	messages := []types.Message{
		types.System(systemPrompt),
		types.User("In stock analysis context, translate this agent name: " + name),
	}
	out, err := t.completer.Complete(ctx, messages, llm.WithTemperature(0.3), llm.WithMaxTokens(50))
	out = strings.TrimSpace(out)
	if err != nil || out == "" || out == name || strings.HasPrefix(out, "I ") || utf8.RuneCountInString(out) >= 20 {
		return name
	}
	t.remember(ctx, "agent:"+name, out)
	return out
}

// AgentSignal is an agent signal with its Chinese presentation.
type AgentSignal struct {
	types.AgentSignal
	DisplayName string `json:"display_name"`
	ReasoningZH string `json:"reasoning_zh,omitempty"`
}

// Recommendation is a recommendation with Chinese presentation fields.
type Recommendation struct {
	types.Recommendation
	AgentSignals []AgentSignal `json:"agent_signals"`
	ReasoningZH  string        `json:"reasoning_zh"`
}

// TranslateRecommendation adds Chinese reasoning and agent display names.
// Per-agent reasoning texts are translated in one parallel batch.
func (t *Translator) TranslateRecommendation(ctx context.Context, rec types.Recommendation) Recommendation {
	out := Recommendation{
		Recommendation: rec,
		AgentSignals:   make([]AgentSignal, len(rec.AgentSignals)),
		ReasoningZH:    t.TranslateReasoning(ctx, rec.Reasoning),
	}

	texts := make([]string, len(rec.AgentSignals))
	for i, s := range rec.AgentSignals {
		texts[i] = s.Reasoning
	}
	translated := t.TranslateMultiple(ctx, texts)

	for i, s := range rec.AgentSignals {
		out.AgentSignals[i] = AgentSignal{
			AgentSignal: s,
			DisplayName: t.AgentDisplayName(ctx, s.Agent),
		}
		if s.Reasoning != "" {
			out.AgentSignals[i].ReasoningZH = translated[i]
		}
	}
	return out
}

// Stats reports the cache contents.
func (t *Translator) Stats(ctx context.Context) (StoreStats, error) {
	if t.store == nil {
		return StoreStats{Backend: "none"}, nil
	}
	return t.store.Stats(ctx)
}

func (t *Translator) ClearCache(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	return t.store.Clear(ctx)
}
