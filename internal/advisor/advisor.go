package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-invest/internal/decision"
	"ai-invest/internal/interfaces"
	"ai-invest/internal/llm/llmobs"
	"ai-invest/internal/logger"
	"ai-invest/internal/types"
)

// ParseFailureReason is the reasoning of the hold returned for unparseable output.
const ParseFailureReason = "unable_to_parse_model_output"

const systemPrompt = `You are the portfolio manager of an investment team. Technical, fundamental, sentiment, valuation and risk analysts each report a signal for the ticker. Combine their views into one trading decision for the given portfolio and date range.
Output STRICT JSON only. The action must be one of buy, sell or hold. Quantity is a whole number of shares affordable with the available cash for a buy and no more than the shares held for a sell. Confidence values are between 0 and 1.`

const schema = `{"action":"buy|sell|hold","quantity":0,"confidence":0.0,"agent_signals":[{"agent":"Technical Analysis|Fundamental Analysis|Sentiment Analysis|Valuation Analysis|Risk Management","signal":"bullish|bearish|neutral","confidence":0.0%s}],"reasoning":"..."}`

// Advisor turns a Request into a Recommendation with one completion.
type Advisor struct {
	completer interfaces.Completer
	opts      []types.CallOption
	now       func() time.Time
}

func New(c interfaces.Completer, opts ...types.CallOption) *Advisor {
	return &Advisor{completer: c, opts: opts, now: time.Now}
}

// Advise validates req, asks the model and parses its answer. Output that
// cannot be parsed degrades to a hold instead of failing.
func (a *Advisor) Advise(ctx context.Context, req Request) (types.Recommendation, error) {
	if err := req.Prepare(a.now()); err != nil {
		return types.Recommendation{}, err
	}

	timer := logger.StartOperation(ctx, "advisor.Advise", "ticker", req.Ticker)
	ctx = llmobs.WithOperation(timer.GetContext(), "advise")

	messages, err := BuildMessages(req)
	if err != nil {
		timer.EndWithError(err)
		return types.Recommendation{}, err
	}

	text, err := a.completer.Complete(ctx, messages, a.opts...)
	if err != nil {
		timer.EndWithError(err)
		return types.Recommendation{}, fmt.Errorf("advise %s: %w", req.Ticker, err)
	}

	rec, err := decision.Parse(text)
	if errors.Is(err, decision.ErrUnparseable) {
		logger.Warn(ctx, "Model output is not a recommendation, holding", "ticker", req.Ticker, "preview", preview(text))
		rec = decision.Hold(ParseFailureReason)
	}

	applyPortfolio(&rec, req)
	if !req.ShowReasoning {
		for i := range rec.AgentSignals {
			rec.AgentSignals[i].Reasoning = ""
		}
	}

	timer.End("action", rec.Action)
	logger.Recommendation(ctx, req.Ticker, rec.Action, rec.Quantity, rec.Confidence, "signals", len(rec.AgentSignals))
	return rec, nil
}

// BuildMessages renders the system prompt and the Schema/State user prompt.
func BuildMessages(req Request) ([]types.Message, error) {
	agentReasoning := ""
	if req.ShowReasoning {
		agentReasoning = `,"reasoning":"..."`
	}
	state := map[string]any{
		"ticker":      req.Ticker,
		"portfolio":   types.Portfolio{Cash: req.InitialCapital, Stock: req.Stock},
		"start_date":  req.StartDate,
		"end_date":    req.EndDate,
		"num_of_news": req.NumOfNews,
	}
	sb, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	user := fmt.Sprintf("Schema:%s\nState:%s\n\nRespond ONLY with compact JSON matching the schema.", fmt.Sprintf(schema, agentReasoning), sb)
	return []types.Message{types.System(systemPrompt), types.User(user)}, nil
}

func applyPortfolio(rec *types.Recommendation, req Request) {
	switch rec.Action {
	case types.ActionSell:
		if rec.Quantity > req.Stock {
			rec.Quantity = req.Stock
		}
	case types.ActionHold:
		rec.Quantity = 0
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return s
}
