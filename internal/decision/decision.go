package decision

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"ai-invest/internal/types"
)

// ErrUnparseable is returned when no JSON object can be recovered from text.
var ErrUnparseable = errors.New("no recommendation JSON found in model output")

// number accepts 0.75, "0.75", "75%", 75 and null.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		pct := strings.HasSuffix(str, "%")
		str = strings.TrimSuffix(str, "%")
		if str == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil
		}
		if pct {
			f /= 100
		}
		*n = number(f)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type rawSignal struct {
	Agent      string `json:"agent"`
	Name       string `json:"name"`
	Signal     string `json:"signal"`
	Confidence number `json:"confidence"`
	Reasoning  any    `json:"reasoning"`
}

type rawRecommendation struct {
	Action       string      `json:"action"`
	Quantity     number      `json:"quantity"`
	Confidence   number      `json:"confidence"`
	AgentSignals []rawSignal `json:"agent_signals"`
	Reasoning    any         `json:"reasoning"`
	Reason       string      `json:"reason"`
}

// Parse recovers a Recommendation from model output. It tolerates code
// fences and prose around the JSON object.
func Parse(text string) (types.Recommendation, error) {
	t := stripFences(strings.TrimSpace(text))

	if strings.HasPrefix(t, "{") {
		if r, err := decode(t); err == nil {
			return r, nil
		}
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		if r, err := decode(t[start : end+1]); err == nil {
			return r, nil
		}
	}
	return types.Recommendation{}, ErrUnparseable
}

// Hold is the degraded recommendation used when output cannot be parsed.
func Hold(reason string) types.Recommendation {
	return types.Recommendation{
		Action:       types.ActionHold,
		AgentSignals: []types.AgentSignal{},
		Reasoning:    reason,
	}
}

func decode(s string) (types.Recommendation, error) {
	var raw rawRecommendation
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return types.Recommendation{}, err
	}
	r := types.Recommendation{
		Action:       raw.Action,
		Quantity:     quantity(float64(raw.Quantity)),
		Confidence:   float64(raw.Confidence),
		Reasoning:    text(raw.Reasoning),
		AgentSignals: make([]types.AgentSignal, 0, len(raw.AgentSignals)),
	}
	if r.Reasoning == "" {
		r.Reasoning = raw.Reason
	}
	for _, rs := range raw.AgentSignals {
		agent := rs.Agent
		if agent == "" {
			agent = rs.Name
		}
		r.AgentSignals = append(r.AgentSignals, types.AgentSignal{
			Agent:      agent,
			Signal:     rs.Signal,
			Confidence: float64(rs.Confidence),
			Reasoning:  text(rs.Reasoning),
		})
	}
	Normalize(&r)
	return r, nil
}

// maxQuantity bounds share counts so the int conversion stays defined.
const maxQuantity = math.MaxInt32

func quantity(f float64) int {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= maxQuantity:
		return maxQuantity
	}
	return int(math.Round(f))
}

// text flattens a reasoning field that may be a string or a JSON object.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func stripFences(t string) string {
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		// drop the language tag line
		t = t[nl+1:]
	}
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// Normalize coerces r into the output contract in place.
func Normalize(r *types.Recommendation) {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	switch r.Action {
	case types.ActionBuy, types.ActionSell, types.ActionHold:
	default:
		r.Action = types.ActionHold
	}
	if r.Quantity < 0 {
		r.Quantity = 0
	}
	r.Confidence = NormalizeConfidence(r.Confidence)
	if r.AgentSignals == nil {
		r.AgentSignals = []types.AgentSignal{}
	}
	for i := range r.AgentSignals {
		s := &r.AgentSignals[i]
		s.Agent = strings.TrimSpace(s.Agent)
		s.Signal = NormalizeSignal(s.Signal)
		s.Confidence = NormalizeConfidence(s.Confidence)
	}
}

// NormalizeConfidence maps values above 1 as percentages and clamps to [0,1].
func NormalizeConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		c /= 100
	}
	if c > 1 {
		return 1
	}
	return c
}

func NormalizeSignal(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bullish", "buy", "positive":
		return types.SignalBullish
	case "bearish", "sell", "negative":
		return types.SignalBearish
	default:
		return types.SignalNeutral
	}
}
