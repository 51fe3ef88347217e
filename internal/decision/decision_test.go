package decision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-invest/internal/types"
)

func TestParseDirectJSON(t *testing.T) {
	r, err := Parse(`{"action":"buy","quantity":100,"confidence":0.75,
		"agent_signals":[{"agent":"Technical Analysis","signal":"bullish","confidence":0.8}],
		"reasoning":"Strong trend"}`)
	require.NoError(t, err)
	assert.Equal(t, types.ActionBuy, r.Action)
	assert.Equal(t, 100, r.Quantity)
	assert.InDelta(t, 0.75, r.Confidence, 1e-9)
	require.Len(t, r.AgentSignals, 1)
	assert.Equal(t, "Technical Analysis", r.AgentSignals[0].Agent)
	assert.Equal(t, types.SignalBullish, r.AgentSignals[0].Signal)
	assert.Equal(t, "Strong trend", r.Reasoning)
}

func TestParseFencedAndProse(t *testing.T) {
	fenced := "```json\n{\"action\":\"SELL\",\"quantity\":\"20\",\"confidence\":\"62%\"}\n```"
	r, err := Parse(fenced)
	require.NoError(t, err)
	assert.Equal(t, types.ActionSell, r.Action)
	assert.Equal(t, 20, r.Quantity)
	assert.InDelta(t, 0.62, r.Confidence, 1e-9)
	assert.NotNil(t, r.AgentSignals)

	prose := `Here is my analysis. {"action":"Hold","confidence":80} Let me know if you need more.`
	r, err = Parse(prose)
	require.NoError(t, err)
	assert.Equal(t, types.ActionHold, r.Action)
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)
}

func TestParseUnparseable(t *testing.T) {
	for _, in := range []string{"", "I cannot help with that.", "{not json}", "} reversed {"} {
		_, err := Parse(in)
		assert.True(t, errors.Is(err, ErrUnparseable), in)
	}
}

func TestParseStructuredReasoning(t *testing.T) {
	r, err := Parse(`{"action":"buy","reasoning":{"trend":"up"},"agent_signals":[{"name":"Valuation Analysis","signal":"Positive","confidence":"0.9","reasoning":"cheap"}]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"trend":"up"}`, r.Reasoning)
	require.Len(t, r.AgentSignals, 1)
	assert.Equal(t, "Valuation Analysis", r.AgentSignals[0].Agent)
	assert.Equal(t, types.SignalBullish, r.AgentSignals[0].Signal)
	assert.Equal(t, "cheap", r.AgentSignals[0].Reasoning)
}

func TestParseQuantityBounds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"huge", `{"action":"buy","quantity":1e20}`, maxQuantity},
		{"huge string", `{"action":"buy","quantity":"1e20"}`, maxQuantity},
		{"negative huge", `{"action":"buy","quantity":-1e20}`, 0},
		{"not a number", `{"action":"buy","quantity":"NaN"}`, 0},
		{"fraction", `{"action":"buy","quantity":12.6}`, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Quantity)
		})
	}
}

func TestNormalize(t *testing.T) {
	r := types.Recommendation{
		Action:     "short",
		Quantity:   -5,
		Confidence: 250,
		AgentSignals: []types.AgentSignal{
			{Agent: " Sentiment Analysis ", Signal: "mixed", Confidence: -1},
		},
	}
	Normalize(&r)
	assert.Equal(t, types.ActionHold, r.Action)
	assert.Zero(t, r.Quantity)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, "Sentiment Analysis", r.AgentSignals[0].Agent)
	assert.Equal(t, types.SignalNeutral, r.AgentSignals[0].Signal)
	assert.Zero(t, r.AgentSignals[0].Confidence)
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{75, 0.75},
		{100, 1},
		{-0.2, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeConfidence(tt.in), 1e-9, "%v", tt.in)
	}
}

func TestHold(t *testing.T) {
	r := Hold("unable_to_parse_model_output")
	assert.Equal(t, types.ActionHold, r.Action)
	assert.Equal(t, "unable_to_parse_model_output", r.Reasoning)
	assert.Empty(t, r.AgentSignals)
	assert.NotNil(t, r.AgentSignals)
}
