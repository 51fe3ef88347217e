package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-invest/internal/screener"
	"ai-invest/internal/store"
	"ai-invest/internal/types"
)

func TestScreenerConfig(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	sc := store.ScreenerConfig{
		Concurrency:    3,
		DelaySeconds:   1.5,
		TopN:           10,
		InitialCapital: 50000,
		NumOfNews:      8,
		LookbackDays:   90,
		Weights:        store.ScoreWeights{Technical: 0.25, Fundamental: 0.30, Sentiment: 0.10, Valuation: 0.35},
	}

	cfg := screenerConfig(sc, options{top: 3, concurrency: 5}, now)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delay)
	assert.Equal(t, screener.DefaultWeights(), cfg.Weights)
	assert.Equal(t, "2024-03-14", cfg.Template.EndDate)
	assert.Equal(t, "2023-12-15", cfg.Template.StartDate)
	assert.InDelta(t, 50000, cfg.Template.InitialCapital, 1e-9)
	assert.Equal(t, 8, cfg.Template.NumOfNews)

	cfg = screenerConfig(sc, options{}, now)
	assert.Equal(t, 10, cfg.TopN)
	assert.Equal(t, 3, cfg.Concurrency)
}

func TestPrintText(t *testing.T) {
	var buf bytes.Buffer
	printText(&buf, []screener.Analysis{{
		Symbol:         "AAPL",
		Name:           "Stock_AAPL",
		CompositeScore: 72.5,
		AgentSignals: map[string]types.AgentSignal{
			screener.CategoryValuation: {Agent: "Valuation", Signal: types.SignalBullish, Confidence: 0.8},
		},
		KeyReasons:     []string{"估值分析显示看涨"},
		Recommendation: types.Recommendation{Action: types.ActionBuy},
	}})

	out := buf.String()
	assert.Contains(t, out, "#1 AAPL - Stock_AAPL")
	assert.Contains(t, out, "72.5/100")
	assert.Contains(t, out, "[+] valuation: bullish (80%)")
	assert.Contains(t, out, "* 估值分析显示看涨")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"json": "json", "TEXT": "text", " Json ": "json"} {
		got, err := parseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := parseFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "yaml"`)
}

func TestRootCmdRejectsUnknownFormat(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--format", "csv", "AAPL"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
	assert.Empty(t, out.String())
}
