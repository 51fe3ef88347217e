package screener

import (
	"sort"
	"strings"

	"ai-invest/internal/types"
)

const (
	CategoryTechnical   = "technical"
	CategoryFundamental = "fundamental"
	CategorySentiment   = "sentiment"
	CategoryValuation   = "valuation"
)

// Categories lists the scored categories in display order.
var Categories = []string{CategoryTechnical, CategoryFundamental, CategorySentiment, CategoryValuation}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryTechnical, []string{"technical", "技术"}},
	{CategoryFundamental, []string{"fundamental", "基本面"}},
	{CategorySentiment, []string{"sentiment", "情绪"}},
	{CategoryValuation, []string{"valuation", "估值"}},
}

// Weights are the per-category contributions to the composite score.
type Weights struct {
	Technical   float64
	Fundamental float64
	Sentiment   float64
	Valuation   float64
}

func DefaultWeights() Weights {
	return Weights{Technical: 0.25, Fundamental: 0.30, Sentiment: 0.10, Valuation: 0.35}
}

func (w Weights) of(category string) float64 {
	switch category {
	case CategoryTechnical:
		return w.Technical
	case CategoryFundamental:
		return w.Fundamental
	case CategorySentiment:
		return w.Sentiment
	case CategoryValuation:
		return w.Valuation
	}
	return 0
}

// Category maps an agent name to its scoring category, or "".
func Category(agent string) string {
	a := strings.ToLower(agent)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(a, kw) {
				return ck.category
			}
		}
	}
	return ""
}

// Score returns the composite score of rec (0..100) and its signals keyed by
// category. Agents outside the four categories are ignored.
func Score(rec types.Recommendation, w Weights) (float64, map[string]types.AgentSignal) {
	signals := make(map[string]types.AgentSignal)
	score := 0.0
	for _, s := range rec.AgentSignals {
		cat := Category(s.Agent)
		if cat == "" {
			continue
		}
		signals[cat] = s
		score += s.Confidence * w.of(cat) * 100
	}
	return score, signals
}

func signalOf(signals map[string]types.AgentSignal, category string) string {
	return signals[category].Signal
}

// KeyReasons summarises the bullish categories.
func KeyReasons(signals map[string]types.AgentSignal) []string {
	var reasons []string
	if signalOf(signals, CategoryTechnical) == types.SignalBullish {
		reasons = append(reasons, "技术面显示积极信号，价格动量和趋势指标向好")
	}
	if signalOf(signals, CategoryFundamental) == types.SignalBullish {
		reasons = append(reasons, "基本面强劲，盈利能力和财务健康状况良好")
	}
	if signalOf(signals, CategoryValuation) == types.SignalBullish {
		reasons = append(reasons, "估值分析显示股票被低估，具有上涨潜力")
	}
	if signalOf(signals, CategorySentiment) == types.SignalBullish {
		reasons = append(reasons, "市场情绪积极，新闻和舆论支持")
	}
	if len(reasons) == 0 {
		return []string{"综合分析显示投资价值"}
	}
	return reasons
}

// RiskFactors summarises the bearish categories.
func RiskFactors(signals map[string]types.AgentSignal) []string {
	var risks []string
	if signalOf(signals, CategoryTechnical) == types.SignalBearish {
		risks = append(risks, "技术面存在风险信号")
	}
	if signalOf(signals, CategoryFundamental) == types.SignalBearish {
		risks = append(risks, "基本面指标显示潜在风险")
	}
	if signalOf(signals, CategoryValuation) == types.SignalBearish {
		risks = append(risks, "估值偏高，存在调整风险")
	}
	if len(risks) == 0 {
		return []string{"市场系统性风险"}
	}
	return risks
}

// Rank orders analyses by composite score after the valuation (+2) and
// fundamental (+1) boosts and keeps the best topN. The input is not modified.
func Rank(analyses []Analysis, topN int) []Analysis {
	ranked := make([]Analysis, len(analyses))
	copy(ranked, analyses)
	for i := range ranked {
		if signalOf(ranked[i].AgentSignals, CategoryValuation) == types.SignalBullish {
			ranked[i].CompositeScore += 2
		}
		if signalOf(ranked[i].AgentSignals, CategoryFundamental) == types.SignalBullish {
			ranked[i].CompositeScore += 1
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
