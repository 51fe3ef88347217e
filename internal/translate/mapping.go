package translate

import (
	"sort"
	"strings"
)

var phraseMap = map[string]string{
	"bullish":                            "看涨",
	"bearish":                            "看跌",
	"neutral":                            "中性",
	"technical signal":                   "技术信号",
	"fundamental analysis":               "基本面分析",
	"sentiment":                          "情绪",
	"valuation analysis":                 "估值分析",
	"risk management":                    "风险管理",
	"buy":                                "买入",
	"sell":                               "卖出",
	"hold":                               "持有",
	"confidence":                         "置信度",
	"signal":                             "信号",
	"Despite a":                          "尽管",
	"making it difficult to assess":      "使得难以评估",
	"fair value":                         "公允价值",
	"recommends":                         "建议",
	"reducing position":                  "减少仓位",
	"since there is no current position": "由于当前没有仓位",
	"the appropriate action is to":       "合适的行动是",
	"due to conflicting signals":         "由于信号冲突",
	"Confidence is":                      "置信度",
	"moderate due to":                    "由于...而适中",
	"conflicting signals":                "信号冲突",
	"is invalid":                         "无效",
	"invalid":                            "无效",
	"technical analysis":                 "技术分析",
	"price momentum":                     "价格动量",
	"moving average":                     "移动平均线",
	"volatility":                         "波动性",
	"trend":                              "趋势",
	"support":                            "支撑位",
	"resistance":                         "阻力位",
	"earnings":                           "盈利",
	"revenue":                            "营收",
	"profit margin":                      "利润率",
	"debt ratio":                         "负债比率",
	"cash flow":                          "现金流",
	"growth rate":                        "增长率",
	"positive sentiment":                 "积极情绪",
	"negative sentiment":                 "消极情绪",
	"news analysis":                      "新闻分析",
	"market sentiment":                   "市场情绪",
	"high risk":                          "高风险",
	"low risk":                           "低风险",
	"risk tolerance":                     "风险承受能力",
	"portfolio":                          "投资组合",
	"diversification":                    "分散投资",
}

// phraseReplacer applies longer phrases first so "market sentiment" wins
// over "sentiment". Replaced text is never rescanned.
var phraseReplacer = func() *strings.Replacer {
	keys := make([]string, 0, len(phraseMap))
	for k := range phraseMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, phraseMap[k])
	}
	return strings.NewReplacer(pairs...)
}()

// SimpleMapping replaces known English phrases with Chinese equivalents.
func SimpleMapping(text string) string {
	return phraseReplacer.Replace(text)
}

var standardAgentNames = map[string]string{
	"Technical Analysis":   "技术分析",
	"Fundamental Analysis": "基本面分析",
	"Sentiment Analysis":   "情绪分析",
	"Valuation Analysis":   "估值分析",
	"Risk Management":      "风险管理",
	"Portfolio Management": "投资组合管理",
}

var agentKeywords = []struct{ keyword, name string }{
	{"technical", "技术分析"},
	{"fundamental", "基本面分析"},
	{"sentiment", "情绪分析"},
	{"valuation", "估值分析"},
	{"risk", "风险管理"},
	{"portfolio", "投资组合管理"},
	{"技术", "技术分析"},
	{"基本面", "基本面分析"},
	{"情绪", "情绪分析"},
	{"估值", "估值分析"},
	{"风险", "风险管理"},
}

// mapAgentName resolves name without the model. ok is false when only a
// model translation could help.
func mapAgentName(name string) (string, bool) {
	if n, ok := standardAgentNames[name]; ok {
		return n, true
	}
	if name == "" || name == "Unknown" {
		return "未知模块", true
	}
	lower := strings.ToLower(name)
	for _, k := range agentKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.name, true
		}
	}
	return "", false
}
