package chat

import "github.com/ashwinyue/vault-ai/internal/service/llm"

// Pricing 每百万 token 的美元单价
type Pricing struct {
	Input  float64
	Output float64
}

// pricingTable 静态价格表
// 未知模型的成本记为 0，不做估算
var pricingTable = map[string]Pricing{
	"claude-3-5-haiku-latest":  {Input: 0.80, Output: 4.00},
	"claude-3-5-haiku-20241022": {Input: 0.80, Output: 4.00},
	"claude-sonnet-4-20250514": {Input: 3.00, Output: 15.00},
	"claude-opus-4-20250514":   {Input: 15.00, Output: 75.00},
}

// CalculateCost 按模型单价计算一次调用的美元成本
func CalculateCost(model string, usage llm.Usage) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		return 0
	}
	return float64(usage.InputTokens)/1e6*pricing.Input + float64(usage.OutputTokens)/1e6*pricing.Output
}
