package autopilot

import "dex-agent-bot/internal/signals"

// strategySizeScale tilts the conviction ladder: momentum strategies
// probe slightly larger relative to their max
var strategySizeScale = map[signals.Strategy]float64{
	signals.StrategyConservative: 1.0,
	signals.StrategyBalanced:     1.0,
	signals.StrategyAggressive:   1.1,
	signals.StrategyDegen:        1.2,
}

// convictionFraction is the base ladder: fraction of the agent's max
// position size per conviction band
func convictionFraction(conviction float64) float64 {
	switch {
	case conviction >= 90:
		return 0.50
	case conviction >= 80:
		return 0.35
	case conviction >= 75:
		return 0.30
	case conviction >= 65:
		return 0.225
	case conviction >= 55:
		return 0.15
	case conviction >= 45:
		return 0.10
	default:
		return 0.05
	}
}

// ConvictionSize derives the maximum defensible position size for a
// setup: the conviction band fraction of maxPositionSize, adjusted for
// regime, volatility and confirming combos
func ConvictionSize(conviction, maxPositionSize float64, strategy signals.Strategy, volatility float64, regime signals.MarketRegime, volumeBreakout bool, whale signals.WhaleActivity) float64 {
	size := convictionFraction(conviction) * maxPositionSize

	if scale, ok := strategySizeScale[strategy]; ok {
		size *= scale
	}

	switch regime {
	case signals.RegimeBull:
		size *= 1.1
	case signals.RegimeBear:
		size *= 0.8
	}

	switch {
	case volatility >= 85:
		size *= 0.7
	case volatility >= 70:
		size *= 0.85
	}

	// Confirming combo: breakout volume with whales accumulating
	if volumeBreakout && whale == signals.WhaleAccumulating {
		size *= 1.15
	}

	if size > maxPositionSize {
		size = maxPositionSize
	}
	return size
}
