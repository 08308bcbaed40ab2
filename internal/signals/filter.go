package signals

// buyFilter is the per-strategy hard gate for the pre-filtered buy
// shortlist handed to the decision oracle
type buyFilter struct {
	minConviction float64
	minOverall    float64
	maxRugRisk    float64
	minSafety     float64 // 0 disables the check
	minLiquidity  float64
	cap           int
}

var buyFilters = map[Strategy]buyFilter{
	StrategyConservative: {minConviction: 60, minOverall: 65, maxRugRisk: 30, minSafety: 60, minLiquidity: 50, cap: 3},
	StrategyBalanced:     {minConviction: 50, minOverall: 55, maxRugRisk: 45, minSafety: 45, minLiquidity: 35, cap: 5},
	StrategyAggressive:   {minConviction: 40, minOverall: 50, maxRugRisk: 60, minSafety: 30, minLiquidity: 25, cap: 8},
	StrategyDegen:        {minConviction: 30, minOverall: 45, maxRugRisk: 75, minSafety: 0, minLiquidity: 15, cap: 10},
}

// TopBuySignals returns the strategy-gated shortlist of buy candidates.
// Input must already be sorted by overall score descending; ordering is
// preserved. Crash and whale-distribution conditions are excluded for
// every strategy.
func TopBuySignals(signals []*TokenSignal, strategy Strategy) []*TokenSignal {
	f, ok := buyFilters[strategy]
	if !ok {
		f = buyFilters[StrategyBalanced]
	}

	out := make([]*TokenSignal, 0, f.cap)
	for _, t := range signals {
		if len(out) >= f.cap {
			break
		}
		if t.Conviction < f.minConviction || t.OverallSignalScore < f.minOverall {
			continue
		}
		if t.RugRiskScore > f.maxRugRisk {
			continue
		}
		if f.minSafety > 0 && t.SafetyScore < f.minSafety {
			continue
		}
		if t.LiquidityScore < f.minLiquidity {
			continue
		}
		if t.HasSignal(TagFlashCrash) || t.WhaleActivity == WhaleDistributing {
			continue
		}
		out = append(out, t)
	}
	return out
}
