package autopilot

import (
	"fmt"
	"math"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/indicators"
	"dex-agent-bot/internal/signals"
)

// ExitAction is the position manager's verdict for one position in one
// cycle. SellFraction is the share of the current remaining size to
// sell; 1.0 means full close.
type ExitAction struct {
	SellFraction float64
	Reason       string
	TierAdvance  bool
}

var trailingATRFactor = map[signals.Strategy]float64{
	signals.StrategyConservative: 1.8,
	signals.StrategyBalanced:     2.2,
	signals.StrategyAggressive:   2.8,
	signals.StrategyDegen:        3.5,
}

var breakevenTriggerPct = map[signals.Strategy]float64{
	signals.StrategyConservative: 5,
	signals.StrategyBalanced:     8,
	signals.StrategyAggressive:   12,
	signals.StrategyDegen:        18,
}

var maxHoldHours = map[signals.Strategy]float64{
	signals.StrategyConservative: 48,
	signals.StrategyBalanced:     36,
	signals.StrategyAggressive:   18,
	signals.StrategyDegen:        10,
}

type profitTier struct {
	fraction float64 // of the dynamic take profit
	sellPct  float64 // of the current remaining size
}

var profitTiers = map[signals.Strategy][]profitTier{
	signals.StrategyConservative: {{0.30, 30}, {0.55, 25}, {0.80, 25}, {1.0, 20}},
	signals.StrategyBalanced:     {{0.25, 25}, {0.50, 25}, {0.75, 25}, {1.0, 25}},
	signals.StrategyAggressive:   {{0.20, 20}, {0.45, 25}, {0.70, 25}, {1.0, 30}},
	signals.StrategyDegen:        {{0.15, 15}, {0.35, 20}, {0.60, 25}, {1.0, 40}},
}

// EvaluateExit runs the exit policy pipeline for one open position
// against its current token signal. Policies are ordered by priority;
// the first that fires wins. A nil return means hold.
//
// The caller must have already folded the live price into
// pos.CurrentPrice and pos.HighestPrice.
func EvaluateExit(pos *database.AgentPosition, t *signals.TokenSignal, strategy signals.Strategy) *ExitAction {
	if pos.Size <= 0 || pos.AvgEntryPrice <= 0 {
		return nil
	}

	pnl := pos.PnlPercent()

	// 1. Stop loss
	if pnl <= -stopLossPct(pos, t) {
		return &ExitAction{SellFraction: 1.0, Reason: "Stop loss triggered"}
	}

	// 2. Trailing stop
	if stop := trailingStopPrice(pos, t, strategy, pnl); stop > 0 && pos.CurrentPrice <= stop {
		return &ExitAction{SellFraction: 1.0, Reason: "Trailing stop triggered"}
	}

	// 3. Breakeven after giving back most of the peak
	if act := breakevenExit(pos, strategy, pnl); act != nil {
		return act
	}

	// 4. Momentum reversal
	if t != nil {
		score := ReversalScore(t)
		if score >= 60 && pnl > -3 {
			frac := 0.7
			if score >= 80 {
				frac = 1.0
			}
			return &ExitAction{SellFraction: frac, Reason: fmt.Sprintf("Momentum reversal (score %d)", score)}
		}
	}

	// 5. Time decay: the longer the hold, the less patience for flat pnl
	if act := timeDecayExit(pos, strategy, pnl); act != nil {
		return act
	}

	// 6. Token-signal rules, first match wins
	if t != nil {
		if act := signalRuleExit(pos, t, strategy, pnl); act != nil {
			return act
		}
	}

	// 7. Stale position cleanup
	held := pos.HoldHours()
	switch {
	case held > 72 && math.Abs(pnl) < 5:
		return &ExitAction{SellFraction: 1.0, Reason: "Stale position"}
	case held > 24 && math.Abs(pnl) < 2:
		return &ExitAction{SellFraction: 0.5, Reason: "Stale position trim"}
	}

	return nil
}

// Last-resort stop distances, used when a position carries neither a
// live signal nor persisted stop prices. Overridden from config through
// Options at runner construction.
var (
	fallbackStopLossPct   = 12.0
	fallbackTakeProfitPct = 30.0
)

// stopLossPct prefers the live signal's stop distance and falls back to
// the stop price persisted at entry
func stopLossPct(pos *database.AgentPosition, t *signals.TokenSignal) float64 {
	if t != nil && t.DynamicStopLoss > 0 {
		return t.DynamicStopLoss
	}
	if pos.StopLossPrice > 0 && pos.AvgEntryPrice > 0 {
		return (pos.AvgEntryPrice - pos.StopLossPrice) / pos.AvgEntryPrice * 100
	}
	return fallbackStopLossPct
}

// takeProfitPct prefers the live signal's target and falls back to the
// take-profit price persisted at entry
func takeProfitPct(pos *database.AgentPosition, t *signals.TokenSignal) float64 {
	if t != nil && t.DynamicTakeProfit > 0 {
		return t.DynamicTakeProfit
	}
	if pos.TakeProfitPrice > 0 && pos.AvgEntryPrice > 0 {
		return (pos.TakeProfitPrice - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
	}
	return fallbackTakeProfitPct
}

func trailingStopPrice(pos *database.AgentPosition, t *signals.TokenSignal, strategy signals.Strategy, pnl float64) float64 {
	entry := pos.AvgEntryPrice
	highest := pos.HighestPrice

	var stop float64

	// ATR-based trailing, only once the trade is working
	if t != nil && t.Technical != nil && t.Technical.ATRPercent > 0 && pnl >= 3 && highest > entry {
		k := trailingATRFactor[strategy]
		if t.MarketRegime == signals.RegimeBear {
			k *= 0.8
		}
		switch {
		case pnl > 30:
			k *= 0.7
		case pnl > 15:
			k *= 0.85
		}
		distance := highest * t.Technical.ATRPercent / 100 * k
		stop = highest - distance
	}

	// Legacy percent trailing once the position printed 5%+
	if highest >= entry*1.05 {
		factor := 0.7
		if pos.CurrentPrice > entry*1.15 {
			factor = 0.5
		}
		distance := entry * stopLossPct(pos, t) / 100 * factor
		if legacy := highest - distance; legacy > stop {
			stop = legacy
		}
	}

	return stop
}

func breakevenExit(pos *database.AgentPosition, strategy signals.Strategy, pnl float64) *ExitAction {
	trigger := breakevenTriggerPct[strategy]
	if pos.AvgEntryPrice <= 0 || pos.HighestPrice <= 0 {
		return nil
	}

	peakPnl := (pos.HighestPrice - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
	if peakPnl < trigger {
		return nil
	}

	// Gave back at least 60% of the peak gain and hovering near flat
	if pnl <= peakPnl*0.4 && pnl <= 1 {
		return &ExitAction{SellFraction: 1.0, Reason: "Breakeven stop after giving back gains"}
	}
	return nil
}

func timeDecayExit(pos *database.AgentPosition, strategy signals.Strategy, pnl float64) *ExitAction {
	maxHold := maxHoldHours[strategy]
	held := pos.HoldHours()
	if held < maxHold/2 {
		return nil
	}

	progress := held / maxHold
	if progress > 1 {
		progress = 1
	}
	threshold := 3 - 6*progress
	if pnl < threshold {
		return &ExitAction{SellFraction: 1.0, Reason: fmt.Sprintf("Time decay (%.1fh held)", held)}
	}
	return nil
}

func signalRuleExit(pos *database.AgentPosition, t *signals.TokenSignal, strategy signals.Strategy, pnl float64) *ExitAction {
	full := func(reason string) *ExitAction { return &ExitAction{SellFraction: 1.0, Reason: reason} }
	partial := func(frac float64, reason string) *ExitAction {
		return &ExitAction{SellFraction: frac, Reason: reason}
	}

	tech := t.Technical

	switch {
	case t.HasSignal(signals.TagFlashCrash):
		return full("Flash crash")
	case t.WhaleActivity == signals.WhaleDistributing && pnl > -3:
		return full("Whale distribution")
	case t.RugRiskScore >= 65 && pnl > -5:
		return full("Rug risk spike")
	case t.BuyPressureScore <= 25 && pnl > -3:
		return full("Buy pressure collapse")
	}

	// Tiered profit-taking against the dynamic take profit
	if act := tierExit(pos, t, strategy, pnl); act != nil {
		return act
	}

	switch {
	case pnl >= takeProfitPct(pos, t):
		return full("Take profit reached")
	case t.MomentumScore <= 25 && pnl > 0:
		return full("Momentum gone")
	case t.BuyPressureScore <= 35 && pnl > -3:
		return partial(0.8, "Weak buy pressure")
	case t.MomentumAcceleration < -3 && t.MomentumScore < 40:
		return full("Momentum decelerating hard")
	case t.ShortTermMomentum < 20 && pnl > 3:
		return partial(0.6, "Short-term momentum lost")
	case t.HasSignal(signals.TagHeavySellPressure) && pnl < 5:
		return full("Heavy sell pressure")
	}

	if tech != nil && tech.BarCount >= 10 {
		switch {
		case tech.EMACrossover == indicators.CrossoverDeath && pnl > -3:
			return full("Death cross")
		case tech.RSI14 > 85 && pnl > 10:
			return partial(0.7, "RSI extreme")
		case tech.RSIDivergence == indicators.DivergenceBearish && pnl > 5:
			return partial(0.6, "Bearish divergence")
		case tech.EMATrendAlignment == indicators.AlignmentBearish && pnl > 0:
			return full("Bearish EMA alignment")
		case tech.MACDHistogram < 0 && tech.MACDLine < tech.MACDSignal && pnl > 3:
			return partial(0.8, "MACD rolled over")
		case tech.IsOverextended && pnl > 15:
			return partial(0.5, "Overextended")
		}
	}

	return nil
}

// tierExit executes the next scheduled profit tier when pnl has reached
// its fraction of the take profit. The final tier and any tier sell that
// would strand under 5% of the position both become full closes.
func tierExit(pos *database.AgentPosition, t *signals.TokenSignal, strategy signals.Strategy, pnl float64) *ExitAction {
	tiers := profitTiers[strategy]
	if pos.TierCounter >= len(tiers) {
		return nil
	}

	tier := tiers[pos.TierCounter]
	target := tier.fraction * takeProfitPct(pos, t)
	if target <= 0 || pnl < target {
		return nil
	}

	reason := fmt.Sprintf("Profit tier %d (%.0f%% of target)", pos.TierCounter+1, tier.fraction*100)

	if tier.fraction >= 1.0 {
		return &ExitAction{SellFraction: 1.0, Reason: reason, TierAdvance: true}
	}

	frac := tier.sellPct / 100
	if 1-frac < 0.05 {
		return &ExitAction{SellFraction: 1.0, Reason: reason, TierAdvance: true}
	}
	return &ExitAction{SellFraction: frac, Reason: reason, TierAdvance: true}
}

// ReversalScore sums the bearish-reversal evidence on a token, 0-100+
func ReversalScore(t *signals.TokenSignal) int {
	score := 0

	if tech := t.Technical; tech != nil && tech.BarCount >= 10 {
		if tech.RSIDivergence == indicators.DivergenceBearish {
			score += 30
		}
		if tech.EMACrossover == indicators.CrossoverDeath {
			score += 35
		}
		if tech.MACDHistogram < 0 && tech.MACDLine < tech.MACDSignal {
			score += 20
		}
		if tech.EMATrendAlignment == indicators.AlignmentBearish {
			score += 20
		}
	}

	if t.MomentumAcceleration < -2 {
		score += 15
	}
	if t.ShortTermMomentum < 30 {
		score += 15
	}
	if t.WhaleActivity == signals.WhaleDistributing {
		score += 25
	}
	if t.BuyPressureScore < 40 {
		score += 10
	}

	return score
}
