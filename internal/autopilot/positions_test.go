package autopilot

import (
	"testing"
	"time"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/indicators"
	"dex-agent-bot/internal/signals"
)

func openPosition(entry, current, highest float64) *database.AgentPosition {
	return &database.AgentPosition{
		ID:            "pos-1",
		Size:          1.0,
		AvgEntryPrice: entry,
		CurrentPrice:  current,
		HighestPrice:  highest,
		OpenedAt:      time.Now().Add(-time.Hour),
	}
}

func neutralSignal() *signals.TokenSignal {
	return &signals.TokenSignal{
		MomentumScore:     60,
		BuyPressureScore:  60,
		ShortTermMomentum: 60,
		DynamicStopLoss:   12,
		DynamicTakeProfit: 30,
		WhaleActivity:     signals.WhaleNeutral,
		MarketRegime:      signals.RegimeNeutral,
	}
}

// TestStopLossExit checks the stop loss is the highest priority full close
func TestStopLossExit(t *testing.T) {
	pos := openPosition(100, 85, 100) // -15% against a 12% stop
	act := EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Stop loss triggered" {
		t.Fatalf("Expected stop loss full close, got %+v", act)
	}
}

// TestStopLossFallsBackToPersistedPrice checks exits work without a live signal
func TestStopLossFallsBackToPersistedPrice(t *testing.T) {
	pos := openPosition(100, 89, 100)
	pos.StopLossPrice = 90 // persisted 10% stop
	act := EvaluateExit(pos, nil, signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 {
		t.Fatalf("Expected persisted stop to trigger, got %+v", act)
	}
}

// TestTrailingStopAfterRunUp checks the percent trail locks in gains
func TestTrailingStopAfterRunUp(t *testing.T) {
	// Ran to 140, pulled back to 131. Trail: factor 0.5 above 1.15x entry,
	// distance 100*0.12*0.5 = 6, stop = 134.
	pos := openPosition(100, 131, 140)
	act := EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Trailing stop triggered" {
		t.Fatalf("Expected trailing stop, got %+v", act)
	}

	// Modest run, price above the trail: hold
	holding := openPosition(100, 106, 110)
	if act := EvaluateExit(holding, neutralSignal(), signals.StrategyBalanced); act != nil {
		t.Fatalf("Price above the trail should hold, got %+v", act)
	}
}

// TestATRTrailingTightensWhenDeepInProfit checks the ATR factor scaling
func TestATRTrailingTightensWhenDeepInProfit(t *testing.T) {
	// +35% with 2% ATR: k = 2.2*0.7 = 1.54, distance = 140*0.02*1.54 = 4.31,
	// ATR stop ~135.7 beats the legacy trail of 134.
	pos := openPosition(100, 135, 140)
	sig := neutralSignal()
	sig.Technical = &indicators.TechnicalIndicators{ATRPercent: 2, BarCount: 30}

	act := EvaluateExit(pos, sig, signals.StrategyBalanced)
	if act == nil || act.Reason != "Trailing stop triggered" {
		t.Fatalf("Expected ATR trail to trigger, got %+v", act)
	}
}

// TestBreakevenAfterGivingBackGains checks the round-trip protection
func TestBreakevenAfterGivingBackGains(t *testing.T) {
	// Peaked at +8%, now back to +0.5%: gave back more than 60%
	pos := openPosition(100, 100.5, 108)
	act := EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Breakeven stop after giving back gains" {
		t.Fatalf("Expected breakeven stop, got %+v", act)
	}

	// Peak below the 8% balanced trigger: no breakeven
	small := openPosition(100, 100.5, 105)
	if act := EvaluateExit(small, neutralSignal(), signals.StrategyBalanced); act != nil {
		t.Fatalf("Peak below trigger should hold, got %+v", act)
	}
}

// TestReversalScoreExit checks the scored reversal close
func TestReversalScoreExit(t *testing.T) {
	pos := openPosition(100, 102, 103)
	sig := neutralSignal()
	sig.Technical = &indicators.TechnicalIndicators{
		BarCount:      30,
		EMACrossover:  indicators.CrossoverDeath, // +35
		MACDHistogram: -1,
		MACDLine:      -1,
		MACDSignal:    0, // +20
	}
	sig.MomentumAcceleration = -3 // +15

	score := ReversalScore(sig)
	if score < 60 {
		t.Fatalf("Reversal score = %d, want >= 60", score)
	}

	act := EvaluateExit(pos, sig, signals.StrategyBalanced)
	if act == nil || act.SellFraction != 0.7 {
		t.Fatalf("Reversal 60-79 should sell 70%%, got %+v", act)
	}
}

// TestTimeDecayExit checks stale flat positions get closed near max hold
func TestTimeDecayExit(t *testing.T) {
	pos := openPosition(100, 96, 101)
	pos.OpenedAt = time.Now().Add(-35 * time.Hour) // balanced max hold 36h

	act := EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 {
		t.Fatalf("Expected time decay close, got %+v", act)
	}

	// Early in the hold the same pnl is fine
	young := openPosition(100, 96, 101)
	if act := EvaluateExit(young, neutralSignal(), signals.StrategyBalanced); act != nil {
		t.Fatalf("One-hour-old position should hold, got %+v", act)
	}
}

// TestProfitTierLadder walks the balanced tiers
func TestProfitTierLadder(t *testing.T) {
	// Balanced TP 30%: first tier fires at 25% of it, i.e. +7.5%
	pos := openPosition(100, 108, 108)
	act := EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act == nil || !act.TierAdvance || act.SellFraction != 0.25 {
		t.Fatalf("Expected first tier 25%% sell, got %+v", act)
	}

	// With three tiers done, the final tier is a full close
	pos.TierCounter = 3
	pos.CurrentPrice = 131
	act = EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || !act.TierAdvance {
		t.Fatalf("Final tier should close fully, got %+v", act)
	}

	// Exhausted ladder never re-fires
	pos.TierCounter = 4
	pos.CurrentPrice = 108
	act = EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced)
	if act != nil && act.TierAdvance {
		t.Fatalf("Exhausted ladder should not fire tiers, got %+v", act)
	}
}

// TestSignalRuleFlashCrash checks crash signals close regardless of pnl
func TestSignalRuleFlashCrash(t *testing.T) {
	pos := openPosition(100, 98, 101)
	sig := neutralSignal()
	sig.Signals = []signals.Tag{signals.TagFlashCrash}

	act := EvaluateExit(pos, sig, signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Flash crash" {
		t.Fatalf("Expected flash crash close, got %+v", act)
	}
}

// TestSignalRuleDeathCross checks the technical exit needs bar history
func TestSignalRuleDeathCross(t *testing.T) {
	pos := openPosition(100, 102, 103)
	sig := neutralSignal()
	sig.Technical = &indicators.TechnicalIndicators{
		BarCount:     30,
		EMACrossover: indicators.CrossoverDeath,
	}

	act := EvaluateExit(pos, sig, signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Death cross" {
		t.Fatalf("Expected death cross close, got %+v", act)
	}

	// Thin history suppresses technical exits
	sig.Technical.BarCount = 5
	if act := EvaluateExit(pos, sig, signals.StrategyBalanced); act != nil {
		t.Fatalf("Thin history should suppress technical exits, got %+v", act)
	}
}

// TestStalePositionCleanup checks the 72h and 24h rules
func TestStalePositionCleanup(t *testing.T) {
	old := openPosition(100, 102, 103)
	old.OpenedAt = time.Now().Add(-80 * time.Hour)
	act := EvaluateExit(old, nil, signals.StrategyConservative)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Stale position" {
		t.Fatalf("72h flat position should close, got %+v", act)
	}

	drifting := openPosition(100, 101, 101.5)
	drifting.OpenedAt = time.Now().Add(-30 * time.Hour)
	act = EvaluateExit(drifting, nil, signals.StrategyConservative)
	if act == nil || act.SellFraction != 0.5 {
		t.Fatalf("24h drifting position should trim half, got %+v", act)
	}
}

// TestExitFallbackStopConfigurable checks the configured fallback stop
// distance drives exits when neither a live signal nor persisted stop
// prices are available
func TestExitFallbackStopConfigurable(t *testing.T) {
	fallbackStopLossPct = 20
	defer func() { fallbackStopLossPct = 12 }()

	holding := openPosition(100, 85, 100) // -15% inside the 20% stop
	if act := EvaluateExit(holding, nil, signals.StrategyBalanced); act != nil {
		t.Fatalf("-15%% should hold inside a 20%% stop, got %+v", act)
	}

	stopped := openPosition(100, 79, 100)
	act := EvaluateExit(stopped, nil, signals.StrategyBalanced)
	if act == nil || act.SellFraction != 1.0 || act.Reason != "Stop loss triggered" {
		t.Fatalf("-21%% should close on the 20%% stop, got %+v", act)
	}
}

// TestEvaluateExitIgnoresEmptyPositions checks the guard
func TestEvaluateExitIgnoresEmptyPositions(t *testing.T) {
	pos := openPosition(0, 0, 0)
	if act := EvaluateExit(pos, neutralSignal(), signals.StrategyBalanced); act != nil {
		t.Fatalf("Zero-entry position should be ignored, got %+v", act)
	}
}
