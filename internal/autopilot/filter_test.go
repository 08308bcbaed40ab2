package autopilot

import (
	"context"
	"testing"
	"time"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"
)

type nilPersistence struct{}

func (nilPersistence) AllSignalPerformance(ctx context.Context) ([]database.SignalPerformance, error) {
	return nil, nil
}

func (nilPersistence) UpsertSignalPerformance(ctx context.Context, signal, strategy string, won bool, pnlPct float64) error {
	return nil
}

func newTestGate() *Gate {
	learn := learning.NewStore(nilPersistence{}, logging.New(&logging.Config{Level: "ERROR"}))
	return NewGate(learn, nil)
}

func gateTarget() *signals.TokenSignal {
	return &signals.TokenSignal{
		Chain:              "solana",
		TokenAddress:       "tok1",
		Symbol:             "TOK",
		Conviction:         70,
		OverallSignalScore: 75,
		MomentumScore:      65,
		BuyPressureScore:   60,
		ShortTermMomentum:  60,
		RugRiskScore:       20,
		WhaleActivity:      signals.WhaleNeutral,
	}
}

func gateInput(target *signals.TokenSignal, positions []database.AgentPosition) *GateInput {
	return &GateInput{
		Agent:      &database.AgentConfig{ID: "agent-1", MaxPositionSize: 10},
		Strategy:   signals.StrategyBalanced,
		Target:     target,
		Amount:     2.0,
		Positions:  positions,
		Thresholds: baseThresholds[signals.StrategyBalanced],
	}
}

// TestGateCleanPass checks a healthy setup flows through untouched
func TestGateCleanPass(t *testing.T) {
	g := newTestGate()
	result := g.Apply(gateInput(gateTarget(), nil), nil)
	if result.Blocked {
		t.Fatalf("Clean setup should pass, blocked by %s", result.Reason)
	}
	if result.Amount != 2.0 {
		t.Errorf("Amount = %v, want unchanged 2.0", result.Amount)
	}
}

// TestGateAdaptiveThresholds checks the first stage blocks weak setups
func TestGateAdaptiveThresholds(t *testing.T) {
	g := newTestGate()
	weak := gateTarget()
	weak.Conviction = 30

	result := g.Apply(gateInput(weak, nil), nil)
	if !result.Blocked || result.Reason != "adaptive_thresholds" {
		t.Fatalf("Weak conviction should block on adaptive_thresholds, got %+v", result)
	}
}

// TestGateRugRiskCap checks the per-strategy rug cap
func TestGateRugRiskCap(t *testing.T) {
	g := newTestGate()
	risky := gateTarget()
	risky.RugRiskScore = 65 // balanced cap is 60

	result := g.Apply(gateInput(risky, nil), nil)
	if !result.Blocked || result.Reason != "rug_risk" {
		t.Fatalf("Rug risk over cap should block, got %+v", result)
	}
}

// TestGateCrashSignal checks crash tags block buys
func TestGateCrashSignal(t *testing.T) {
	g := newTestGate()
	crashing := gateTarget()
	crashing.Signals = []signals.Tag{signals.TagFlashCrash}

	result := g.Apply(gateInput(crashing, nil), nil)
	if !result.Blocked || result.Reason != "crash_signal" {
		t.Fatalf("Flash crash should block, got %+v", result)
	}
}

// TestGateWhaleDistribution checks distribution blocks buys
func TestGateWhaleDistribution(t *testing.T) {
	g := newTestGate()
	dist := gateTarget()
	dist.WhaleActivity = signals.WhaleDistributing

	result := g.Apply(gateInput(dist, nil), nil)
	if !result.Blocked || result.Reason != "whale_distribution" {
		t.Fatalf("Whale distribution should block, got %+v", result)
	}
}

// TestGateMaxPositions checks the per-strategy book cap
func TestGateMaxPositions(t *testing.T) {
	g := newTestGate()
	positions := make([]database.AgentPosition, 5) // balanced cap 5
	for i := range positions {
		positions[i] = database.AgentPosition{Chain: "base", TokenAddress: "other", Size: 1}
	}

	result := g.Apply(gateInput(gateTarget(), positions), nil)
	if !result.Blocked || result.Reason != "max_positions" {
		t.Fatalf("Full book should block, got %+v", result)
	}

	// Scaling into an already-held token bypasses the cap
	positions[0] = database.AgentPosition{Chain: "solana", TokenAddress: "tok1", Size: 1}
	result = g.Apply(gateInput(gateTarget(), positions), nil)
	if result.Blocked && result.Reason == "max_positions" {
		t.Fatal("Held token should bypass the position cap")
	}
}

// TestGateChainConcentration checks the same-chain cap
func TestGateChainConcentration(t *testing.T) {
	g := newTestGate()
	// Balanced: ceil(5*0.6) = 3 same-chain positions max
	positions := []database.AgentPosition{
		{Chain: "solana", TokenAddress: "a", Size: 1},
		{Chain: "solana", TokenAddress: "b", Size: 1},
		{Chain: "solana", TokenAddress: "c", Size: 1},
	}

	result := g.Apply(gateInput(gateTarget(), positions), nil)
	if !result.Blocked || result.Reason != "chain_concentration" {
		t.Fatalf("Chain concentration should block, got %+v", result)
	}
}

// TestGateCorrelation checks correlated same-chain holdings block entry
func TestGateCorrelation(t *testing.T) {
	g := newTestGate()
	target := gateTarget()

	positions := []database.AgentPosition{
		{Chain: "solana", TokenAddress: "a", Size: 1},
		{Chain: "solana", TokenAddress: "b", Size: 1},
		{Chain: "solana", TokenAddress: "c", Size: 1},
	}
	// Shrink the book below the concentration cap by moving one off-chain
	positions[2].Chain = "base"

	var cycle []*signals.TokenSignal
	for _, addr := range []string{"a", "b"} {
		held := gateTarget()
		held.TokenAddress = addr
		cycle = append(cycle, held)
	}
	// Only 2 correlated holdings: passes
	result := g.Apply(gateInput(target, positions), cycle)
	if result.Blocked && result.Reason == "correlation" {
		t.Fatal("Two correlated holdings should still pass")
	}

	// Third correlated same-chain holding: blocks
	positions[2].Chain = "solana"
	held := gateTarget()
	held.TokenAddress = "c"
	cycle = append(cycle, held)

	in := gateInput(target, positions)
	// Drop the concentration stage from the picture by allowing 3 held +
	// the correlated check: use aggressive (cap 8, concentration 5)
	in.Strategy = signals.StrategyAggressive
	in.Thresholds = baseThresholds[signals.StrategyAggressive]
	result = g.Apply(in, cycle)
	if !result.Blocked || result.Reason != "correlation" {
		t.Fatalf("Three correlated holdings should block, got %+v", result)
	}
}

// TestGateExposureReduction checks the 80%% book cap shrinks the amount
func TestGateExposureReduction(t *testing.T) {
	g := newTestGate()
	// Max book: 10 * 5 * 0.8 = 40. Open 39 leaves room for 1.
	positions := []database.AgentPosition{
		{Chain: "base", TokenAddress: "x", Size: 20},
		{Chain: "bsc", TokenAddress: "y", Size: 19},
	}

	result := g.Apply(gateInput(gateTarget(), positions), nil)
	if result.Blocked {
		t.Fatalf("Reduced entry should pass, blocked by %s", result.Reason)
	}
	if result.Amount != 1.0 {
		t.Errorf("Amount = %v, want reduced to 1.0", result.Amount)
	}

	// No room at all blocks outright
	positions[1].Size = 21
	result = g.Apply(gateInput(gateTarget(), positions), nil)
	if !result.Blocked || result.Reason != "exposure_cap" {
		t.Fatalf("Full exposure should block, got %+v", result)
	}
}

// TestGateCooldownTicks checks the cooldown counts down per attempt
func TestGateCooldownTicks(t *testing.T) {
	g := newTestGate()
	g.StartCooldown(context.Background(), "agent-1", 2)

	for i := 0; i < 2; i++ {
		result := g.Apply(gateInput(gateTarget(), nil), nil)
		if !result.Blocked || result.Reason != "cooldown" {
			t.Fatalf("Attempt %d should block on cooldown, got %+v", i+1, result)
		}
	}

	result := g.Apply(gateInput(gateTarget(), nil), nil)
	if result.Blocked {
		t.Fatalf("Cooldown should have expired, blocked by %s", result.Reason)
	}
}

// TestGateRecentLoss checks re-entry after a loss is blocked inside the window
func TestGateRecentLoss(t *testing.T) {
	g := newTestGate()
	target := gateTarget()
	g.NoteLoss("agent-1", target.Key())

	result := g.Apply(gateInput(target, nil), nil)
	if !result.Blocked || result.Reason != "recent_loss" {
		t.Fatalf("Recent loss should block re-entry, got %+v", result)
	}

	// Expired losses stop blocking
	g.recentLosses["agent-1|"+target.Key()] = time.Now().Add(-3 * time.Hour)
	result = g.Apply(gateInput(target, nil), nil)
	if result.Blocked {
		t.Fatalf("Expired loss should not block, got %+v", result)
	}
}

// TestGateMomentumReversal checks a scored reversal blocks entry
func TestGateMomentumReversal(t *testing.T) {
	g := newTestGate()
	reversing := gateTarget()
	reversing.MomentumAcceleration = -3 // +15
	reversing.ShortTermMomentum = 20    // +15

	// 15 + 15 = 30 < 40: passes
	result := g.Apply(gateInput(reversing, nil), nil)
	if result.Blocked && result.Reason == "momentum_reversal" {
		t.Fatal("Score 30 should not block")
	}

	reversing.WhaleActivity = signals.WhaleDistributing // +25, but distribution blocks first
	result = g.Apply(gateInput(reversing, nil), nil)
	if !result.Blocked || result.Reason != "whale_distribution" {
		t.Fatalf("Distribution stage precedes reversal, got %+v", result)
	}
}

// TestGateSignalBlacklist checks learned blacklists block entries
func TestGateSignalBlacklist(t *testing.T) {
	g := newTestGate()
	// 6 straight heavy losses blacklists the tag
	for i := 0; i < 6; i++ {
		_ = g.learning.RecordTradeExit(context.Background(),
			[]signals.Tag{signals.TagSharpDrop}, signals.StrategyBalanced, 100, 90)
	}

	target := gateTarget()
	target.Signals = []signals.Tag{signals.TagSharpDrop}

	result := g.Apply(gateInput(target, nil), nil)
	if !result.Blocked {
		t.Fatal("Blacklisted signal should block")
	}
	if result.Reason != "combo_blacklist" && result.Reason != "signal_blacklist" {
		t.Fatalf("Expected a blacklist stage, got %s", result.Reason)
	}
}
