package autopilot

import (
	"testing"

	"dex-agent-bot/internal/signals"
)

// TestTrackerOffsetRisesOnLosses checks losses tighten thresholds
func TestTrackerOffsetRisesOnLosses(t *testing.T) {
	tr := &AgentTracker{}
	tr.RecordTrade(-5)
	tr.RecordTrade(-3)

	th := tr.EntryThresholds(signals.StrategyBalanced)
	// Base 42 + 3 + 3
	if th.MinConviction != 48 {
		t.Errorf("MinConviction = %v, want 48", th.MinConviction)
	}
	if tr.LossStreak() != 2 {
		t.Errorf("LossStreak = %d, want 2", tr.LossStreak())
	}
}

// TestTrackerStreakBumpGrows checks the third consecutive loss bumps by 5
func TestTrackerStreakBumpGrows(t *testing.T) {
	tr := &AgentTracker{}
	tr.RecordTrade(-1)
	tr.RecordTrade(-1)
	tr.RecordTrade(-1)

	// 3 + 3 + 5
	if tr.offset != 11 {
		t.Errorf("Offset = %v, want 11", tr.offset)
	}
}

// TestTrackerOffsetCeiling checks the clamp at +25
func TestTrackerOffsetCeiling(t *testing.T) {
	tr := &AgentTracker{}
	for i := 0; i < 20; i++ {
		tr.RecordTrade(-1)
	}
	if tr.offset != 25 {
		t.Errorf("Offset = %v, want ceiling 25", tr.offset)
	}

	// Thresholds stay reachable even at the ceiling
	th := tr.EntryThresholds(signals.StrategyConservative)
	if th.MinConviction > 90 || th.MinSignalScore > 90 || th.MinMomentum > 85 {
		t.Errorf("Thresholds should cap at 90/90/85, got %+v", th)
	}
}

// TestTrackerWinStreakDecays checks three wins start easing the offset
func TestTrackerWinStreakDecays(t *testing.T) {
	tr := &AgentTracker{}
	tr.RecordTrade(-1) // +3
	tr.RecordTrade(5)
	tr.RecordTrade(5)
	tr.RecordTrade(5) // streak 3: -2

	if tr.offset != 1 {
		t.Errorf("Offset = %v, want 1", tr.offset)
	}
	if tr.WinStreak() != 3 || tr.LossStreak() != 0 {
		t.Errorf("Streaks = %d/%d, want 3/0", tr.WinStreak(), tr.LossStreak())
	}
}

// TestTrackerOffsetFloor checks the clamp at -10
func TestTrackerOffsetFloor(t *testing.T) {
	tr := &AgentTracker{}
	for i := 0; i < 20; i++ {
		tr.RecordTrade(5)
	}
	if tr.offset != offsetFloor {
		t.Errorf("Offset = %v, want floor %v", tr.offset, offsetFloor)
	}
}

// TestTrackerMinMomentumShift checks the half-offset momentum shift
func TestTrackerMinMomentumShift(t *testing.T) {
	tr := &AgentTracker{offset: 9}
	th := tr.EntryThresholds(signals.StrategyBalanced)
	// Base 50 + int(9)/2 = 54
	if th.MinMomentum != 54 {
		t.Errorf("MinMomentum = %v, want 54", th.MinMomentum)
	}
}

// TestPositionSizeMultiplier checks the slump and streak scaling
func TestPositionSizeMultiplier(t *testing.T) {
	fresh := &AgentTracker{}
	if got := fresh.PositionSizeMultiplier(); got != 1.0 {
		t.Errorf("Fresh tracker multiplier = %v, want 1.0", got)
	}

	slump := &AgentTracker{}
	slump.RecordTrade(-1)
	slump.RecordTrade(-1)
	slump.RecordTrade(-1)
	slump.RecordTrade(-1)
	// lossStreak >= 4 -> 0.3, rolling pnl -4 stays above the -8 band
	if got := slump.PositionSizeMultiplier(); got != 0.3 {
		t.Errorf("Four-loss multiplier = %v, want 0.3", got)
	}

	hot := &AgentTracker{}
	for i := 0; i < 5; i++ {
		hot.RecordTrade(2)
	}
	// winStreak >= 5 -> 1.15, clamped inside [0.2, 1.2]
	if got := hot.PositionSizeMultiplier(); got != 1.15 {
		t.Errorf("Five-win multiplier = %v, want 1.15", got)
	}
}

// TestPositionSizeMultiplierDeepDrawdown checks the 24h pnl bands compound
func TestPositionSizeMultiplierDeepDrawdown(t *testing.T) {
	tr := &AgentTracker{}
	tr.RecordTrade(-10)
	tr.RecordTrade(-10)
	// lossStreak 2 -> 0.7, pnl -20 < -15 -> *0.6 = 0.42
	got := tr.PositionSizeMultiplier()
	if got < 0.41 || got > 0.43 {
		t.Errorf("Drawdown multiplier = %v, want 0.42", got)
	}
}

// TestAdaptiveMode checks the stance labels
func TestAdaptiveMode(t *testing.T) {
	fresh := &AgentTracker{}
	if fresh.AdaptiveMode() != "Standard" {
		t.Errorf("Fresh tracker mode = %v, want Standard", fresh.AdaptiveMode())
	}

	defensive := &AgentTracker{}
	defensive.RecordTrade(-1)
	defensive.RecordTrade(-1)
	if defensive.AdaptiveMode() != "Defensive" {
		t.Errorf("Two losses mode = %v, want Defensive", defensive.AdaptiveMode())
	}

	confident := &AgentTracker{offset: -4}
	confident.winStreak = 3
	if confident.AdaptiveMode() != "Confident" {
		t.Errorf("Win streak mode = %v, want Confident", confident.AdaptiveMode())
	}
}

// TestTrackerSetPerAgent checks isolation between agents
func TestTrackerSetPerAgent(t *testing.T) {
	set := NewTrackerSet()
	set.For("a").RecordTrade(-1)

	if set.For("b").LossStreak() != 0 {
		t.Error("Trackers should be isolated per agent")
	}
	if set.For("a").LossStreak() != 1 {
		t.Error("Tracker should persist across For calls")
	}
}
