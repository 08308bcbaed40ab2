package autopilot

import (
	"math"
	"testing"

	"dex-agent-bot/internal/signals"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestConvictionFractionLadder checks the band boundaries
func TestConvictionFractionLadder(t *testing.T) {
	cases := []struct {
		conviction float64
		want       float64
	}{
		{95, 0.50},
		{90, 0.50},
		{82, 0.35},
		{76, 0.30},
		{70, 0.225},
		{65, 0.225},
		{60, 0.15},
		{50, 0.10},
		{30, 0.05},
	}
	for _, c := range cases {
		if got := convictionFraction(c.conviction); got != c.want {
			t.Errorf("conviction %v: fraction = %v, want %v", c.conviction, got, c.want)
		}
	}
}

// TestConvictionSizeMidBand checks the plain mid-band size
func TestConvictionSizeMidBand(t *testing.T) {
	// Conviction 70 on a 10-unit max, balanced, neutral everything: 2.25
	got := ConvictionSize(70, 10, signals.StrategyBalanced, 45, signals.RegimeNeutral, false, signals.WhaleNeutral)
	if !almostEqual(got, 2.25) {
		t.Errorf("Size = %v, want 2.25", got)
	}
}

// TestConvictionSizeRegimeAdjustments checks bull and bear scaling
func TestConvictionSizeRegimeAdjustments(t *testing.T) {
	bull := ConvictionSize(70, 10, signals.StrategyBalanced, 45, signals.RegimeBull, false, signals.WhaleNeutral)
	if !almostEqual(bull, 2.475) {
		t.Errorf("Bull size = %v, want 2.475", bull)
	}

	bear := ConvictionSize(70, 10, signals.StrategyBalanced, 45, signals.RegimeBear, false, signals.WhaleNeutral)
	if !almostEqual(bear, 1.8) {
		t.Errorf("Bear size = %v, want 1.8", bear)
	}
}

// TestConvictionSizeVolatilityDampens checks choppy tokens size down
func TestConvictionSizeVolatilityDampens(t *testing.T) {
	extreme := ConvictionSize(70, 10, signals.StrategyBalanced, 90, signals.RegimeNeutral, false, signals.WhaleNeutral)
	if !almostEqual(extreme, 2.25*0.7) {
		t.Errorf("Extreme volatility size = %v, want %v", extreme, 2.25*0.7)
	}

	high := ConvictionSize(70, 10, signals.StrategyBalanced, 75, signals.RegimeNeutral, false, signals.WhaleNeutral)
	if !almostEqual(high, 2.25*0.85) {
		t.Errorf("High volatility size = %v, want %v", high, 2.25*0.85)
	}
}

// TestConvictionSizeBreakoutCombo checks the confirming-combo bonus
func TestConvictionSizeBreakoutCombo(t *testing.T) {
	combo := ConvictionSize(70, 10, signals.StrategyBalanced, 45, signals.RegimeNeutral, true, signals.WhaleAccumulating)
	if !almostEqual(combo, 2.25*1.15) {
		t.Errorf("Combo size = %v, want %v", combo, 2.25*1.15)
	}

	// Breakout without accumulation earns nothing extra
	plain := ConvictionSize(70, 10, signals.StrategyBalanced, 45, signals.RegimeNeutral, true, signals.WhaleNeutral)
	if !almostEqual(plain, 2.25) {
		t.Errorf("Breakout-only size = %v, want 2.25", plain)
	}
}

// TestConvictionSizeNeverExceedsMax checks the hard cap
func TestConvictionSizeNeverExceedsMax(t *testing.T) {
	got := ConvictionSize(95, 10, signals.StrategyDegen, 45, signals.RegimeBull, true, signals.WhaleAccumulating)
	if got > 10 {
		t.Errorf("Size = %v exceeds maxPositionSize 10", got)
	}
}

// TestConvictionSizeStrategyScale checks momentum strategies probe larger
func TestConvictionSizeStrategyScale(t *testing.T) {
	degen := ConvictionSize(50, 10, signals.StrategyDegen, 45, signals.RegimeNeutral, false, signals.WhaleNeutral)
	if !almostEqual(degen, 1.2) {
		t.Errorf("Degen size = %v, want 1.2", degen)
	}
}
