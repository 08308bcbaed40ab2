package autopilot

import (
	"sync"
	"time"

	"dex-agent-bot/internal/signals"
)

// EntryThresholds are the adaptive minimums a buy must clear
type EntryThresholds struct {
	MinConviction  float64
	MinSignalScore float64
	MinMomentum    float64
}

var baseThresholds = map[signals.Strategy]EntryThresholds{
	signals.StrategyConservative: {MinConviction: 55, MinSignalScore: 60, MinMomentum: 55},
	signals.StrategyBalanced:     {MinConviction: 42, MinSignalScore: 55, MinMomentum: 50},
	signals.StrategyAggressive:   {MinConviction: 35, MinSignalScore: 50, MinMomentum: 45},
	signals.StrategyDegen:        {MinConviction: 25, MinSignalScore: 45, MinMomentum: 40},
}

type trackedTrade struct {
	pnlPct float64
	at     time.Time
}

// AgentTracker holds one agent's rolling performance window and the
// adaptive threshold offset derived from it. Offsets only rise on losses
// and decay slowly on win streaks, so thresholds never loosen right
// after a loss.
type AgentTracker struct {
	recentTrades []trackedTrade
	winStreak    int
	lossStreak   int
	offset       float64
}

const (
	trackerWindow  = 24 * time.Hour
	trackerMaxSize = 50
	offsetFloor    = -10
	offsetCeiling  = 25
)

// RecordTrade folds one closed trade into the window and adjusts the
// streaks and offset
func (t *AgentTracker) RecordTrade(pnlPct float64) {
	t.recentTrades = append(t.recentTrades, trackedTrade{pnlPct: pnlPct, at: time.Now()})
	t.prune()

	if pnlPct > 0 {
		t.winStreak++
		t.lossStreak = 0
		if t.winStreak >= 3 {
			t.offset -= 2
			if t.offset < offsetFloor {
				t.offset = offsetFloor
			}
		}
	} else {
		t.lossStreak++
		t.winStreak = 0
		bump := 3.0
		if t.lossStreak >= 3 {
			bump = 5
		}
		t.offset += bump
		if t.offset > offsetCeiling {
			t.offset = offsetCeiling
		}
	}
}

func (t *AgentTracker) prune() {
	cutoff := time.Now().Add(-trackerWindow)
	kept := t.recentTrades[:0]
	for _, tr := range t.recentTrades {
		if tr.at.After(cutoff) {
			kept = append(kept, tr)
		}
	}
	t.recentTrades = kept
	if len(t.recentTrades) > trackerMaxSize {
		t.recentTrades = t.recentTrades[len(t.recentTrades)-trackerMaxSize:]
	}
}

// LossStreak returns the current consecutive-loss count
func (t *AgentTracker) LossStreak() int { return t.lossStreak }

// WinStreak returns the current consecutive-win count
func (t *AgentTracker) WinStreak() int { return t.winStreak }

// Rolling24hPnl sums the pnl percentages inside the window
func (t *AgentTracker) Rolling24hPnl() float64 {
	t.prune()
	var sum float64
	for _, tr := range t.recentTrades {
		sum += tr.pnlPct
	}
	return sum
}

// EntryThresholds returns the strategy base thresholds shifted by the
// adaptive offset, capped so a long slump cannot push entries out of
// reach forever
func (t *AgentTracker) EntryThresholds(strategy signals.Strategy) EntryThresholds {
	base, ok := baseThresholds[strategy]
	if !ok {
		base = baseThresholds[signals.StrategyBalanced]
	}

	th := EntryThresholds{
		MinConviction:  base.MinConviction + t.offset,
		MinSignalScore: base.MinSignalScore + t.offset,
		MinMomentum:    base.MinMomentum + float64(int(t.offset)/2),
	}
	if th.MinConviction > 90 {
		th.MinConviction = 90
	}
	if th.MinSignalScore > 90 {
		th.MinSignalScore = 90
	}
	if th.MinMomentum > 85 {
		th.MinMomentum = 85
	}
	return th
}

// PositionSizeMultiplier shrinks sizing in slumps and gently rewards
// streaks, clamped to [0.2, 1.2]
func (t *AgentTracker) PositionSizeMultiplier() float64 {
	mult := 1.0

	switch {
	case t.lossStreak >= 4:
		mult = 0.3
	case t.lossStreak >= 3:
		mult = 0.5
	case t.lossStreak >= 2:
		mult = 0.7
	}

	switch {
	case t.winStreak >= 5:
		mult *= 1.15
	case t.winStreak >= 3:
		mult *= 1.10
	}

	switch pnl := t.Rolling24hPnl(); {
	case pnl < -15:
		mult *= 0.6
	case pnl < -8:
		mult *= 0.8
	}

	if mult < 0.2 {
		mult = 0.2
	}
	if mult > 1.2 {
		mult = 1.2
	}
	return mult
}

// AdaptiveMode names the agent's current stance for the oracle prompt
func (t *AgentTracker) AdaptiveMode() string {
	switch {
	case t.lossStreak >= 2 || t.offset >= 9:
		return "Defensive"
	case t.winStreak >= 3 && t.offset <= 0:
		return "Confident"
	default:
		return "Standard"
	}
}

// TrackerSet holds per-agent trackers. Each tracker is only mutated from
// its own agent's cycle; the set itself is guarded for the map access.
type TrackerSet struct {
	mu       sync.Mutex
	trackers map[string]*AgentTracker
}

// NewTrackerSet creates an empty tracker set
func NewTrackerSet() *TrackerSet {
	return &TrackerSet{trackers: make(map[string]*AgentTracker)}
}

// For returns the tracker for an agent, creating it on first use
func (s *TrackerSet) For(agentID string) *AgentTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[agentID]
	if !ok {
		t = &AgentTracker{}
		s.trackers[agentID] = t
	}
	return t
}
