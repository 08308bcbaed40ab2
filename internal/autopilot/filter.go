package autopilot

import (
	"context"
	"math"
	"sync"
	"time"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/signals"
)

var maxPositionsByStrategy = map[signals.Strategy]int{
	signals.StrategyConservative: 3,
	signals.StrategyBalanced:     5,
	signals.StrategyAggressive:   8,
	signals.StrategyDegen:        10,
}

var rugRiskCap = map[signals.Strategy]float64{
	signals.StrategyConservative: 70,
	signals.StrategyBalanced:     60,
	signals.StrategyAggressive:   45,
	signals.StrategyDegen:        45,
}

const recentLossWindow = 2 * time.Hour

// GateInput is everything the post-oracle buy gate evaluates
type GateInput struct {
	Agent      *database.AgentConfig
	Strategy   signals.Strategy
	Target     *signals.TokenSignal
	Amount     float64
	Positions  []database.AgentPosition
	Thresholds EntryThresholds
}

// GateResult carries the gate verdict: either a (possibly reduced)
// amount, or the first block reason
type GateResult struct {
	Amount  float64
	Blocked bool
	Reason  string
}

type gateStage struct {
	name  string
	check func(*GateInput, *Gate) bool // true = blocks
}

// Gate is the ordered buy-filter pipeline applied after the oracle
// proposes a trade. The first stage that blocks wins and its name
// becomes the AgentLog decision. Stages run in a fixed order; none has
// side effects except the cooldown tick and the exposure reduction.
type Gate struct {
	learning *learning.Store
	redis    *database.RedisState

	mu           sync.Mutex
	cooldowns    map[string]int       // agentID -> cycles remaining
	recentLosses map[string]time.Time // agentID|tokenKey -> loss time
}

// NewGate creates the gate around the learning store. redis may be nil.
func NewGate(store *learning.Store, redis *database.RedisState) *Gate {
	return &Gate{
		learning:     store,
		redis:        redis,
		cooldowns:    make(map[string]int),
		recentLosses: make(map[string]time.Time),
	}
}

var gateStages = []gateStage{
	{"adaptive_thresholds", func(in *GateInput, g *Gate) bool {
		return in.Target.Conviction < in.Thresholds.MinConviction ||
			in.Target.OverallSignalScore < in.Thresholds.MinSignalScore ||
			in.Target.MomentumScore < in.Thresholds.MinMomentum
	}},
	{"combo_blacklist", func(in *GateInput, g *Gate) bool {
		_, blacklisted := g.learning.ComboConfidence(in.Target.Signals, in.Strategy)
		return blacklisted
	}},
	{"signal_blacklist", func(in *GateInput, g *Gate) bool {
		for _, tag := range in.Target.Signals {
			if g.learning.IsBlacklisted(tag, in.Strategy) {
				return true
			}
		}
		return false
	}},
	{"max_positions", func(in *GateInput, g *Gate) bool {
		if hasPosition(in.Positions, in.Target) {
			return false
		}
		return len(in.Positions) >= maxPositions(in.Strategy)
	}},
	{"chain_concentration", func(in *GateInput, g *Gate) bool {
		if hasPosition(in.Positions, in.Target) {
			return false
		}
		limit := chainConcentrationCap(in.Strategy)
		sameChain := 0
		for _, p := range in.Positions {
			if p.Chain == string(in.Target.Chain) {
				sameChain++
			}
		}
		return sameChain >= limit
	}},
	// correlation needs the cycle signal list; Apply special-cases it
	{"correlation", func(in *GateInput, g *Gate) bool { return false }},
	{"cooldown", func(in *GateInput, g *Gate) bool {
		return g.tickCooldown(in.Agent.ID)
	}},
	{"rug_risk", func(in *GateInput, g *Gate) bool {
		return in.Target.RugRiskScore > rugRiskCap[in.Strategy]
	}},
	{"whale_distribution", func(in *GateInput, g *Gate) bool {
		return in.Target.WhaleActivity == signals.WhaleDistributing
	}},
	{"crash_signal", func(in *GateInput, g *Gate) bool {
		return in.Target.HasSignal(signals.TagFlashCrash) ||
			in.Target.HasSignal(signals.TagHeavySellPressure)
	}},
	{"recent_loss", func(in *GateInput, g *Gate) bool {
		return g.hadRecentLoss(in.Agent.ID, in.Target.Key())
	}},
	{"momentum_reversal", func(in *GateInput, g *Gate) bool {
		return ReversalScore(in.Target) >= 40
	}},
}

// Apply runs the pipeline. cycleSignals is the full signal list of the
// cycle, used to correlate held tokens with the buy target.
func (g *Gate) Apply(in *GateInput, cycleSignals []*signals.TokenSignal) GateResult {
	for _, stage := range gateStages {
		if stage.name == "correlation" {
			if g.correlationBlocked(in, cycleSignals) {
				return GateResult{Blocked: true, Reason: stage.name}
			}
			// Exposure reduction sits between correlation and cooldown
			in.Amount = reduceForExposure(in)
			if in.Amount <= 0 {
				return GateResult{Blocked: true, Reason: "exposure_cap"}
			}
			continue
		}
		if stage.check(in, g) {
			return GateResult{Blocked: true, Reason: stage.name}
		}
	}
	return GateResult{Amount: in.Amount}
}

// correlationBlocked limits same-chain positions that move like the
// target: at most 2 other holdings within 12 momentum points and 10
// buy-pressure points
func (g *Gate) correlationBlocked(in *GateInput, cycleSignals []*signals.TokenSignal) bool {
	correlated := 0
	for _, p := range in.Positions {
		if p.Chain != string(in.Target.Chain) || p.TokenAddress == in.Target.TokenAddress {
			continue
		}
		held := findByToken(cycleSignals, p.TokenAddress, p.Chain)
		if held == nil {
			continue
		}
		if math.Abs(held.MomentumScore-in.Target.MomentumScore) < 12 &&
			math.Abs(held.BuyPressureScore-in.Target.BuyPressureScore) < 10 {
			correlated++
		}
	}
	return correlated > 2
}

// reduceForExposure caps total open size at 80% of the theoretical
// maximum book, shrinking the proposed amount to fit
func reduceForExposure(in *GateInput) float64 {
	maxExposure := in.Agent.MaxPositionSize * float64(maxPositions(in.Strategy)) * 0.8

	var open float64
	for _, p := range in.Positions {
		open += p.Size
	}

	room := maxExposure - open
	if room <= 0 {
		return 0
	}
	if in.Amount > room {
		return room
	}
	return in.Amount
}

func maxPositions(strategy signals.Strategy) int {
	if n, ok := maxPositionsByStrategy[strategy]; ok {
		return n
	}
	return maxPositionsByStrategy[signals.StrategyBalanced]
}

func chainConcentrationCap(strategy signals.Strategy) int {
	capped := int(math.Ceil(float64(maxPositions(strategy)) * 0.6))
	if capped < 2 {
		capped = 2
	}
	return capped
}

func hasPosition(positions []database.AgentPosition, t *signals.TokenSignal) bool {
	for _, p := range positions {
		if p.TokenAddress == t.TokenAddress && p.Chain == string(t.Chain) {
			return true
		}
	}
	return false
}

func findByToken(list []*signals.TokenSignal, address, chain string) *signals.TokenSignal {
	for _, t := range list {
		if t.TokenAddress == address && string(t.Chain) == chain {
			return t
		}
	}
	return nil
}

// StartCooldown pauses an agent's buys for the given number of cycles
func (g *Gate) StartCooldown(ctx context.Context, agentID string, cycles int) {
	g.mu.Lock()
	g.cooldowns[agentID] = cycles
	g.mu.Unlock()
	if g.redis != nil {
		g.redis.SetCooldownCycles(ctx, agentID, cycles)
	}
}

// RestoreCooldown seeds the in-memory counter from the Redis mirror
func (g *Gate) RestoreCooldown(ctx context.Context, agentID string) {
	if g.redis == nil {
		return
	}
	if cycles := g.redis.CooldownCycles(ctx, agentID); cycles > 0 {
		g.mu.Lock()
		if _, ok := g.cooldowns[agentID]; !ok {
			g.cooldowns[agentID] = cycles
		}
		g.mu.Unlock()
	}
}

// tickCooldown decrements an active cooldown and reports whether the
// agent is still paused
func (g *Gate) tickCooldown(agentID string) bool {
	g.mu.Lock()
	cycles, ok := g.cooldowns[agentID]
	if !ok || cycles <= 0 {
		g.mu.Unlock()
		return false
	}
	cycles--
	if cycles <= 0 {
		delete(g.cooldowns, agentID)
	} else {
		g.cooldowns[agentID] = cycles
	}
	g.mu.Unlock()

	if g.redis != nil {
		g.redis.SetCooldownCycles(context.Background(), agentID, cycles)
	}
	return true
}

// NoteLoss records a losing exit so the same token is not re-entered
// immediately
func (g *Gate) NoteLoss(agentID, tokenKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recentLosses[agentID+"|"+tokenKey] = time.Now()
}

func (g *Gate) hadRecentLoss(agentID, tokenKey string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	at, ok := g.recentLosses[agentID+"|"+tokenKey]
	if !ok {
		return false
	}
	if time.Since(at) > recentLossWindow {
		delete(g.recentLosses, agentID+"|"+tokenKey)
		return false
	}
	return true
}
