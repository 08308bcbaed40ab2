package autopilot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"dex-agent-bot/internal/ai/llm"
	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/events"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"
)

// SignalBuilder is the slice of the signal engine the runner consumes
type SignalBuilder interface {
	Build(ctx context.Context, chain string, strategy signals.Strategy) ([]*signals.TokenSignal, error)
	LastBreadth() signals.MarketBreadth
}

// Decider is the oracle adapter port
type Decider interface {
	Decide(ctx context.Context, req *llm.DecisionRequest) *llm.Decision
}

// Options tune the runner's schedule and stop-distance fallbacks
type Options struct {
	CyclePeriod          time.Duration
	SignalCacheTTL       time.Duration
	DefaultStopLossPct   float64
	DefaultTakeProfitPct float64
}

type cachedSignals struct {
	signals []*signals.TokenSignal
	builtAt time.Time
}

// Runner drives every active agent on a fixed cycle. One cycle at a
// time: overlapping ticks are dropped, never queued.
type Runner struct {
	store    database.Store
	builder  SignalBuilder
	decider  Decider
	gate     *Gate
	trackers *TrackerSet
	learning *learning.Store
	bus      *events.Bus
	redis    *database.RedisState
	logger   *logging.Logger
	opts     Options

	started  atomic.Bool
	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	cacheMu sync.Mutex
	cache   map[string]cachedSignals
}

// NewRunner wires the orchestrator
func NewRunner(store database.Store, builder SignalBuilder, decider Decider, gate *Gate, trackers *TrackerSet, learn *learning.Store, bus *events.Bus, redis *database.RedisState, logger *logging.Logger, opts Options) *Runner {
	if opts.CyclePeriod <= 0 {
		opts.CyclePeriod = 10 * time.Second
	}
	if opts.SignalCacheTTL <= 0 {
		opts.SignalCacheTTL = 8 * time.Second
	}
	if opts.DefaultStopLossPct > 0 {
		fallbackStopLossPct = opts.DefaultStopLossPct
	}
	if opts.DefaultTakeProfitPct > 0 {
		fallbackTakeProfitPct = opts.DefaultTakeProfitPct
	}
	return &Runner{
		store:    store,
		builder:  builder,
		decider:  decider,
		gate:     gate,
		trackers: trackers,
		learning: learn,
		bus:      bus,
		redis:    redis,
		logger:   logger.WithComponent("runner"),
		opts:     opts,
		cache:    make(map[string]cachedSignals),
	}
}

// Start launches the cycle and daily-reset timers. Idempotent.
func (r *Runner) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(runCtx)

	r.logger.Info("agent runner started", "cycle_period", r.opts.CyclePeriod.String())
}

// Running reports whether the cycle loop is active
func (r *Runner) Running() bool {
	return r.started.Load()
}

// Stop cancels the timers and waits for the in-flight cycle
func (r *Runner) Stop() {
	if !r.started.CompareAndSwap(true, false) {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.logger.Info("agent runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.CyclePeriod)
	defer ticker.Stop()
	daily := time.NewTicker(24 * time.Hour)
	defer daily.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-daily.C:
			if err := r.store.ResetDailyTrades(ctx); err != nil {
				r.logger.Error("daily trade reset failed", "error", err.Error())
			} else {
				r.logger.Info("daily trade counters reset")
			}
		case <-ticker.C:
			if !r.inFlight.CompareAndSwap(false, true) {
				r.logger.Warn("cycle still in flight, dropping tick")
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer r.inFlight.Store(false)
				r.runCycle(ctx)
			}()
		}
	}
}

func groupKey(chain, strategy string) string {
	if chain == "" {
		chain = "all"
	}
	return chain + "|" + strategy
}

func (r *Runner) runCycle(ctx context.Context) {
	start := time.Now()

	agents, err := r.store.ListActiveAgents(ctx)
	if err != nil {
		r.logger.Error("list active agents failed", "error", err.Error())
		return
	}
	if len(agents) == 0 {
		return
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]cachedSignals)
	r.cacheMu.Unlock()

	// Prefetch one signal list per (chain, strategy) group in parallel
	groups := make(map[string][2]string)
	for _, a := range agents {
		groups[groupKey(a.Chain, a.Strategy)] = [2]string{a.Chain, a.Strategy}
	}

	var prefetch sync.WaitGroup
	for key, cs := range groups {
		prefetch.Add(1)
		go func(key, chain, strategy string) {
			defer prefetch.Done()
			list, err := r.builder.Build(ctx, chain, signals.Strategy(strategy))
			if err != nil {
				r.logger.Warn("signal prefetch failed", "group", key, "error", err.Error())
				list = nil
			}
			r.cacheMu.Lock()
			r.cache[key] = cachedSignals{signals: list, builtAt: time.Now()}
			r.cacheMu.Unlock()
		}(key, cs[0], cs[1])
	}
	prefetch.Wait()

	var hadError atomic.Bool
	var agentWg sync.WaitGroup
	for i := range agents {
		agentWg.Add(1)
		go func(agent database.AgentConfig) {
			defer agentWg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					hadError.Store(true)
					r.logger.Error("agent cycle panic", "agent", agent.ID, "panic", fmt.Sprint(rec))
					r.bus.PublishAgentError(agent.ID, fmt.Sprint(rec))
				}
			}()
			if err := r.executeAgentCycle(ctx, &agent); err != nil {
				hadError.Store(true)
				r.logger.Error("agent cycle failed", "agent", agent.ID, "error", err.Error())
				r.bus.PublishAgentError(agent.ID, err.Error())
			}
		}(agents[i])
	}
	agentWg.Wait()

	if elapsed := time.Since(start); elapsed > 5*time.Second || hadError.Load() {
		r.logger.Warn("slow or degraded cycle", "elapsed", elapsed.String(), "agents", len(agents))
	}
}

func (r *Runner) cycleSignals(ctx context.Context, agent *database.AgentConfig) []*signals.TokenSignal {
	key := groupKey(agent.Chain, agent.Strategy)

	r.cacheMu.Lock()
	entry, ok := r.cache[key]
	r.cacheMu.Unlock()

	if ok && time.Since(entry.builtAt) < r.opts.SignalCacheTTL {
		return entry.signals
	}

	list, err := r.builder.Build(ctx, agent.Chain, signals.Strategy(agent.Strategy))
	if err != nil {
		r.logger.Warn("signal build failed", "agent", agent.ID, "error", err.Error())
		return nil
	}
	r.cacheMu.Lock()
	r.cache[key] = cachedSignals{signals: list, builtAt: time.Now()}
	r.cacheMu.Unlock()
	return list
}

func (r *Runner) executeAgentCycle(ctx context.Context, agent *database.AgentConfig) error {
	strategy := signals.Strategy(agent.Strategy)
	tracker := r.trackers.For(agent.ID)
	r.gate.RestoreCooldown(ctx, agent.ID)

	// Subscription gate before anything else
	active, err := r.subscriptionActive(ctx, agent.UserID)
	if err != nil {
		return fmt.Errorf("subscription check: %w", err)
	}
	if !active {
		agent.Status = "stopped"
		if err := r.store.UpdateAgent(ctx, agent); err != nil {
			return fmt.Errorf("stop agent: %w", err)
		}
		_ = r.store.CreateLog(ctx, &database.AgentLog{
			AgentID:   agent.ID,
			Action:    "stopped",
			Decision:  "subscription_expired",
			Reasoning: "no active subscription, grace period or promo access",
		})
		r.bus.PublishAgentUpdate(agent.ID, map[string]interface{}{"event": "subscription_expired"})
		return nil
	}

	cycleSignals := r.cycleSignals(ctx, agent)

	positions, err := r.store.ListOpenPositions(ctx, agent.ID)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	closedAny, err := r.updatePositions(ctx, agent, tracker, positions, cycleSignals)
	if err != nil {
		return err
	}
	if closedAny {
		r.bus.PublishAgentUpdate(agent.ID, map[string]interface{}{"event": "positions_changed"})
	}

	// Re-read: position updates may have stopped or mutated the agent
	fresh, err := r.store.GetAgent(ctx, agent.ID)
	if err != nil {
		return fmt.Errorf("reload agent: %w", err)
	}
	if fresh == nil || fresh.Status != "running" {
		return nil
	}
	agent = fresh

	if agent.DailyTradesUsed >= agent.MaxDailyTrades {
		_ = r.store.CreateLog(ctx, &database.AgentLog{
			AgentID:  agent.ID,
			Action:   "blocked",
			Decision: "daily_limit",
		})
		return nil
	}

	positions, err = r.store.ListOpenPositions(ctx, agent.ID)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	recentTrades, err := r.store.ListTrades(ctx, agent.ID, 5)
	if err != nil {
		r.logger.Warn("recent trades load failed", "agent", agent.ID, "error", err.Error())
	}

	decision := r.decider.Decide(ctx, &llm.DecisionRequest{
		Agent:        agent,
		Strategy:     strategy,
		Signals:      cycleSignals,
		Breadth:      r.builder.LastBreadth(),
		Positions:    positions,
		RecentTrades: recentTrades,
		LossStreak:   tracker.LossStreak(),
		AdaptiveMode: tracker.AdaptiveMode(),
	})

	if err := r.store.CreateLog(ctx, &database.AgentLog{
		AgentID:     agent.ID,
		Action:      decision.Action,
		Decision:    decision.Action,
		Reasoning:   decision.Reasoning,
		TokenSymbol: decision.TokenSymbol,
		Confidence:  decision.Confidence,
		SignalScore: decision.SignalScore,
	}); err != nil {
		return fmt.Errorf("persist decision log: %w", err)
	}

	if decision.Action == "hold" || decision.TokenSymbol == "" {
		r.bus.PublishAgentUpdate(agent.ID, map[string]interface{}{"decision": "hold"})
		return nil
	}

	target := resolveTarget(cycleSignals, decision)
	if target == nil || target.Price <= 0 {
		_ = r.store.CreateLog(ctx, &database.AgentLog{
			AgentID:     agent.ID,
			Action:      "skipped",
			Decision:    "unknown_token",
			TokenSymbol: decision.TokenSymbol,
		})
		return nil
	}

	switch decision.Action {
	case "buy":
		return r.executeBuy(ctx, agent, tracker, decision, target, positions, cycleSignals)
	case "sell":
		return r.executeOracleSell(ctx, agent, tracker, decision, target, positions)
	}
	return nil
}

func (r *Runner) subscriptionActive(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return true, nil
	}
	if sub, err := r.store.ActiveSubscription(ctx, userID); err != nil {
		return false, err
	} else if sub != nil {
		return true, nil
	}
	if sub, err := r.store.SubscriptionIncludingGrace(ctx, userID); err != nil {
		return false, err
	} else if sub != nil {
		return true, nil
	}
	return r.store.HasActivePromoAccess(ctx, userID)
}

// resolveTarget matches the oracle's token to this cycle's signals:
// address+chain first, then symbol+chain, then bare symbol
func resolveTarget(list []*signals.TokenSignal, d *llm.Decision) *signals.TokenSignal {
	if d.TokenAddress != "" {
		for _, t := range list {
			if t.TokenAddress == d.TokenAddress && string(t.Chain) == d.Chain {
				return t
			}
		}
	}
	if d.Chain != "" {
		for _, t := range list {
			if t.Symbol == d.TokenSymbol && string(t.Chain) == d.Chain {
				return t
			}
		}
	}
	for _, t := range list {
		if t.Symbol == d.TokenSymbol {
			return t
		}
	}
	return nil
}

// updatePositions runs the exit pipeline over every open position.
// Returns whether any position fully closed.
func (r *Runner) updatePositions(ctx context.Context, agent *database.AgentConfig, tracker *AgentTracker, positions []database.AgentPosition, cycleSignals []*signals.TokenSignal) (bool, error) {
	strategy := signals.Strategy(agent.Strategy)
	closedAny := false

	for i := range positions {
		pos := &positions[i]
		t := findByToken(cycleSignals, pos.TokenAddress, pos.Chain)
		if t == nil || t.Price <= 0 {
			continue
		}

		pos.CurrentPrice = t.Price
		if t.Price > pos.HighestPrice {
			pos.HighestPrice = t.Price
		}
		if r.redis != nil {
			if mirrored := r.redis.TierCounter(ctx, pos.ID); mirrored > pos.TierCounter {
				pos.TierCounter = mirrored
			}
		}

		act := EvaluateExit(pos, t, strategy)
		if act == nil {
			if err := r.store.UpdatePosition(ctx, pos); err != nil {
				return closedAny, fmt.Errorf("update position %s: %w", pos.ID, err)
			}
			continue
		}

		sellSize := pos.Size * act.SellFraction
		closed, err := r.executeSell(ctx, agent, tracker, pos, sellSize, t.Price, act.Reason, act.TierAdvance)
		if err != nil {
			return closedAny, err
		}
		if closed {
			closedAny = true
		}
	}
	return closedAny, nil
}

// executeSell persists the trade first, then applies the position and
// agent bookkeeping. sellSize at or above 95% of the position is a full
// close.
func (r *Runner) executeSell(ctx context.Context, agent *database.AgentConfig, tracker *AgentTracker, pos *database.AgentPosition, sellSize, price float64, reason string, tierAdvance bool) (bool, error) {
	if sellSize > pos.Size {
		sellSize = pos.Size
	}
	if sellSize <= 0 {
		return false, nil
	}

	pnl := (price - pos.AvgEntryPrice) * sellSize
	fullClose := sellSize >= pos.Size*0.95

	trade := &database.AgentTrade{
		AgentID:      agent.ID,
		PositionID:   pos.ID,
		Chain:        pos.Chain,
		TokenAddress: pos.TokenAddress,
		TokenSymbol:  pos.TokenSymbol,
		Type:         "sell",
		Amount:       sellSize,
		Price:        price,
		Pnl:          pnl,
		Reason:       reason,
	}
	if err := r.store.CreateTrade(ctx, trade); err != nil {
		return false, fmt.Errorf("persist sell trade: %w", err)
	}

	if !fullClose {
		pos.Size -= sellSize
		pos.RealizedPnl += pnl
		pos.CurrentPrice = price
		if tierAdvance {
			pos.TierCounter++
			if r.redis != nil {
				r.redis.SetTierCounter(ctx, pos.ID, pos.TierCounter)
			}
		}
		if err := r.store.UpdatePosition(ctx, pos); err != nil {
			return false, fmt.Errorf("update position after sell: %w", err)
		}
		r.bus.PublishAgentTrade(agent.ID, "sell", pos.TokenSymbol, sellSize, price, pnl)
		return false, nil
	}

	realized := pos.RealizedPnl + pnl
	if err := r.store.ClosePosition(ctx, pos.ID, price, realized); err != nil {
		return false, fmt.Errorf("close position: %w", err)
	}
	if r.redis != nil {
		r.redis.ClearTierCounter(ctx, pos.ID)
	}

	// Learning and performance bookkeeping on the realized exit
	entryTags := make([]signals.Tag, 0, len(pos.EntrySignals))
	for _, s := range pos.EntrySignals {
		entryTags = append(entryTags, signals.Tag(s))
	}
	strategy := signals.Strategy(agent.Strategy)
	if err := r.learning.RecordTradeExit(ctx, entryTags, strategy, pos.AvgEntryPrice, price); err != nil {
		r.logger.Warn("learning exit record failed", "position", pos.ID, "error", err.Error())
	}

	pnlPct := 0.0
	if pos.AvgEntryPrice > 0 {
		pnlPct = (price - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
	}
	tracker.RecordTrade(pnlPct)

	agent.TotalTrades++
	if realized > 0 {
		agent.WinningTrades++
	}
	agent.TotalPnl += realized
	if agent.TotalTrades > 0 {
		agent.WinRate = float64(agent.WinningTrades) / float64(agent.TotalTrades) * 100
	}
	if err := r.store.UpdateAgent(ctx, agent); err != nil {
		return true, fmt.Errorf("update agent totals: %w", err)
	}

	if realized < 0 {
		r.gate.NoteLoss(agent.ID, pos.Chain+":"+pos.TokenAddress)
		if tracker.LossStreak() >= 3 {
			r.gate.StartCooldown(ctx, agent.ID, 10)
		}
	}

	r.bus.PublishAgentTrade(agent.ID, "sell", pos.TokenSymbol, sellSize, price, pnl)
	return true, nil
}

func (r *Runner) executeBuy(ctx context.Context, agent *database.AgentConfig, tracker *AgentTracker, decision *llm.Decision, target *signals.TokenSignal, positions []database.AgentPosition, cycleSignals []*signals.TokenSignal) error {
	strategy := signals.Strategy(agent.Strategy)

	result := r.gate.Apply(&GateInput{
		Agent:      agent,
		Strategy:   strategy,
		Target:     target,
		Amount:     decision.Amount,
		Positions:  positions,
		Thresholds: tracker.EntryThresholds(strategy),
	}, cycleSignals)
	if result.Blocked {
		_ = r.store.CreateLog(ctx, &database.AgentLog{
			AgentID:     agent.ID,
			Action:      "blocked",
			Decision:    result.Reason,
			TokenSymbol: target.Symbol,
			Confidence:  decision.Confidence,
			SignalScore: target.OverallSignalScore,
		})
		r.bus.PublishAgentUpdate(agent.ID, map[string]interface{}{"decision": "hold", "blocked": result.Reason})
		return nil
	}

	boost := r.learning.ConvictionBoost(target.Signals, strategy)
	convictionSize := ConvictionSize(target.Conviction+boost, agent.MaxPositionSize, strategy,
		target.Volatility, target.MarketRegime, target.VolumeBreakout, target.WhaleActivity)

	comboMult, _ := r.learning.ComboConfidence(target.Signals, strategy)

	amount := math.Min(result.Amount, convictionSize)
	amount *= tracker.PositionSizeMultiplier()
	amount *= comboMult
	if tracker.LossStreak() >= 2 {
		amount *= 0.5
	}

	if amount < 0.01 {
		amount = 0.01
	}
	if amount > agent.MaxPositionSize {
		amount = agent.MaxPositionSize
	}

	trade := &database.AgentTrade{
		AgentID:      agent.ID,
		Chain:        string(target.Chain),
		TokenAddress: target.TokenAddress,
		TokenSymbol:  target.Symbol,
		Type:         "buy",
		Amount:       amount,
		Price:        target.Price,
		Reason:       decision.Reasoning,
	}

	existing := findPosition(positions, target)
	if existing != nil {
		trade.PositionID = existing.ID
		if err := r.store.CreateTrade(ctx, trade); err != nil {
			return fmt.Errorf("persist buy trade: %w", err)
		}

		// Size-weighted average entry
		newSize := existing.Size + amount
		existing.AvgEntryPrice = (existing.AvgEntryPrice*existing.Size + target.Price*amount) / newSize
		existing.Size = newSize
		existing.CurrentPrice = target.Price
		if target.Price > existing.HighestPrice {
			existing.HighestPrice = target.Price
		}
		if err := r.store.UpdatePosition(ctx, existing); err != nil {
			return fmt.Errorf("increase position: %w", err)
		}
	} else {
		entrySignals := make([]string, 0, len(target.Signals))
		for _, tag := range target.Signals {
			entrySignals = append(entrySignals, string(tag))
		}
		slPct := target.DynamicStopLoss
		if slPct <= 0 {
			slPct = fallbackStopLossPct
		}
		tpPct := target.DynamicTakeProfit
		if tpPct <= 0 {
			tpPct = fallbackTakeProfitPct
		}
		pos := &database.AgentPosition{
			AgentID:         agent.ID,
			Chain:           string(target.Chain),
			TokenAddress:    target.TokenAddress,
			TokenSymbol:     target.Symbol,
			Size:            amount,
			AvgEntryPrice:   target.Price,
			CurrentPrice:    target.Price,
			HighestPrice:    target.Price,
			StopLossPrice:   target.Price * (1 - slPct/100),
			TakeProfitPrice: target.Price * (1 + tpPct/100),
			EntrySignals:    entrySignals,
		}
		if err := r.store.CreatePosition(ctx, pos); err != nil {
			return fmt.Errorf("create position: %w", err)
		}
		trade.PositionID = pos.ID
		if err := r.store.CreateTrade(ctx, trade); err != nil {
			return fmt.Errorf("persist buy trade: %w", err)
		}
	}

	agent.DailyTradesUsed++
	if err := r.store.UpdateAgent(ctx, agent); err != nil {
		return fmt.Errorf("update agent after buy: %w", err)
	}

	r.bus.PublishAgentTrade(agent.ID, "buy", target.Symbol, amount, target.Price, 0)
	return nil
}

// executeOracleSell handles an oracle-proposed sell of a held token
func (r *Runner) executeOracleSell(ctx context.Context, agent *database.AgentConfig, tracker *AgentTracker, decision *llm.Decision, target *signals.TokenSignal, positions []database.AgentPosition) error {
	pos := findPosition(positions, target)
	if pos == nil {
		_ = r.store.CreateLog(ctx, &database.AgentLog{
			AgentID:     agent.ID,
			Action:      "skipped",
			Decision:    "no_position",
			TokenSymbol: decision.TokenSymbol,
		})
		return nil
	}

	sellSize := decision.Amount
	if sellSize <= 0 || sellSize > pos.Size {
		sellSize = pos.Size
	}

	pos.CurrentPrice = target.Price
	if target.Price > pos.HighestPrice {
		pos.HighestPrice = target.Price
	}

	reason := decision.Reasoning
	if reason == "" {
		reason = "Oracle sell"
	}
	_, err := r.executeSell(ctx, agent, tracker, pos, sellSize, target.Price, reason, false)
	return err
}

func findPosition(positions []database.AgentPosition, t *signals.TokenSignal) *database.AgentPosition {
	for i := range positions {
		if positions[i].TokenAddress == t.TokenAddress && positions[i].Chain == string(t.Chain) {
			return &positions[i]
		}
	}
	// Fall back to symbol match for oracle sells that omit the address
	for i := range positions {
		if positions[i].TokenSymbol == t.Symbol {
			return &positions[i]
		}
	}
	return nil
}
