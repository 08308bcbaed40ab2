package autopilot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"dex-agent-bot/internal/ai/llm"
	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/events"
	"dex-agent-bot/internal/learning"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"
)

// fakeStore is an in-memory database.Store for runner tests
type fakeStore struct {
	mu        sync.Mutex
	agents    map[string]*database.AgentConfig
	positions map[string]*database.AgentPosition
	trades    []database.AgentTrade
	logs      []database.AgentLog
	promo     bool
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agents:    make(map[string]*database.AgentConfig),
		positions: make(map[string]*database.AgentPosition),
		promo:     true,
	}
}

func (f *fakeStore) ListActiveAgents(ctx context.Context) ([]database.AgentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.AgentConfig
	for _, a := range f.agents {
		if a.Status == "running" {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAgent(ctx context.Context, id string) (*database.AgentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.agents[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateAgent(ctx context.Context, agent *database.AgentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *agent
	f.agents[agent.ID] = &cp
	return nil
}

func (f *fakeStore) ResetDailyTrades(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agents {
		a.DailyTradesUsed = 0
	}
	return nil
}

func (f *fakeStore) ListOpenPositions(ctx context.Context, agentID string) ([]database.AgentPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.AgentPosition
	for _, p := range f.positions {
		if p.AgentID == agentID && p.Status != "closed" {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPosition(ctx context.Context, id string) (*database.AgentPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.positions[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreatePosition(ctx context.Context, pos *database.AgentPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if pos.ID == "" {
		pos.ID = fmt.Sprintf("pos-%d", f.nextID)
	}
	pos.OpenedAt = time.Now()
	cp := *pos
	f.positions[pos.ID] = &cp
	return nil
}

func (f *fakeStore) UpdatePosition(ctx context.Context, pos *database.AgentPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *pos
	f.positions[pos.ID] = &cp
	return nil
}

func (f *fakeStore) ClosePosition(ctx context.Context, id string, exitPrice, realizedPnl float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.positions[id]; ok {
		p.Status = "closed"
		p.ExitPrice = exitPrice
		p.RealizedPnl = realizedPnl
	}
	return nil
}

func (f *fakeStore) CreateTrade(ctx context.Context, trade *database.AgentTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if trade.ID == "" {
		trade.ID = fmt.Sprintf("trade-%d", f.nextID)
	}
	f.trades = append(f.trades, *trade)
	return nil
}

func (f *fakeStore) CreateLog(ctx context.Context, log *database.AgentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeStore) ListTrades(ctx context.Context, agentID string, limit int) ([]database.AgentTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.AgentTrade
	for i := len(f.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if f.trades[i].AgentID == agentID {
			out = append(out, f.trades[i])
		}
	}
	return out, nil
}

func (f *fakeStore) AllSignalPerformance(ctx context.Context) ([]database.SignalPerformance, error) {
	return nil, nil
}

func (f *fakeStore) UpsertSignalPerformance(ctx context.Context, signal, strategy string, won bool, pnlPct float64) error {
	return nil
}

func (f *fakeStore) TokenSafetyReport(ctx context.Context, chain, tokenAddress string) (*database.SafetyRecord, error) {
	return nil, nil
}

func (f *fakeStore) HasActivePromoAccess(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.promo, nil
}

func (f *fakeStore) ActiveSubscription(ctx context.Context, userID string) (*database.Subscription, error) {
	return nil, nil
}

func (f *fakeStore) SubscriptionIncludingGrace(ctx context.Context, userID string) (*database.Subscription, error) {
	return nil, nil
}

func (f *fakeStore) UserIDForWallet(ctx context.Context, walletAddress string) (string, error) {
	return "", nil
}

func (f *fakeStore) lastLog() *database.AgentLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logs) == 0 {
		return nil
	}
	return &f.logs[len(f.logs)-1]
}

func (f *fakeStore) tradeCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.trades {
		if t.Type == kind {
			n++
		}
	}
	return n
}

func (f *fakeStore) openPositionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.positions {
		if p.Status != "closed" {
			n++
		}
	}
	return n
}

// fakeBuilder serves a fixed signal list
type fakeBuilder struct {
	signals []*signals.TokenSignal
	breadth signals.MarketBreadth
}

func (f *fakeBuilder) Build(ctx context.Context, chain string, strategy signals.Strategy) ([]*signals.TokenSignal, error) {
	return f.signals, nil
}

func (f *fakeBuilder) LastBreadth() signals.MarketBreadth { return f.breadth }

// fakeDecider returns a scripted decision
type fakeDecider struct {
	decision *llm.Decision
}

func (f *fakeDecider) Decide(ctx context.Context, req *llm.DecisionRequest) *llm.Decision {
	if f.decision == nil {
		return llm.HoldDecision("scripted hold")
	}
	return f.decision
}

func strongSignal() *signals.TokenSignal {
	return &signals.TokenSignal{
		Chain:              "solana",
		TokenAddress:       "tokA",
		Symbol:             "TOKA",
		Price:              2.0,
		Conviction:         70,
		OverallSignalScore: 75,
		MomentumScore:      65,
		BuyPressureScore:   60,
		ShortTermMomentum:  60,
		RugRiskScore:       20,
		DynamicStopLoss:    12,
		DynamicTakeProfit:  30,
		WhaleActivity:      signals.WhaleNeutral,
		MarketRegime:       signals.RegimeNeutral,
		Signals:            []signals.Tag{signals.TagUptrend, signals.TagBuyPressure},
	}
}

func newTestRunner(store database.Store, builder SignalBuilder, decider Decider) *Runner {
	logger := logging.New(&logging.Config{Level: "ERROR"})
	learn := learning.NewStore(nilPersistence{}, logger)
	gate := NewGate(learn, nil)
	return NewRunner(store, builder, decider, gate, NewTrackerSet(), learn,
		events.NewBus(), nil, logger, Options{CyclePeriod: time.Hour, SignalCacheTTL: time.Hour})
}

func runningAgent() *database.AgentConfig {
	return &database.AgentConfig{
		ID:              "agent-1",
		UserID:          "user-1",
		Chain:           "solana",
		Strategy:        "balanced",
		Status:          "running",
		MaxPositionSize: 10,
		MaxDailyTrades:  20,
	}
}

// TestRunnerCleanBuy walks a full buy: decision, gate, conviction sizing,
// persisted trade and opened position
func TestRunnerCleanBuy(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent

	sig := strongSignal()
	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana",
		Amount: 5.0, Confidence: 75, Reasoning: "strong setup",
	}}

	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{sig}}, decider)
	r.runCycle(context.Background())

	if got := store.tradeCount("buy"); got != 1 {
		t.Fatalf("Expected 1 buy trade, got %d", got)
	}
	if got := store.openPositionCount(); got != 1 {
		t.Fatalf("Expected 1 open position, got %d", got)
	}

	// Conviction 70 on max 10 caps at 2.25; the oracle's 5.0 is trimmed
	store.mu.Lock()
	trade := store.trades[len(store.trades)-1]
	store.mu.Unlock()
	if trade.Amount != 2.25 {
		t.Errorf("Sized amount = %v, want 2.25", trade.Amount)
	}

	// Stops are derived from the dynamic percentages at entry
	store.mu.Lock()
	var pos *database.AgentPosition
	for _, p := range store.positions {
		pos = p
	}
	store.mu.Unlock()
	if pos.StopLossPrice != 2.0*(1-0.12) {
		t.Errorf("StopLossPrice = %v, want %v", pos.StopLossPrice, 2.0*0.88)
	}
	if len(pos.EntrySignals) != 2 {
		t.Errorf("EntrySignals = %v, want the two entry tags", pos.EntrySignals)
	}

	updated, _ := store.GetAgent(context.Background(), agent.ID)
	if updated.DailyTradesUsed != 1 {
		t.Errorf("DailyTradesUsed = %d, want 1", updated.DailyTradesUsed)
	}
}

// TestRunnerGateBlocksRiskyBuy checks a rug-risky target never trades
func TestRunnerGateBlocksRiskyBuy(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent

	sig := strongSignal()
	sig.RugRiskScore = 80
	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana", Amount: 1,
	}}

	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{sig}}, decider)
	r.runCycle(context.Background())

	if got := store.tradeCount("buy"); got != 0 {
		t.Fatalf("Blocked buy should not trade, got %d trades", got)
	}
	log := store.lastLog()
	if log == nil || log.Action != "blocked" || log.Decision != "rug_risk" {
		t.Fatalf("Expected a rug_risk block log, got %+v", log)
	}
}

// TestRunnerTierPartialSell checks the profit ladder trims and advances
// the tier counter without closing
func TestRunnerTierPartialSell(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent
	store.positions["pos-1"] = &database.AgentPosition{
		ID: "pos-1", AgentID: agent.ID, Chain: "solana", TokenAddress: "tokA",
		TokenSymbol: "TOKA", Size: 1.0, AvgEntryPrice: 2.0, CurrentPrice: 2.0,
		HighestPrice: 2.0, Status: "open", OpenedAt: time.Now().Add(-time.Hour),
	}

	// +8% puts the balanced ladder on its first tier (25% of TP 30)
	sig := strongSignal()
	sig.Price = 2.16

	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{sig}}, &fakeDecider{})
	r.runCycle(context.Background())

	if got := store.tradeCount("sell"); got != 1 {
		t.Fatalf("Expected 1 tier sell, got %d", got)
	}
	pos, _ := store.GetPosition(context.Background(), "pos-1")
	if pos.Status == "closed" {
		t.Fatal("Tier sell should not close the position")
	}
	if pos.TierCounter != 1 {
		t.Errorf("TierCounter = %d, want 1", pos.TierCounter)
	}
	if pos.Size != 0.75 {
		t.Errorf("Size = %v, want 0.75", pos.Size)
	}
}

// TestRunnerStopLossClosesAndLearns checks a losing close updates the
// agent totals and the tracker
func TestRunnerStopLossClosesAndLearns(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent
	store.positions["pos-1"] = &database.AgentPosition{
		ID: "pos-1", AgentID: agent.ID, Chain: "solana", TokenAddress: "tokA",
		TokenSymbol: "TOKA", Size: 1.0, AvgEntryPrice: 2.0, CurrentPrice: 2.0,
		HighestPrice: 2.0, Status: "open", OpenedAt: time.Now().Add(-time.Hour),
		EntrySignals: []string{"UPTREND"},
	}

	sig := strongSignal()
	sig.Price = 1.7 // -15% against the 12% stop

	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{sig}}, &fakeDecider{})
	r.runCycle(context.Background())

	pos, _ := store.GetPosition(context.Background(), "pos-1")
	if pos.Status != "closed" {
		t.Fatal("Stop loss should close the position")
	}

	updated, _ := store.GetAgent(context.Background(), agent.ID)
	if updated.TotalTrades != 1 || updated.WinningTrades != 0 {
		t.Errorf("Agent totals = %d/%d, want 1/0", updated.TotalTrades, updated.WinningTrades)
	}
	if updated.TotalPnl >= 0 {
		t.Errorf("TotalPnl = %v, want negative", updated.TotalPnl)
	}

	if r.trackers.For(agent.ID).LossStreak() != 1 {
		t.Error("Tracker should record the loss")
	}
}

// TestRunnerDailyCapBlocks checks exhausted agents skip decisions
func TestRunnerDailyCapBlocks(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	agent.MaxDailyTrades = 5
	agent.DailyTradesUsed = 5
	store.agents[agent.ID] = agent

	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana", Amount: 1,
	}}
	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{strongSignal()}}, decider)
	r.runCycle(context.Background())

	if got := store.tradeCount("buy"); got != 0 {
		t.Fatalf("Capped agent should not trade, got %d", got)
	}
	log := store.lastLog()
	if log == nil || log.Decision != "daily_limit" {
		t.Fatalf("Expected a daily_limit log, got %+v", log)
	}
}

// TestRunnerSubscriptionExpiredStopsAgent checks access is enforced
func TestRunnerSubscriptionExpiredStopsAgent(t *testing.T) {
	store := newFakeStore()
	store.promo = false
	agent := runningAgent()
	store.agents[agent.ID] = agent

	r := newTestRunner(store, &fakeBuilder{}, &fakeDecider{})
	r.runCycle(context.Background())

	updated, _ := store.GetAgent(context.Background(), agent.ID)
	if updated.Status != "stopped" {
		t.Fatalf("Agent status = %s, want stopped", updated.Status)
	}
	log := store.lastLog()
	if log == nil || log.Decision != "subscription_expired" {
		t.Fatalf("Expected a subscription_expired log, got %+v", log)
	}
}

// TestRunnerHoldDecision checks holds produce only a decision log
func TestRunnerHoldDecision(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent

	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{strongSignal()}}, &fakeDecider{})
	r.runCycle(context.Background())

	if got := store.tradeCount("buy") + store.tradeCount("sell"); got != 0 {
		t.Fatalf("Hold should not trade, got %d", got)
	}
	log := store.lastLog()
	if log == nil || log.Action != "hold" || log.Decision != "hold" {
		t.Fatalf("Expected a hold decision log, got %+v", log)
	}
}

// TestRunnerOracleSellWithoutPosition checks phantom sells are skipped
func TestRunnerOracleSellWithoutPosition(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent

	decider := &fakeDecider{decision: &llm.Decision{
		Action: "sell", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana",
	}}
	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{strongSignal()}}, decider)
	r.runCycle(context.Background())

	if got := store.tradeCount("sell"); got != 0 {
		t.Fatalf("Sell without a position should be skipped, got %d", got)
	}
	log := store.lastLog()
	if log == nil || log.Decision != "no_position" {
		t.Fatalf("Expected a no_position skip log, got %+v", log)
	}
}

// TestRunnerUnknownTokenSkipped checks decisions naming unknown tokens
// never execute
func TestRunnerUnknownTokenSkipped(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent

	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "GHOST", Amount: 1,
	}}
	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{strongSignal()}}, decider)
	r.runCycle(context.Background())

	if got := store.tradeCount("buy"); got != 0 {
		t.Fatalf("Unknown token should be skipped, got %d trades", got)
	}
	log := store.lastLog()
	if log == nil || log.Decision != "unknown_token" {
		t.Fatalf("Expected an unknown_token skip log, got %+v", log)
	}
}

// TestRunnerScalesIntoExistingPosition checks repeat buys average the entry
func TestRunnerScalesIntoExistingPosition(t *testing.T) {
	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent
	store.positions["pos-1"] = &database.AgentPosition{
		ID: "pos-1", AgentID: agent.ID, Chain: "solana", TokenAddress: "tokA",
		TokenSymbol: "TOKA", Size: 1.0, AvgEntryPrice: 2.1, CurrentPrice: 2.1,
		HighestPrice: 2.1, Status: "open", OpenedAt: time.Now().Add(-time.Minute),
	}

	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana", Amount: 1.0,
	}}
	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{strongSignal()}}, decider)
	r.runCycle(context.Background())

	if got := store.openPositionCount(); got != 1 {
		t.Fatalf("Scaling in should keep one position, got %d", got)
	}
	pos, _ := store.GetPosition(context.Background(), "pos-1")
	if pos.Size != 2.0 {
		t.Errorf("Size = %v, want 2.0", pos.Size)
	}
	if pos.AvgEntryPrice <= 2.0 || pos.AvgEntryPrice >= 2.1 {
		t.Errorf("AvgEntryPrice = %v, want between the two entries", pos.AvgEntryPrice)
	}
}

// TestRunnerConfiguredDefaultStops checks the configured fallback stop
// distances reach entry-time stop prices when the signal carries none
func TestRunnerConfiguredDefaultStops(t *testing.T) {
	defer func() {
		fallbackStopLossPct = 12.0
		fallbackTakeProfitPct = 30.0
	}()

	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent

	sig := strongSignal()
	sig.DynamicStopLoss = 0
	sig.DynamicTakeProfit = 0
	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana",
		Amount: 1, Confidence: 75,
	}}

	logger := logging.New(&logging.Config{Level: "ERROR"})
	learn := learning.NewStore(nilPersistence{}, logger)
	r := NewRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{sig}}, decider,
		NewGate(learn, nil), NewTrackerSet(), learn, events.NewBus(), nil, logger,
		Options{CyclePeriod: time.Hour, SignalCacheTTL: time.Hour,
			DefaultStopLossPct: 20, DefaultTakeProfitPct: 40})
	r.runCycle(context.Background())

	store.mu.Lock()
	var pos *database.AgentPosition
	for _, p := range store.positions {
		pos = p
	}
	store.mu.Unlock()
	if pos == nil {
		t.Fatal("Expected an opened position")
	}
	if pos.StopLossPrice != 2.0*(1-0.20) {
		t.Errorf("StopLossPrice = %v, want %v", pos.StopLossPrice, 2.0*(1-0.20))
	}
	if pos.TakeProfitPrice != 2.0*(1+0.40) {
		t.Errorf("TakeProfitPrice = %v, want %v", pos.TakeProfitPrice, 2.0*(1+0.40))
	}
}

// TestRunnerLogActionVocabulary checks every persisted log action stays
// inside the closed set
func TestRunnerLogActionVocabulary(t *testing.T) {
	valid := map[string]bool{
		"buy": true, "sell": true, "hold": true,
		"blocked": true, "skipped": true, "stopped": true, "error": true,
	}

	store := newFakeStore()
	agent := runningAgent()
	store.agents[agent.ID] = agent
	decider := &fakeDecider{decision: &llm.Decision{
		Action: "buy", TokenSymbol: "TOKA", TokenAddress: "tokA", Chain: "solana",
		Amount: 1, Confidence: 75,
	}}

	r := newTestRunner(store, &fakeBuilder{signals: []*signals.TokenSignal{strongSignal()}}, decider)
	r.runCycle(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.logs) == 0 {
		t.Fatal("Expected at least one persisted log")
	}
	for _, l := range store.logs {
		if !valid[l.Action] {
			t.Errorf("Log action %q outside the closed vocabulary", l.Action)
		}
	}
}

// TestRunnerStartStopIdempotent checks double starts and stops are safe
func TestRunnerStartStopIdempotent(t *testing.T) {
	store := newFakeStore()
	r := newTestRunner(store, &fakeBuilder{}, &fakeDecider{})

	ctx := context.Background()
	r.Start(ctx)
	r.Start(ctx)
	if !r.Running() {
		t.Fatal("Runner should report running after Start")
	}
	r.Stop()
	r.Stop()
	if r.Running() {
		t.Fatal("Runner should report stopped after Stop")
	}
}
