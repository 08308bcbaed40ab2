package signals

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dex-agent-bot/internal/indicators"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/market"
)

// SafetySource looks up the stored contract-safety report for a token.
// A nil report is a valid answer.
type SafetySource interface {
	Report(ctx context.Context, chain market.Chain, address string) (*market.SafetyReport, error)
}

// PairObserver receives the live pair list once per build. The
// smart-money and liquidity trackers implement it.
type PairObserver interface {
	Observe(pairs []market.Pair)
}

// Deps are the data-source ports the builder reads through. Pairs is
// required; everything else degrades to neutral defaults when nil.
type Deps struct {
	Pairs      market.PairSource
	OHLCV      market.OHLCVSource
	SmartMoney market.SmartMoneySource
	Social     market.SocialSource
	News       market.NewsSource
	FearGreed  market.FearGreedSource
	Liquidity  market.LiquiditySource
	Safety     SafetySource
	Observers  []PairObserver
}

// Builder turns live pairs plus auxiliary sources into the fully scored
// per-cycle signal list. Safe for concurrent Build calls; the breadth
// snapshot of the latest build is kept for read-back.
type Builder struct {
	deps   Deps
	eng    *indicators.Engine
	logger *logging.Logger

	mu      sync.RWMutex
	breadth MarketBreadth
}

// NewBuilder creates a signal builder around the indicator engine
func NewBuilder(deps Deps, eng *indicators.Engine, logger *logging.Logger) *Builder {
	return &Builder{
		deps:    deps,
		eng:     eng,
		logger:  logger.WithComponent("signals"),
		breadth: MarketBreadth{BreadthScore: 50, Regime: RegimeNeutral},
	}
}

// LastBreadth returns the breadth snapshot from the most recent build
func (b *Builder) LastBreadth() MarketBreadth {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.breadth
}

// Build produces the scored, descending-sorted signal list for one
// (chain, strategy) group. chain "" or "all" means every chain.
//
// Three passes: score every token under neutral weights, derive market
// breadth from the top of that ranking, then rescore everything with the
// regime-adaptive weights.
func (b *Builder) Build(ctx context.Context, chain string, strategy Strategy) ([]*TokenSignal, error) {
	pairs, err := b.deps.Pairs.ListLivePairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live pairs: %w", err)
	}

	if chain != "" && chain != "all" {
		filtered := pairs[:0:0]
		for _, p := range pairs {
			if string(p.Chain) == chain {
				filtered = append(filtered, p)
			}
		}
		pairs = filtered
	}

	for _, obs := range b.deps.Observers {
		obs.Observe(pairs)
	}

	fg := b.fetchFearGreed(ctx)
	marketFlow := b.fetchMarketFlow(ctx)

	// Pass 1: merge and score every token under neutral weights
	tokens := make([]*TokenSignal, 0, len(pairs))
	for i := range pairs {
		t := b.mergeAndScoreToken(ctx, &pairs[i], strategy, fg)
		if t == nil {
			continue
		}
		b.rescoreToken(t, strategy, RegimeNeutral, marketFlow)
		tokens = append(tokens, t)
	}

	// Pass 2: market breadth over the strongest tokens
	breadth := computeMarketBreadth(tokens)
	b.mu.Lock()
	b.breadth = breadth
	b.mu.Unlock()

	// Pass 3: rescore under the regime the breadth implies
	for _, t := range tokens {
		b.rescoreToken(t, strategy, breadth.Regime, marketFlow)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].OverallSignalScore > tokens[j].OverallSignalScore
	})

	return tokens, nil
}

// mergeAndScoreToken seeds identity and market facts from the live pair,
// folds the tick into price history, pulls every auxiliary source and
// computes the regime-independent fields
func (b *Builder) mergeAndScoreToken(ctx context.Context, p *market.Pair, strategy Strategy, fg *market.FearGreed) *TokenSignal {
	if p.PriceUSD <= 0 || p.Base.Address == "" {
		return nil
	}

	key := market.TokenKey(p.Chain, p.Base.Address)
	b.eng.UpdatePriceHistory(key, p.PriceUSD, 0, 0, 0)
	b.backfillBars(ctx, key, p)

	tech := b.eng.Compute(key, p.PriceUSD)
	bars := b.eng.RecentBars(key, 20)

	t := &TokenSignal{
		Chain:         p.Chain,
		TokenAddress:  p.Base.Address,
		PairAddress:   p.PairAddress,
		Symbol:        p.Base.Symbol,
		Name:          p.Base.Name,
		Price:         p.PriceUSD,
		PriceChange1h: p.PriceChange1h,
		PriceChange24: p.PriceChange24,
		Volume24h:     p.Volume24h,
		MarketCap:     p.MarketCap,
		Liquidity:     p.LiquidityUSD,
		Buys:          p.Buys24h,
		Sells:         p.Sells24h,
		AgeHours:      p.AgeHours(),
		Trending:      p.BoostsActive > 0 || p.ImageURL != "",
		Boosted:       p.BoostsActive > 0,
		Technical:     tech,
	}

	// Auxiliaries from the bar history
	t.MomentumAcceleration = computeMomentumAcceleration(bars)
	t.ShortTermMomentum = computeShortTermMomentum(bars)
	t.Volatility = computeVolatility(bars)
	t.VolumeBreakout = detectVolumeBreakout(bars)
	t.WhaleActivity = classifyWhaleActivity(p.Buys24h, p.Sells24h, p.Volume24h, p.LiquidityUSD, p.PriceChange1h)
	t.LifecyclePhase = classifyLifecycle(t.AgeHours)

	safety := b.fetchSafety(ctx, p.Chain, p.Base.Address)
	if safety != nil {
		t.SafetyScore = clampScore(safety.SafetyScore)
		t.Holders = safety.HolderCount
		t.TopHolderPercent = safety.TopHolderPercent
	} else {
		t.SafetyScore = 50
	}

	sm := b.fetchSmartMoney(ctx, p.Chain, p.Base.Address)
	t.SmartMoneyFlow = classifySmartMoneyFlow(sm)

	social := b.fetchSocial(ctx, p.Base.Symbol)
	if social != nil {
		t.SocialSpike = social.SocialSpike
	}

	news := b.fetchNews(ctx, p.Base.Symbol)
	t.NewsSentiment, t.NewsImpact = classifyNews(news)

	liq := b.fetchLiquidity(ctx, p.Chain, p.Base.Address)
	if liq != nil {
		t.LiquidityDraining = liq.IsDraining
		t.LiquidityGrowing = liq.IsGrowing
	}
	switch {
	case t.LiquidityDraining:
		t.LiquidityFlow = LiqFlowDraining
	case t.LiquidityGrowing:
		t.LiquidityFlow = LiqFlowGrowing
	default:
		t.LiquidityFlow = LiqFlowStable
	}

	if fg != nil {
		t.FearGreedValue = float64(fg.Value)
	} else {
		t.FearGreedValue = 50
	}

	// Regime-independent sub-scores
	t.MomentumScore = computeMomentumScore(p.PriceChange1h, p.PriceChange24, tech)
	t.VolumeScore = computeVolumeScore(p.Volume24h, p.MarketCap)
	t.BuyPressureScore = computeBuyPressureScore(p.Buys24h, p.Sells24h)
	t.LiquidityScore = computeLiquidityScore(p.LiquidityUSD)
	t.RugRiskScore = computeRugRiskScore(p.LiquidityUSD, p.MarketCap, safety, t.AgeHours)
	t.SmartMoneyScore = computeSmartMoneyScore(t, sm)
	t.SocialSentimentScore = computeSocialScore(social)
	t.NewsScore = computeNewsScore(news)
	t.LiquidityHealth = computeLiquidityHealth(liq)

	return t
}

// rescoreToken recomputes every regime-dependent field: stops, overall
// score, conviction and the tag set
func (b *Builder) rescoreToken(t *TokenSignal, strategy Strategy, regime MarketRegime, marketFlow market.FlowDirection) {
	t.MarketRegime = regime
	t.DynamicStopLoss, t.DynamicTakeProfit = computeDynamicStops(strategy, t.Volatility, regime)
	t.OverallSignalScore = computeOverallScore(t, getAdaptiveWeights(regime))
	t.Conviction = computeConviction(t)
	t.Signals = emitTags(t, marketFlow)
}

// backfillBars imports external candles when local minute history is too
// thin to compute indicators
func (b *Builder) backfillBars(ctx context.Context, key string, p *market.Pair) {
	if b.deps.OHLCV == nil || b.eng.BarCount(key) >= 30 {
		return
	}

	candles, err := b.deps.OHLCV.FetchOHLCV(ctx, p.Chain, p.PairAddress, "1m")
	if err != nil {
		b.logger.Warn("ohlcv backfill failed", "token", key, "error", err.Error())
		return
	}
	if len(candles) == 0 {
		return
	}

	bars := make([]indicators.PriceBar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, indicators.PriceBar{
			Time:   c.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	b.eng.IngestOHLCV(key, bars)
}

func (b *Builder) fetchSafety(ctx context.Context, chain market.Chain, address string) *market.SafetyReport {
	if b.deps.Safety == nil {
		return nil
	}
	r, err := b.deps.Safety.Report(ctx, chain, address)
	if err != nil {
		b.logger.Warn("safety lookup failed", "chain", string(chain), "address", address, "error", err.Error())
		return nil
	}
	return r
}

func (b *Builder) fetchSmartMoney(ctx context.Context, chain market.Chain, address string) *market.SmartMoneySignal {
	if b.deps.SmartMoney == nil {
		return nil
	}
	s, err := b.deps.SmartMoney.Signal(ctx, address, chain)
	if err != nil {
		b.logger.Warn("smart-money lookup failed", "chain", string(chain), "address", address, "error", err.Error())
		return nil
	}
	return s
}

func (b *Builder) fetchSocial(ctx context.Context, symbol string) *market.SocialSignal {
	if b.deps.Social == nil || symbol == "" {
		return nil
	}
	s, err := b.deps.Social.Social(ctx, symbol)
	if err != nil {
		b.logger.Warn("social lookup failed", "symbol", symbol, "error", err.Error())
		return nil
	}
	return s
}

func (b *Builder) fetchNews(ctx context.Context, symbol string) *market.NewsSignal {
	if b.deps.News == nil || symbol == "" {
		return nil
	}
	n, err := b.deps.News.TokenNews(ctx, symbol)
	if err != nil {
		b.logger.Warn("news lookup failed", "symbol", symbol, "error", err.Error())
		return nil
	}
	return n
}

func (b *Builder) fetchLiquidity(ctx context.Context, chain market.Chain, address string) *market.LiquiditySnapshot {
	if b.deps.Liquidity == nil {
		return nil
	}
	s, err := b.deps.Liquidity.Snapshot(ctx, address, chain)
	if err != nil {
		b.logger.Warn("liquidity lookup failed", "chain", string(chain), "address", address, "error", err.Error())
		return nil
	}
	return s
}

func (b *Builder) fetchFearGreed(ctx context.Context) *market.FearGreed {
	if b.deps.FearGreed == nil {
		return nil
	}
	fg, err := b.deps.FearGreed.Get(ctx)
	if err != nil {
		b.logger.Warn("fear & greed fetch failed", "error", err.Error())
		return nil
	}
	return fg
}

func (b *Builder) fetchMarketFlow(ctx context.Context) market.FlowDirection {
	if b.deps.Liquidity == nil {
		return market.FlowNeutral
	}
	flow, err := b.deps.Liquidity.MarketFlow(ctx)
	if err != nil {
		b.logger.Warn("market flow fetch failed", "error", err.Error())
		return market.FlowNeutral
	}
	return flow
}
