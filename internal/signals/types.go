package signals

import (
	"dex-agent-bot/internal/indicators"
	"dex-agent-bot/internal/market"
)

// Strategy selects an agent's risk appetite
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
	StrategyDegen        Strategy = "degen"
)

// ValidStrategy reports whether s names a known strategy
func ValidStrategy(s string) bool {
	switch Strategy(s) {
	case StrategyConservative, StrategyBalanced, StrategyAggressive, StrategyDegen:
		return true
	}
	return false
}

// WhaleActivity classifies large-holder behavior on a token
type WhaleActivity string

const (
	WhaleAccumulating WhaleActivity = "accumulating"
	WhaleDistributing WhaleActivity = "distributing"
	WhaleNeutral      WhaleActivity = "neutral"
)

// LifecyclePhase classifies token maturity by pair age
type LifecyclePhase string

const (
	PhaseLaunch      LifecyclePhase = "launch"
	PhaseGrowth      LifecyclePhase = "growth"
	PhaseMature      LifecyclePhase = "mature"
	PhaseEstablished LifecyclePhase = "established"
)

// MarketRegime classifies the market-wide environment
type MarketRegime string

const (
	RegimeBull    MarketRegime = "bull"
	RegimeBear    MarketRegime = "bear"
	RegimeNeutral MarketRegime = "neutral"
)

// SmartMoneyFlow classifies tracked-wallet positioning
type SmartMoneyFlow string

const (
	SMFlowStrongBuy  SmartMoneyFlow = "strong_buy"
	SMFlowBuy        SmartMoneyFlow = "buy"
	SMFlowNeutral    SmartMoneyFlow = "neutral"
	SMFlowSell       SmartMoneyFlow = "sell"
	SMFlowStrongSell SmartMoneyFlow = "strong_sell"
)

// NewsSentiment classifies aggregated news tone for a token
type NewsSentiment string

const (
	NewsBullish          NewsSentiment = "bullish"
	NewsBearish          NewsSentiment = "bearish"
	NewsNeutralSentiment NewsSentiment = "neutral"
)

// NewsImpact classifies how market-moving the news flow is
type NewsImpact string

const (
	NewsImpactHigh   NewsImpact = "high"
	NewsImpactMedium NewsImpact = "medium"
	NewsImpactLow    NewsImpact = "low"
)

// LiquidityFlow classifies pool liquidity direction for a token
type LiquidityFlow string

const (
	LiqFlowDraining LiquidityFlow = "draining"
	LiqFlowGrowing  LiquidityFlow = "growing"
	LiqFlowStable   LiquidityFlow = "stable"
)

// TokenSignal is the fully scored decision-surface row for one token in
// one cycle. Instances never outlive the cycle that built them and are
// shared read-only across agents.
type TokenSignal struct {
	// Identity
	Chain        market.Chain `json:"chain"`
	TokenAddress string       `json:"token_address"`
	PairAddress  string       `json:"pair_address"`
	Symbol       string       `json:"symbol"`
	Name         string       `json:"name"`

	// Market facts
	Price            float64 `json:"price"`
	PriceChange1h    float64 `json:"price_change_1h"`
	PriceChange24    float64 `json:"price_change_24h"`
	Volume24h        float64 `json:"volume_24h"`
	MarketCap        float64 `json:"market_cap"`
	Liquidity        float64 `json:"liquidity"`
	Holders          int     `json:"holders"`
	TopHolderPercent float64 `json:"top_holder_percent"`
	Buys             int     `json:"buys"`
	Sells            int     `json:"sells"`
	AgeHours         float64 `json:"age_hours"`

	// Flags
	Trending          bool `json:"trending"`
	Boosted           bool `json:"boosted"`
	VolumeBreakout    bool `json:"volume_breakout"`
	SocialSpike       bool `json:"social_spike"`
	LiquidityDraining bool `json:"liquidity_draining"`
	LiquidityGrowing  bool `json:"liquidity_growing"`

	// Classifications
	WhaleActivity  WhaleActivity  `json:"whale_activity"`
	LifecyclePhase LifecyclePhase `json:"lifecycle_phase"`
	MarketRegime   MarketRegime   `json:"market_regime"`
	SmartMoneyFlow SmartMoneyFlow `json:"smart_money_flow"`
	NewsSentiment  NewsSentiment  `json:"news_sentiment"`
	NewsImpact     NewsImpact     `json:"news_impact"`
	LiquidityFlow  LiquidityFlow  `json:"liquidity_flow"`

	// Scores, all 0..100
	MomentumScore        float64 `json:"momentum_score"`
	VolumeScore          float64 `json:"volume_score"`
	BuyPressureScore     float64 `json:"buy_pressure_score"`
	LiquidityScore       float64 `json:"liquidity_score"`
	SafetyScore          float64 `json:"safety_score"`
	SmartMoneyScore      float64 `json:"smart_money_score"`
	RugRiskScore         float64 `json:"rug_risk_score"`
	Conviction           float64 `json:"conviction"`
	OverallSignalScore   float64 `json:"overall_signal_score"`
	Volatility           float64 `json:"volatility"`
	ShortTermMomentum    float64 `json:"short_term_momentum"`
	MomentumAcceleration float64 `json:"momentum_acceleration"`
	SocialSentimentScore float64 `json:"social_sentiment_score"`
	NewsScore            float64 `json:"news_score"`
	LiquidityHealth      float64 `json:"liquidity_health"`
	FearGreedValue       float64 `json:"fear_greed_value"`

	// Trade parameters derived per strategy
	DynamicStopLoss   float64 `json:"dynamic_stop_loss"`
	DynamicTakeProfit float64 `json:"dynamic_take_profit"`

	// Technicals
	Technical *indicators.TechnicalIndicators `json:"technical"`

	// Categorical tags from the closed vocabulary
	Signals []Tag `json:"signals"`
}

// HasSignal reports whether the tag is present
func (t *TokenSignal) HasSignal(tag Tag) bool {
	for _, s := range t.Signals {
		if s == tag {
			return true
		}
	}
	return false
}

// Key returns the canonical token identity key
func (t *TokenSignal) Key() string {
	return market.TokenKey(t.Chain, t.TokenAddress)
}

// MarketBreadth is the market-wide sample used for regime detection
type MarketBreadth struct {
	SampleSize        int          `json:"sample_size"`
	AvgMomentum       float64      `json:"avg_momentum"`
	AvgBuyPressure    float64      `json:"avg_buy_pressure"`
	PctPositive1h     float64      `json:"pct_positive_1h"`
	AvgRSI            float64      `json:"avg_rsi"`
	AvgTrendStrength  float64      `json:"avg_trend_strength"`
	PctBullishAligned float64      `json:"pct_bullish_aligned"`
	PctBearishAligned float64      `json:"pct_bearish_aligned"`
	PctVolumeUp       float64      `json:"pct_volume_up"`
	BreadthScore      float64      `json:"breadth_score"`
	Regime            MarketRegime `json:"regime"`
}
