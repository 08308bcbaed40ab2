package market

import (
	"fmt"
	"time"
)

// Chain identifies a supported network. The set is closed.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainBSC      Chain = "bsc"
	ChainTron     Chain = "tron"
)

// ValidChain reports whether s names a supported chain
func ValidChain(s string) bool {
	switch Chain(s) {
	case ChainSolana, ChainEthereum, ChainBase, ChainBSC, ChainTron:
		return true
	}
	return false
}

// TokenKey is the canonical token identity: chain plus chain-specific address.
// Symbols are display-only and never used for identity.
func TokenKey(chain Chain, address string) string {
	return fmt.Sprintf("%s:%s", chain, address)
}

// TokenRef identifies the base or quote token of a pair
type TokenRef struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Pair is a live trading pair as reported by the pair source
type Pair struct {
	Chain         Chain    `json:"chain"`
	PairAddress   string   `json:"pair_address"`
	Base          TokenRef `json:"base"`
	Quote         TokenRef `json:"quote"`
	PriceUSD      float64  `json:"price_usd"`
	PriceChange1h float64  `json:"price_change_1h"`
	PriceChange24 float64  `json:"price_change_24h"`
	Volume24h     float64  `json:"volume_24h"`
	Buys24h       int      `json:"buys_24h"`
	Sells24h      int      `json:"sells_24h"`
	LiquidityUSD  float64  `json:"liquidity_usd"`
	MarketCap     float64  `json:"market_cap"`
	PairCreatedAt int64    `json:"pair_created_at"` // epoch ms
	ImageURL      string   `json:"image_url,omitempty"`
	BoostsActive  int      `json:"boosts_active"`
}

// AgeHours returns the pair age in hours, 0 when creation time is unknown
func (p *Pair) AgeHours() float64 {
	if p.PairCreatedAt <= 0 {
		return 0
	}
	return time.Since(time.UnixMilli(p.PairCreatedAt)).Hours()
}

// OHLCVBar is one external candle
type OHLCVBar struct {
	Time   int64   `json:"t"` // epoch ms
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// SmartMoneySignal summarizes tracked top-trader activity for a token
type SmartMoneySignal struct {
	TopTraderBuys          int     `json:"top_trader_buys"`
	TopTraderSells         int     `json:"top_trader_sells"`
	NetFlow                float64 `json:"net_flow"`
	WhaleAccumulationScore float64 `json:"whale_accumulation_score"`
	TopWalletCount         int     `json:"top_wallet_count"`
	AvgWalletWinRate       float64 `json:"avg_wallet_win_rate"`
	AvgWalletPnl           float64 `json:"avg_wallet_pnl"`
}

// SocialSignal is the social-metrics snapshot for a symbol
type SocialSignal struct {
	GalaxyScore        float64 `json:"galaxy_score"`
	AltRank            int     `json:"alt_rank"`
	SocialVolume       float64 `json:"social_volume"`
	Sentiment          float64 `json:"sentiment"` // 0..1
	SocialSpike        bool    `json:"social_spike"`
	InfluencerMentions int     `json:"influencer_mentions"`
}

// NewsSignal is the aggregated news view for a symbol
type NewsSignal struct {
	OverallSentiment float64 `json:"overall_sentiment"` // -1..+1
	HighImpactCount  int     `json:"high_impact_count"`
}

// Bias is the fear/greed trading bias
type Bias string

const (
	BiasBuy  Bias = "buy"
	BiasSell Bias = "sell"
	BiasHold Bias = "hold"
)

// FearGreed is the market-wide fear & greed reading. This is the single
// canonical shape; TradingBias is always a plain Bias value.
type FearGreed struct {
	Value          int    `json:"value"` // 0..100
	Classification string `json:"classification"`
	Trend          string `json:"trend"` // rising, falling, stable
	TradingBias    Bias   `json:"trading_bias"`
}

// LiquiditySnapshot describes current pool liquidity health for a token
type LiquiditySnapshot struct {
	CurrentLiquidity    float64 `json:"current_liquidity"`
	ChangePercent       float64 `json:"change_percent"`
	IsDraining          bool    `json:"is_draining"`
	IsGrowing           bool    `json:"is_growing"`
	VolumeToLiqRatio    float64 `json:"volume_to_liq_ratio"`
	HasAbnormalActivity bool    `json:"has_abnormal_activity"`
}

// FlowDirection is the market-wide liquidity flow classification
type FlowDirection string

const (
	FlowInflow  FlowDirection = "inflow"
	FlowOutflow FlowDirection = "outflow"
	FlowNeutral FlowDirection = "neutral"
)

// SafetyReport carries contract-safety facts for a token (holder
// distribution, dev holdings, audit score)
type SafetyReport struct {
	SafetyScore       float64 `json:"safety_score"` // 0..100
	HolderCount       int     `json:"holder_count"`
	TopHolderPercent  float64 `json:"top_holder_percent"`
	DevHoldingPercent float64 `json:"dev_holding_percent"`
}
