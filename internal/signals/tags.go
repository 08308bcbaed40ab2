package signals

// Tag is a categorical token signal from the closed vocabulary. Tags are
// the unit the adaptive learning store keys win/loss stats on, so the set
// must stay closed: new tags dilute learned history.
type Tag string

const (
	TagStrongUptrend   Tag = "STRONG_UPTREND"
	TagUptrend         Tag = "UPTREND"
	TagMildUptrend     Tag = "MILD_UPTREND"
	TagStrongDowntrend Tag = "STRONG_DOWNTREND"
	TagDowntrend       Tag = "DOWNTREND"

	TagHighVolumeSurge Tag = "HIGH_VOLUME_SURGE"
	TagAboveAvgVolume  Tag = "ABOVE_AVG_VOLUME"
	TagLowVolume       Tag = "LOW_VOLUME"

	TagStrongBuyPressure Tag = "STRONG_BUY_PRESSURE"
	TagBuyPressure       Tag = "BUY_PRESSURE"
	TagHeavySellPressure Tag = "HEAVY_SELL_PRESSURE"
	TagSellPressure      Tag = "SELL_PRESSURE"

	TagDeepLiquidity    Tag = "DEEP_LIQUIDITY"
	TagLowLiquidityRisk Tag = "LOW_LIQUIDITY_RISK"

	TagTrending   Tag = "TRENDING"
	TagBoosted    Tag = "BOOSTED"
	TagHighSafety Tag = "HIGH_SAFETY"
	TagSafetyRisk Tag = "SAFETY_RISK"

	TagFlashCrash Tag = "FLASH_CRASH"
	TagSharpDrop  Tag = "SHARP_DROP"
	TagParabolic  Tag = "PARABOLIC"
	TagBreakout   Tag = "BREAKOUT"

	TagHighRugRisk     Tag = "HIGH_RUG_RISK"
	TagModerateRugRisk Tag = "MODERATE_RUG_RISK"

	TagSmartMoneyInflow   Tag = "SMART_MONEY_INFLOW"
	TagSmartMoneyInterest Tag = "SMART_MONEY_INTEREST"

	TagMomentumAccelerating Tag = "MOMENTUM_ACCELERATING"
	TagMomentumDecelerating Tag = "MOMENTUM_DECELERATING"

	TagWhaleConcentration     Tag = "WHALE_CONCENTRATION"
	TagVolumeExceedsLiquidity Tag = "VOLUME_EXCEEDS_LIQUIDITY"

	TagHighConviction     Tag = "HIGH_CONVICTION"
	TagModerateConviction Tag = "MODERATE_CONVICTION"

	TagVolumeBreakout    Tag = "VOLUME_BREAKOUT"
	TagWhaleAccumulating Tag = "WHALE_ACCUMULATING"
	TagWhaleDistributing Tag = "WHALE_DISTRIBUTING"

	TagShortTermBullish Tag = "SHORT_TERM_BULLISH"
	TagShortTermBearish Tag = "SHORT_TERM_BEARISH"

	TagExtremeVolatility Tag = "EXTREME_VOLATILITY"
	TagHighVolatility    Tag = "HIGH_VOLATILITY"

	TagNewLaunch   Tag = "NEW_LAUNCH"
	TagGrowthPhase Tag = "GROWTH_PHASE"

	TagEMABullishAligned Tag = "EMA_BULLISH_ALIGNED"
	TagEMABearishAligned Tag = "EMA_BEARISH_ALIGNED"
	TagGoldenCross       Tag = "GOLDEN_CROSS"
	TagDeathCross        Tag = "DEATH_CROSS"

	TagRSIOverbought Tag = "RSI_OVERBOUGHT"
	TagRSIHigh       Tag = "RSI_HIGH"
	TagRSIOversold   Tag = "RSI_OVERSOLD"
	TagRSILow        Tag = "RSI_LOW"

	TagRSIBullishDivergence Tag = "RSI_BULLISH_DIVERGENCE"
	TagRSIBearishDivergence Tag = "RSI_BEARISH_DIVERGENCE"

	TagOverextended  Tag = "OVEREXTENDED"
	TagPullbackEntry Tag = "PULLBACK_ENTRY"

	TagMACDBullish Tag = "MACD_BULLISH"
	TagMACDBearish Tag = "MACD_BEARISH"

	TagStrongTrend Tag = "STRONG_TREND"
	TagWeakTrend   Tag = "WEAK_TREND"

	TagSocialBuzzHigh Tag = "SOCIAL_BUZZ_HIGH"
	TagSocialPositive Tag = "SOCIAL_POSITIVE"
	TagSocialNegative Tag = "SOCIAL_NEGATIVE"
	TagSocialSpike    Tag = "SOCIAL_SPIKE"

	TagSmartMoneyStrongBuy  Tag = "SMART_MONEY_STRONG_BUY"
	TagSmartMoneyBuy        Tag = "SMART_MONEY_BUY"
	TagSmartMoneySell       Tag = "SMART_MONEY_SELL"
	TagSmartMoneyStrongSell Tag = "SMART_MONEY_STRONG_SELL"

	TagNewsMajorBullish Tag = "NEWS_MAJOR_BULLISH"
	TagNewsBullish      Tag = "NEWS_BULLISH"
	TagNewsBearish      Tag = "NEWS_BEARISH"
	TagNewsMajorBearish Tag = "NEWS_MAJOR_BEARISH"

	TagExtremeFear  Tag = "EXTREME_FEAR"
	TagMarketFear   Tag = "MARKET_FEAR"
	TagExtremeGreed Tag = "EXTREME_GREED"
	TagMarketGreed  Tag = "MARKET_GREED"

	TagLiquidityDraining     Tag = "LIQUIDITY_DRAINING"
	TagLiquidityGrowing      Tag = "LIQUIDITY_GROWING"
	TagLiquidityCritical     Tag = "LIQUIDITY_CRITICAL"
	TagMarketLiquidityOutflow Tag = "MARKET_LIQUIDITY_OUTFLOW"
	TagMarketLiquidityInflow  Tag = "MARKET_LIQUIDITY_INFLOW"
)
