package signals

import (
	"math"

	"dex-agent-bot/internal/indicators"
	"dex-agent-bot/internal/market"
)

// Sub-score ladders and auxiliary classifiers. Every score lands in
// [0,100]; callers rely on that and never re-clamp.

// computeMomentumScore ladders 1h and 24h price change, nudged by trend
// strength when bar history exists.
func computeMomentumScore(change1h, change24h float64, tech *indicators.TechnicalIndicators) float64 {
	score := 50.0

	switch {
	case change1h >= 25:
		score += 30
	case change1h >= 12:
		score += 22
	case change1h >= 5:
		score += 14
	case change1h >= 1:
		score += 6
	case change1h <= -20:
		score -= 30
	case change1h <= -10:
		score -= 20
	case change1h <= -4:
		score -= 10
	}

	switch {
	case change24h >= 80:
		score += 15
	case change24h >= 30:
		score += 10
	case change24h >= 10:
		score += 5
	case change24h <= -40:
		score -= 15
	case change24h <= -15:
		score -= 8
	}

	if tech != nil && tech.BarCount >= 10 {
		score += (tech.TrendStrength - 50) * 0.2
	}

	return clampScore(score)
}

// computeVolumeScore ladders the 24h volume / market cap ratio. Unknown
// market cap yields the fixed floor of 15.
func computeVolumeScore(volume24h, marketCap float64) float64 {
	if marketCap <= 0 {
		return 15
	}
	ratio := volume24h / marketCap
	switch {
	case ratio >= 2.0:
		return 100
	case ratio >= 1.0:
		return 90
	case ratio >= 0.5:
		return 78
	case ratio >= 0.25:
		return 65
	case ratio >= 0.10:
		return 50
	case ratio >= 0.05:
		return 38
	case ratio >= 0.01:
		return 25
	default:
		return 12
	}
}

// computeBuyPressureScore is the transaction buy ratio as a percentage,
// 50 when there were no transactions
func computeBuyPressureScore(buys, sells int) float64 {
	total := buys + sells
	if total <= 0 {
		return 50
	}
	return math.Round(float64(buys) / float64(total) * 100)
}

// computeLiquidityScore ladders absolute pool liquidity in USD
func computeLiquidityScore(liquidity float64) float64 {
	switch {
	case liquidity >= 1_000_000:
		return 100
	case liquidity >= 500_000:
		return 88
	case liquidity >= 250_000:
		return 75
	case liquidity >= 100_000:
		return 62
	case liquidity >= 50_000:
		return 48
	case liquidity >= 20_000:
		return 32
	case liquidity >= 5_000:
		return 18
	default:
		return 8
	}
}

// computeRugRiskScore sums independent risk contributions: thin pools,
// few holders, poor liquidity-to-mcap backing, concentrated or dev-heavy
// holdings, low safety audits and fresh launches.
func computeRugRiskScore(liquidity, marketCap float64, safety *market.SafetyReport, ageHours float64) float64 {
	risk := 0.0

	switch {
	case liquidity < 5_000:
		risk += 30
	case liquidity < 20_000:
		risk += 20
	case liquidity < 50_000:
		risk += 10
	}

	if marketCap > 0 && liquidity > 0 {
		backing := liquidity / marketCap
		switch {
		case backing < 0.02:
			risk += 20
		case backing < 0.05:
			risk += 10
		}
	}

	if safety != nil {
		switch {
		case safety.HolderCount > 0 && safety.HolderCount < 100:
			risk += 20
		case safety.HolderCount > 0 && safety.HolderCount < 500:
			risk += 10
		}
		switch {
		case safety.TopHolderPercent > 40:
			risk += 20
		case safety.TopHolderPercent > 25:
			risk += 10
		}
		switch {
		case safety.DevHoldingPercent > 20:
			risk += 15
		case safety.DevHoldingPercent > 10:
			risk += 8
		}
		switch {
		case safety.SafetyScore > 0 && safety.SafetyScore < 30:
			risk += 20
		case safety.SafetyScore > 0 && safety.SafetyScore < 50:
			risk += 10
		}
	} else {
		// No report at all is itself a risk factor
		risk += 15
	}

	if ageHours > 0 && ageHours < 1 {
		risk += 15
	}

	return clampScore(risk)
}

// computeSmartMoneyScore blends visibility flags, transaction skew and
// the tracked-wallet signal into one 0-100 reading
func computeSmartMoneyScore(t *TokenSignal, sm *market.SmartMoneySignal) float64 {
	score := 40.0

	if t.Trending {
		score += 8
	}
	if t.Boosted {
		score += 5
	}

	total := t.Buys + t.Sells
	if total > 0 {
		ratio := float64(t.Buys) / float64(total)
		score += (ratio - 0.5) * 40
	}

	if t.Volume24h > 500_000 {
		score += 8
	} else if t.Volume24h > 100_000 {
		score += 4
	}
	if t.Holders > 5000 {
		score += 5
	}

	switch t.WhaleActivity {
	case WhaleAccumulating:
		score += 12
	case WhaleDistributing:
		score -= 15
	}

	if sm != nil {
		score += (sm.WhaleAccumulationScore - 50) * 0.4
		if sm.NetFlow > 0 {
			score += 5
		} else if sm.NetFlow < 0 {
			score -= 5
		}
	}

	return clampScore(score)
}

// computeSocialScore blends galaxy score, sentiment, spikes, influencer
// mentions and alt rank. No signal reads neutral.
func computeSocialScore(s *market.SocialSignal) float64 {
	if s == nil {
		return 50
	}

	score := 0.0
	score += clampScore(s.GalaxyScore) * 0.4
	score += s.Sentiment * 100 * 0.35

	if s.SocialSpike {
		score += 10
	}
	switch {
	case s.InfluencerMentions >= 10:
		score += 10
	case s.InfluencerMentions >= 3:
		score += 5
	}
	if s.AltRank > 0 && s.AltRank <= 100 {
		score += 5
	}

	return clampScore(score)
}

// computeNewsScore maps overall sentiment [-1,+1] onto [0,100], widened
// by high-impact coverage
func computeNewsScore(n *market.NewsSignal) float64 {
	if n == nil {
		return 50
	}
	score := 50 + n.OverallSentiment*40
	if n.HighImpactCount >= 3 {
		// High-impact flow amplifies whichever direction sentiment points
		score += n.OverallSentiment * 10
	}
	return clampScore(score)
}

// computeLiquidityHealth scores a liquidity snapshot: depth, direction of
// change and abnormal volume pressure
func computeLiquidityHealth(snap *market.LiquiditySnapshot) float64 {
	if snap == nil {
		return 50
	}

	score := 50.0
	score += clamp(snap.ChangePercent, -25, 25) * 0.8

	if snap.IsGrowing {
		score += 10
	}
	if snap.IsDraining {
		score -= 20
	}
	if snap.HasAbnormalActivity {
		score -= 15
	}
	if snap.VolumeToLiqRatio > 5 {
		score -= 10
	}

	switch {
	case snap.CurrentLiquidity >= 500_000:
		score += 10
	case snap.CurrentLiquidity < 20_000:
		score -= 10
	}

	return clampScore(score)
}

// computeMomentumAcceleration compares the mean of the last 2 minute
// returns against the mean of the 5 before, in percent. Positive means
// the move is speeding up.
func computeMomentumAcceleration(bars []indicators.PriceBar) float64 {
	rets := minuteReturns(bars)
	if len(rets) < 3 {
		return 0
	}

	recent := rets[len(rets)-2:]
	earlierFrom := len(rets) - 7
	if earlierFrom < 0 {
		earlierFrom = 0
	}
	earlier := rets[earlierFrom : len(rets)-2]
	if len(earlier) == 0 {
		return 0
	}

	return roundTo(mean(recent)-mean(earlier), 2)
}

// computeShortTermMomentum centres 50 on the percent change over the last
// 5 minute bars, 3 points per percent, clamped
func computeShortTermMomentum(bars []indicators.PriceBar) float64 {
	if len(bars) < 2 {
		return 50
	}
	window := bars
	if len(window) > 6 {
		window = window[len(window)-6:]
	}
	first, last := window[0].Close, window[len(window)-1].Close
	if first <= 0 {
		return 50
	}
	pct := (last - first) / first * 100
	return clampScore(50 + 3*pct)
}

// computeVolatility buckets the stddev of the last 10 minute returns onto
// the fixed score ladder
func computeVolatility(bars []indicators.PriceBar) float64 {
	rets := minuteReturns(bars)
	if len(rets) < 3 {
		return 40
	}
	if len(rets) > 10 {
		rets = rets[len(rets)-10:]
	}

	m := mean(rets)
	var sum float64
	for _, r := range rets {
		d := r - m
		sum += d * d
	}
	sd := math.Sqrt(sum / float64(len(rets)))

	switch {
	case sd < 0.3:
		return 10
	case sd < 0.7:
		return 25
	case sd < 1.2:
		return 40
	case sd < 2.0:
		return 55
	case sd < 3.5:
		return 70
	case sd < 6.0:
		return 85
	default:
		return 100
	}
}

// detectVolumeBreakout reports whether the current bar's volume exceeds
// 2.5x the rolling mean of the last 10 non-zero volumes before it
func detectVolumeBreakout(bars []indicators.PriceBar) bool {
	if len(bars) < 4 {
		return false
	}

	current := bars[len(bars)-1].Volume
	if current <= 0 {
		return false
	}

	var sum float64
	var n int
	for i := len(bars) - 2; i >= 0 && n < 10; i-- {
		if bars[i].Volume > 0 {
			sum += bars[i].Volume
			n++
		}
	}
	if n < 3 {
		return false
	}

	return current > 2.5*(sum/float64(n))
}

// classifyWhaleActivity is a rule table over the buy ratio, the
// volume-to-liquidity ratio and the 1h move
func classifyWhaleActivity(buys, sells int, volume, liquidity, change1h float64) WhaleActivity {
	total := buys + sells
	if total < 10 {
		return WhaleNeutral
	}
	ratio := float64(buys) / float64(total)

	volLiq := 0.0
	if liquidity > 0 {
		volLiq = volume / liquidity
	}

	switch {
	case ratio >= 0.70:
		return WhaleAccumulating
	case ratio >= 0.60 && volLiq >= 1.0 && change1h > 0:
		return WhaleAccumulating
	case ratio <= 0.30:
		return WhaleDistributing
	case ratio <= 0.42 && change1h < -5:
		return WhaleDistributing
	default:
		return WhaleNeutral
	}
}

// classifyLifecycle buckets pair age into launch/growth/mature/established
func classifyLifecycle(ageHours float64) LifecyclePhase {
	switch {
	case ageHours > 0 && ageHours < 24:
		return PhaseLaunch
	case ageHours < 24*7:
		return PhaseGrowth
	case ageHours < 24*30:
		return PhaseMature
	default:
		return PhaseEstablished
	}
}

// classifySmartMoneyFlow maps the tracked-wallet signal onto the closed
// flow enum
func classifySmartMoneyFlow(sm *market.SmartMoneySignal) SmartMoneyFlow {
	if sm == nil {
		return SMFlowNeutral
	}
	switch {
	case sm.WhaleAccumulationScore >= 80:
		return SMFlowStrongBuy
	case sm.WhaleAccumulationScore >= 62:
		return SMFlowBuy
	case sm.WhaleAccumulationScore <= 20:
		return SMFlowStrongSell
	case sm.WhaleAccumulationScore <= 38:
		return SMFlowSell
	default:
		return SMFlowNeutral
	}
}

// classifyNews derives the sentiment and impact enums from a news signal
func classifyNews(n *market.NewsSignal) (NewsSentiment, NewsImpact) {
	if n == nil {
		return NewsNeutralSentiment, NewsImpactLow
	}

	sentiment := NewsNeutralSentiment
	if n.OverallSentiment >= 0.2 {
		sentiment = NewsBullish
	} else if n.OverallSentiment <= -0.2 {
		sentiment = NewsBearish
	}

	impact := NewsImpactLow
	switch {
	case n.HighImpactCount >= 3:
		impact = NewsImpactHigh
	case n.HighImpactCount >= 1:
		impact = NewsImpactMedium
	}

	return sentiment, impact
}

// Per-strategy stop loss and take profit bases, percent
var stopLossBase = map[Strategy]float64{
	StrategyConservative: 8,
	StrategyBalanced:     12,
	StrategyAggressive:   18,
	StrategyDegen:        25,
}

var takeProfitBase = map[Strategy]float64{
	StrategyConservative: 18,
	StrategyBalanced:     30,
	StrategyAggressive:   50,
	StrategyDegen:        80,
}

// volatilityMultiplier widens risk bands in choppy tokens and tightens
// them in quiet ones
func volatilityMultiplier(volatility float64) float64 {
	switch {
	case volatility >= 85:
		return 1.6
	case volatility >= 70:
		return 1.35
	case volatility >= 55:
		return 1.15
	case volatility >= 40:
		return 1.0
	default:
		return 0.85
	}
}

// computeDynamicStops derives the strategy stop-loss and take-profit
// percentages for the token's volatility and the market regime
func computeDynamicStops(strategy Strategy, volatility float64, regime MarketRegime) (stopLoss, takeProfit float64) {
	mult := volatilityMultiplier(volatility)

	stopLoss = stopLossBase[strategy] * mult
	takeProfit = takeProfitBase[strategy] * mult

	switch regime {
	case RegimeBull:
		takeProfit *= 1.3
	case RegimeBear:
		takeProfit *= 0.7
	}

	return roundTo(stopLoss, 2), roundTo(takeProfit, 2)
}

// computeOverallScore is the regime-weighted sum of sub-scores plus the
// additive bonus block, clamped to [0,100]
func computeOverallScore(t *TokenSignal, w ScoreWeights) float64 {
	trend := 50.0
	stBonus := 0.0
	if t.Technical != nil {
		trend = t.Technical.TrendStrength
		stBonus = technicalBonus(t.Technical)
	}

	score := t.MomentumScore*w.Momentum +
		t.VolumeScore*w.Volume +
		t.BuyPressureScore*w.BuyPressure +
		t.LiquidityScore*w.Liquidity +
		t.SafetyScore*w.Safety +
		t.SmartMoneyScore*w.SmartMoney +
		(100-t.RugRiskScore)*w.AntiRug +
		t.ShortTermMomentum*w.ShortTermMomentum +
		trend*w.Trend +
		t.SocialSentimentScore*w.Social

	score += stBonus

	switch t.SmartMoneyFlow {
	case SMFlowStrongBuy:
		score += 6
	case SMFlowBuy:
		score += 3
	case SMFlowSell:
		score -= 4
	case SMFlowStrongSell:
		score -= 8
	}

	// News bonus scales with distance from neutral
	score += (t.NewsScore - 50) * 0.1

	switch t.FearGreedBias() {
	case market.BiasBuy:
		score += 3
	case market.BiasSell:
		score -= 3
	}

	if t.LiquidityGrowing {
		score += 3
	}
	if t.LiquidityDraining {
		score -= 6
	}
	if t.LiquidityHealth < 30 {
		score -= 5
	}

	if t.VolumeBreakout {
		score += 4
	}
	if t.Trending {
		score += 2
	}
	if t.Boosted {
		score += 2
	}
	switch t.WhaleActivity {
	case WhaleAccumulating:
		score += 4
	case WhaleDistributing:
		score -= 6
	}

	return roundTo(clampScore(score), 1)
}

// technicalBonus is the additive technical adjustment applied on top of
// the weighted sum
func technicalBonus(tech *indicators.TechnicalIndicators) float64 {
	if tech.BarCount < 10 {
		return 0
	}

	bonus := 0.0

	switch tech.EMATrendAlignment {
	case indicators.AlignmentBullish:
		bonus += 5
	case indicators.AlignmentBearish:
		bonus -= 6
	}

	switch tech.EMACrossover {
	case indicators.CrossoverGolden:
		bonus += 4
	case indicators.CrossoverDeath:
		bonus -= 6
	}

	switch tech.RSIDivergence {
	case indicators.DivergenceBullish:
		bonus += 3
	case indicators.DivergenceBearish:
		bonus -= 4
	}

	if tech.IsPullback {
		bonus += 4
	}
	if tech.IsOverextended {
		bonus -= 5
	}

	if tech.MACDHistogram > 0 && tech.MACDLine > tech.MACDSignal {
		bonus += 2
	} else if tech.MACDHistogram < 0 && tech.MACDLine < tech.MACDSignal {
		bonus -= 2
	}

	return bonus
}

// computeConviction is the additive entry-confidence rubric across every
// sub-score and flag, returned as an integer in [0,100]
func computeConviction(t *TokenSignal) float64 {
	c := 20.0

	switch {
	case t.MomentumScore >= 70:
		c += 18
	case t.MomentumScore >= 55:
		c += 12
	case t.MomentumScore >= 40:
		c += 6
	}

	switch {
	case t.BuyPressureScore >= 70:
		c += 12
	case t.BuyPressureScore >= 55:
		c += 8
	case t.BuyPressureScore <= 30:
		c -= 8
	}

	switch {
	case t.VolumeScore >= 70:
		c += 10
	case t.VolumeScore >= 50:
		c += 6
	}

	if t.LiquidityScore >= 60 {
		c += 6
	}

	switch {
	case t.SafetyScore >= 70:
		c += 8
	case t.SafetyScore < 40:
		c -= 10
	}

	switch {
	case t.SmartMoneyScore >= 70:
		c += 10
	case t.SmartMoneyScore >= 55:
		c += 5
	}

	switch {
	case t.RugRiskScore >= 60:
		c -= 20
	case t.RugRiskScore >= 40:
		c -= 8
	case t.RugRiskScore <= 20:
		c += 6
	}

	switch t.WhaleActivity {
	case WhaleAccumulating:
		c += 8
	case WhaleDistributing:
		c -= 12
	}

	if t.VolumeBreakout {
		c += 6
	}
	if t.Trending {
		c += 4
	}
	if t.Boosted {
		c += 3
	}

	if tech := t.Technical; tech != nil && tech.BarCount >= 10 {
		switch tech.EMATrendAlignment {
		case indicators.AlignmentBullish:
			c += 8
		case indicators.AlignmentBearish:
			c -= 10
		}
		switch tech.EMACrossover {
		case indicators.CrossoverGolden:
			c += 6
		case indicators.CrossoverDeath:
			c -= 10
		}
		switch tech.RSIDivergence {
		case indicators.DivergenceBullish:
			c += 5
		case indicators.DivergenceBearish:
			c -= 6
		}
		if tech.IsPullback {
			c += 6
		}
		if tech.IsOverextended {
			c -= 8
		}
		if tech.RSI14 >= 40 && tech.RSI14 <= 65 {
			c += 4
		} else if tech.RSI14 > 80 {
			c -= 6
		}
		switch {
		case tech.TrendStrength >= 70:
			c += 6
		case tech.TrendStrength <= 30:
			c -= 6
		}
	}

	switch {
	case t.ShortTermMomentum >= 65:
		c += 5
	case t.ShortTermMomentum <= 30:
		c -= 5
	}

	if t.SocialSentimentScore >= 65 {
		c += 4
	}
	switch {
	case t.NewsScore >= 65:
		c += 4
	case t.NewsScore <= 35:
		c -= 4
	}

	if t.LiquidityDraining {
		c -= 8
	}
	if t.LiquidityGrowing {
		c += 4
	}

	switch t.FearGreedBias() {
	case market.BiasBuy:
		c += 3
	case market.BiasSell:
		c -= 3
	}

	return clampScore(math.Round(c))
}

// FearGreedBias maps the numeric fear & greed value carried on the signal
// back onto the trading bias enum
func (t *TokenSignal) FearGreedBias() market.Bias {
	switch {
	case t.FearGreedValue <= 25:
		return market.BiasBuy
	case t.FearGreedValue >= 75:
		return market.BiasSell
	default:
		return market.BiasHold
	}
}

// emitTags produces the categorical tag set for a fully scored token.
// Thresholds are fixed per tag; the vocabulary is closed.
func emitTags(t *TokenSignal, marketFlow market.FlowDirection) []Tag {
	tags := make([]Tag, 0, 16)
	add := func(tag Tag) { tags = append(tags, tag) }

	switch {
	case t.PriceChange24 >= 50:
		add(TagStrongUptrend)
	case t.PriceChange24 >= 20:
		add(TagUptrend)
	case t.PriceChange24 >= 8:
		add(TagMildUptrend)
	case t.PriceChange24 <= -30:
		add(TagStrongDowntrend)
	case t.PriceChange24 <= -12:
		add(TagDowntrend)
	}

	switch {
	case t.VolumeScore >= 85:
		add(TagHighVolumeSurge)
	case t.VolumeScore >= 62:
		add(TagAboveAvgVolume)
	case t.VolumeScore <= 25:
		add(TagLowVolume)
	}

	switch {
	case t.BuyPressureScore >= 75:
		add(TagStrongBuyPressure)
	case t.BuyPressureScore >= 62:
		add(TagBuyPressure)
	case t.BuyPressureScore <= 25:
		add(TagHeavySellPressure)
	case t.BuyPressureScore <= 38:
		add(TagSellPressure)
	}

	if t.Liquidity >= 500_000 {
		add(TagDeepLiquidity)
	} else if t.Liquidity > 0 && t.Liquidity < 20_000 {
		add(TagLowLiquidityRisk)
	}

	if t.Trending {
		add(TagTrending)
	}
	if t.Boosted {
		add(TagBoosted)
	}

	switch {
	case t.SafetyScore >= 80:
		add(TagHighSafety)
	case t.SafetyScore < 40:
		add(TagSafetyRisk)
	}

	// Same concentration threshold the rug-risk ladder penalizes hardest
	if t.TopHolderPercent > 40 {
		add(TagWhaleConcentration)
	}

	switch {
	case t.PriceChange1h <= -25:
		add(TagFlashCrash)
	case t.PriceChange1h <= -12:
		add(TagSharpDrop)
	case t.PriceChange1h >= 40:
		add(TagParabolic)
	case t.PriceChange1h >= 15 && t.VolumeScore >= 60:
		add(TagBreakout)
	}

	switch {
	case t.RugRiskScore >= 65:
		add(TagHighRugRisk)
	case t.RugRiskScore >= 45:
		add(TagModerateRugRisk)
	}

	switch {
	case t.SmartMoneyScore >= 75:
		add(TagSmartMoneyInflow)
	case t.SmartMoneyScore >= 60:
		add(TagSmartMoneyInterest)
	}

	switch {
	case t.MomentumAcceleration > 2:
		add(TagMomentumAccelerating)
	case t.MomentumAcceleration < -2:
		add(TagMomentumDecelerating)
	}

	if t.Liquidity > 0 && t.Volume24h > 5*t.Liquidity {
		add(TagVolumeExceedsLiquidity)
	}

	switch {
	case t.Conviction >= 75:
		add(TagHighConviction)
	case t.Conviction >= 60:
		add(TagModerateConviction)
	}

	if t.VolumeBreakout {
		add(TagVolumeBreakout)
	}
	switch t.WhaleActivity {
	case WhaleAccumulating:
		add(TagWhaleAccumulating)
	case WhaleDistributing:
		add(TagWhaleDistributing)
	}

	switch {
	case t.ShortTermMomentum >= 70:
		add(TagShortTermBullish)
	case t.ShortTermMomentum <= 30:
		add(TagShortTermBearish)
	}

	switch {
	case t.Volatility >= 85:
		add(TagExtremeVolatility)
	case t.Volatility >= 70:
		add(TagHighVolatility)
	}

	switch t.LifecyclePhase {
	case PhaseLaunch:
		add(TagNewLaunch)
	case PhaseGrowth:
		add(TagGrowthPhase)
	}

	if tech := t.Technical; tech != nil && tech.BarCount >= 10 {
		switch tech.EMATrendAlignment {
		case indicators.AlignmentBullish:
			add(TagEMABullishAligned)
		case indicators.AlignmentBearish:
			add(TagEMABearishAligned)
		}
		switch tech.EMACrossover {
		case indicators.CrossoverGolden:
			add(TagGoldenCross)
		case indicators.CrossoverDeath:
			add(TagDeathCross)
		}
		switch {
		case tech.RSI14 >= 80:
			add(TagRSIOverbought)
		case tech.RSI14 >= 70:
			add(TagRSIHigh)
		case tech.RSI14 <= 20:
			add(TagRSIOversold)
		case tech.RSI14 <= 30:
			add(TagRSILow)
		}
		switch tech.RSIDivergence {
		case indicators.DivergenceBullish:
			add(TagRSIBullishDivergence)
		case indicators.DivergenceBearish:
			add(TagRSIBearishDivergence)
		}
		if tech.IsOverextended {
			add(TagOverextended)
		}
		if tech.IsPullback {
			add(TagPullbackEntry)
		}
		if tech.MACDHistogram > 0 && tech.MACDLine > tech.MACDSignal {
			add(TagMACDBullish)
		} else if tech.MACDHistogram < 0 && tech.MACDLine < tech.MACDSignal {
			add(TagMACDBearish)
		}
		switch {
		case tech.TrendStrength >= 75:
			add(TagStrongTrend)
		case tech.TrendStrength <= 25:
			add(TagWeakTrend)
		}
	}

	if t.SocialSentimentScore >= 70 {
		add(TagSocialBuzzHigh)
	}
	switch {
	case t.SocialSentimentScore >= 65:
		add(TagSocialPositive)
	case t.SocialSentimentScore <= 35:
		add(TagSocialNegative)
	}
	if t.SocialSpike {
		add(TagSocialSpike)
	}

	switch t.SmartMoneyFlow {
	case SMFlowStrongBuy:
		add(TagSmartMoneyStrongBuy)
	case SMFlowBuy:
		add(TagSmartMoneyBuy)
	case SMFlowSell:
		add(TagSmartMoneySell)
	case SMFlowStrongSell:
		add(TagSmartMoneyStrongSell)
	}

	switch {
	case t.NewsScore >= 75 && t.NewsImpact == NewsImpactHigh:
		add(TagNewsMajorBullish)
	case t.NewsSentiment == NewsBullish:
		add(TagNewsBullish)
	case t.NewsScore <= 25 && t.NewsImpact == NewsImpactHigh:
		add(TagNewsMajorBearish)
	case t.NewsSentiment == NewsBearish:
		add(TagNewsBearish)
	}

	switch {
	case t.FearGreedValue <= 10:
		add(TagExtremeFear)
	case t.FearGreedValue <= 25:
		add(TagMarketFear)
	case t.FearGreedValue >= 90:
		add(TagExtremeGreed)
	case t.FearGreedValue >= 75:
		add(TagMarketGreed)
	}

	if t.LiquidityDraining {
		add(TagLiquidityDraining)
	}
	if t.LiquidityGrowing {
		add(TagLiquidityGrowing)
	}
	if t.LiquidityHealth < 25 {
		add(TagLiquidityCritical)
	}

	switch marketFlow {
	case market.FlowOutflow:
		add(TagMarketLiquidityOutflow)
	case market.FlowInflow:
		add(TagMarketLiquidityInflow)
	}

	return tags
}

// minuteReturns converts consecutive bar closes into percent returns
func minuteReturns(bars []indicators.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		out = append(out, (bars[i].Close-prev)/prev*100)
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v float64) float64 {
	return clamp(v, 0, 100)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
