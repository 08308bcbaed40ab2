package signals

import (
	"sort"

	"dex-agent-bot/internal/indicators"
)

const breadthSampleSize = 50

// computeMarketBreadth derives the market-wide regime from a sample of
// the strongest tokens in the cycle. Tokens arrive already scored by the
// first pass; the top 50 by overall score form the sample.
func computeMarketBreadth(tokens []*TokenSignal) MarketBreadth {
	if len(tokens) == 0 {
		return MarketBreadth{BreadthScore: 50, Regime: RegimeNeutral}
	}

	sample := make([]*TokenSignal, len(tokens))
	copy(sample, tokens)
	sort.Slice(sample, func(i, j int) bool {
		return sample[i].OverallSignalScore > sample[j].OverallSignalScore
	})
	if len(sample) > breadthSampleSize {
		sample = sample[:breadthSampleSize]
	}

	var (
		sumMomentum, sumBuyPressure      float64
		sumRSI, sumTrend                 float64
		positive1h, bullish, bearish, up int
		withTech                         int
	)

	for _, t := range sample {
		sumMomentum += t.MomentumScore
		sumBuyPressure += t.BuyPressureScore
		if t.PriceChange1h > 0 {
			positive1h++
		}
		if tech := t.Technical; tech != nil && tech.BarCount >= 10 {
			withTech++
			sumRSI += tech.RSI14
			sumTrend += tech.TrendStrength
			switch tech.EMATrendAlignment {
			case indicators.AlignmentBullish:
				bullish++
			case indicators.AlignmentBearish:
				bearish++
			}
			if tech.VolumeTrend == indicators.VolumeIncreasing {
				up++
			}
		}
	}

	n := float64(len(sample))
	b := MarketBreadth{
		SampleSize:     len(sample),
		AvgMomentum:    roundTo(sumMomentum/n, 1),
		AvgBuyPressure: roundTo(sumBuyPressure/n, 1),
		PctPositive1h:  roundTo(float64(positive1h)/n*100, 1),
	}

	if withTech > 0 {
		tn := float64(withTech)
		b.AvgRSI = roundTo(sumRSI/tn, 1)
		b.AvgTrendStrength = roundTo(sumTrend/tn, 1)
		b.PctBullishAligned = roundTo(float64(bullish)/tn*100, 1)
		b.PctBearishAligned = roundTo(float64(bearish)/tn*100, 1)
		b.PctVolumeUp = roundTo(float64(up)/tn*100, 1)
	} else {
		b.AvgRSI = 50
		b.AvgTrendStrength = 50
	}

	score := 50.0
	score += (b.AvgMomentum - 50) * 0.30
	score += (b.AvgBuyPressure - 50) * 0.20
	score += (b.PctPositive1h - 50) * 0.20
	score += (b.AvgRSI - 50) * 0.15
	score += (b.AvgTrendStrength - 50) * 0.20
	score += (b.PctBullishAligned - b.PctBearishAligned) * 0.15
	if withTech > 0 {
		score += (b.PctVolumeUp - 50) * 0.10
	}

	b.BreadthScore = roundTo(clampScore(score), 1)

	switch {
	case b.BreadthScore >= 68:
		b.Regime = RegimeBull
	case b.BreadthScore <= 32:
		b.Regime = RegimeBear
	default:
		b.Regime = RegimeNeutral
	}

	return b
}
