package signals

// ScoreWeights are the component weights for the overall signal score.
// They sum to at most 1.0; the remainder of the 0-100 range is filled by
// additive bonuses.
type ScoreWeights struct {
	Momentum          float64
	Volume            float64
	BuyPressure       float64
	Liquidity         float64
	Safety            float64
	SmartMoney        float64
	AntiRug           float64
	ShortTermMomentum float64
	Trend             float64
	Social            float64
}

// getAdaptiveWeights returns the regime-tuned weight table. Bull regimes
// lean on momentum and trend; bear regimes lean on liquidity, safety and
// anti-rug defenses.
func getAdaptiveWeights(regime MarketRegime) ScoreWeights {
	switch regime {
	case RegimeBull:
		return ScoreWeights{
			Momentum:          0.17,
			Volume:            0.12,
			BuyPressure:       0.10,
			Liquidity:         0.05,
			Safety:            0.05,
			SmartMoney:        0.12,
			AntiRug:           0.04,
			ShortTermMomentum: 0.05,
			Trend:             0.12,
			Social:            0.10,
		}
	case RegimeBear:
		return ScoreWeights{
			Momentum:          0.11,
			Volume:            0.09,
			BuyPressure:       0.12,
			Liquidity:         0.10,
			Safety:            0.11,
			SmartMoney:        0.10,
			AntiRug:           0.09,
			ShortTermMomentum: 0.04,
			Trend:             0.09,
			Social:            0.07,
		}
	default:
		return ScoreWeights{
			Momentum:          0.16,
			Volume:            0.11,
			BuyPressure:       0.11,
			Liquidity:         0.07,
			Safety:            0.07,
			SmartMoney:        0.11,
			AntiRug:           0.05,
			ShortTermMomentum: 0.04,
			Trend:             0.11,
			Social:            0.09,
		}
	}
}
