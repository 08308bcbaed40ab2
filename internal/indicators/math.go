package indicators

import "math"

// wilderRSI computes RSI with Wilder's smoothing: the first `period`
// deltas seed the gain/loss averages, later deltas are folded in as
// avg = (avg*(period-1) + x) / period. All-gain input returns 100.
func wilderRSI(closes []float64, period int) float64 {
	if len(closes) < 2 {
		return 50
	}

	deltas := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas = append(deltas, closes[i]-closes[i-1])
	}

	seed := period
	if len(deltas) < seed {
		seed = len(deltas)
	}

	var gains, losses float64
	for _, d := range deltas[:seed] {
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(seed)
	avgLoss := losses / float64(seed)

	p := float64(period)
	for _, d := range deltas[seed:] {
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// emaSeries returns the full EMA series over values, seeded with the
// first value, alpha = 2/(period+1)
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// macdSeries returns MACD line, signal and histogram series over closes
// (EMA12 - EMA26, signal = EMA9 of the line)
func macdSeries(closes []float64) (line, signal, histogram []float64) {
	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)

	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = ema12[i] - ema26[i]
	}

	signal = emaSeries(line, 9)

	histogram = make([]float64, len(closes))
	for i := range closes {
		histogram[i] = line[i] - signal[i]
	}
	return line, signal, histogram
}

// wilderATR computes ATR over bars with Wilder's smoothing. The true
// range for a bar also spans the gap from the previous close.
func wilderATR(bars []PriceBar, period int) float64 {
	if len(bars) < 2 {
		return 0
	}

	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		high, low, prevClose := bars[i].High, bars[i].Low, bars[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}

	seed := period
	if len(trs) < seed {
		seed = len(trs)
	}

	var sum float64
	for _, tr := range trs[:seed] {
		sum += tr
	}
	atr := sum / float64(seed)

	p := float64(period)
	for _, tr := range trs[seed:] {
		atr = (atr*(p-1) + tr) / p
	}
	return atr
}

// rsiPrefixSeries computes RSI over rolling prefixes of closes, giving
// one RSI value per close from index `from` on. Used for divergence.
func rsiPrefixSeries(closes []float64, period, from int) []float64 {
	if from < 2 {
		from = 2
	}
	out := make([]float64, 0, len(closes)-from)
	for i := from; i <= len(closes); i++ {
		out = append(out, wilderRSI(closes[:i], period))
	}
	return out
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
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
