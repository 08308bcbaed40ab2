package indicators

import (
	"sort"
	"sync"
	"time"
)

const minuteMs = int64(60_000)

type tokenHistory struct {
	bars       []PriceBar
	lastUpdate time.Time
}

type cachedIndicators struct {
	value      *TechnicalIndicators
	computedAt time.Time
}

// Engine maintains per-token rolling bar history and a derived-indicator
// cache. Safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	history  map[string]*tokenHistory
	cacheMu  sync.RWMutex
	cache    map[string]cachedIndicators
	maxBars  int
	cacheTTL time.Duration
}

// NewEngine creates an indicator engine. maxBars caps per-token history
// (200 by convention); cacheTTL bounds staleness of derived indicators.
func NewEngine(maxBars int, cacheTTL time.Duration) *Engine {
	if maxBars <= 0 {
		maxBars = 200
	}
	if cacheTTL <= 0 {
		cacheTTL = 45 * time.Second
	}
	return &Engine{
		history:  make(map[string]*tokenHistory),
		cache:    make(map[string]cachedIndicators),
		maxBars:  maxBars,
		cacheTTL: cacheTTL,
	}
}

// UpdatePriceHistory folds a live sample into the current minute bar, or
// appends a new bar when the minute rolled over. high/low of 0 default to
// the price itself.
func (e *Engine) UpdatePriceHistory(key string, price, volume, high, low float64) {
	if price <= 0 {
		return
	}
	if high <= 0 {
		high = price
	}
	if low <= 0 {
		low = price
	}

	bucket := time.Now().UnixMilli() / minuteMs * minuteMs

	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[key]
	if !ok {
		h = &tokenHistory{}
		e.history[key] = h
	}
	h.lastUpdate = time.Now()

	n := len(h.bars)
	if n > 0 && h.bars[n-1].Time == bucket {
		bar := &h.bars[n-1]
		bar.Close = price
		if high > bar.High {
			bar.High = high
		}
		if low < bar.Low {
			bar.Low = low
		}
		bar.Volume += volume
		return
	}

	h.bars = append(h.bars, PriceBar{
		Time:   bucket,
		Open:   price,
		High:   high,
		Low:    low,
		Close:  price,
		Volume: volume,
	})
	if len(h.bars) > e.maxBars {
		h.bars = h.bars[len(h.bars)-e.maxBars:]
	}
}

// IngestOHLCV merges external candles into the token's history,
// de-duplicating by minute bucket. Existing local bars win over
// re-imported duplicates.
func (e *Engine) IngestOHLCV(key string, candles []PriceBar) {
	if len(candles) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[key]
	if !ok {
		h = &tokenHistory{}
		e.history[key] = h
	}
	h.lastUpdate = time.Now()

	seen := make(map[int64]bool, len(h.bars))
	for _, b := range h.bars {
		seen[b.Time] = true
	}

	for _, c := range candles {
		bucket := c.Time / minuteMs * minuteMs
		if bucket <= 0 || seen[bucket] {
			continue
		}
		seen[bucket] = true
		c.Time = bucket
		h.bars = append(h.bars, c)
	}

	sort.Slice(h.bars, func(i, j int) bool { return h.bars[i].Time < h.bars[j].Time })
	if len(h.bars) > e.maxBars {
		h.bars = h.bars[len(h.bars)-e.maxBars:]
	}
}

// BarCount returns the number of stored bars for a token
func (e *Engine) BarCount(key string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if h, ok := e.history[key]; ok {
		return len(h.bars)
	}
	return 0
}

// RecentBars returns a copy of the last n bars for a token, oldest first
func (e *Engine) RecentBars(key string, n int) []PriceBar {
	bars := e.snapshotBars(key)
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}

// snapshotBars returns a copy of the token's bars
func (e *Engine) snapshotBars(key string) []PriceBar {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.history[key]
	if !ok {
		return nil
	}
	out := make([]PriceBar, len(h.bars))
	copy(out, h.bars)
	return out
}

// Compute derives the indicator snapshot for a token at the given live
// price. Fewer than 10 bars of history yields the typed defaults. Results
// are cached per token for the engine's TTL.
func (e *Engine) Compute(key string, currentPrice float64) *TechnicalIndicators {
	e.cacheMu.RLock()
	if c, ok := e.cache[key]; ok && time.Since(c.computedAt) < e.cacheTTL {
		e.cacheMu.RUnlock()
		return c.value
	}
	e.cacheMu.RUnlock()

	ind := e.compute(key, currentPrice)

	e.cacheMu.Lock()
	e.cache[key] = cachedIndicators{value: ind, computedAt: time.Now()}
	e.cacheMu.Unlock()

	return ind
}

func (e *Engine) compute(key string, currentPrice float64) *TechnicalIndicators {
	bars := e.snapshotBars(key)
	if len(bars) < 10 || currentPrice <= 0 {
		d := Defaults()
		d.BarCount = len(bars)
		return d
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	// Splice the live tick in as the current close
	if closes[len(closes)-1] != currentPrice {
		closes = append(closes, currentPrice)
	}

	rsi := wilderRSI(closes, 14)

	ema9s := emaSeries(closes, 9)
	ema21s := emaSeries(closes, 21)
	longPeriod := 50
	if len(closes) < longPeriod {
		longPeriod = len(closes)
	}
	ema50s := emaSeries(closes, longPeriod)

	ema9 := ema9s[len(ema9s)-1]
	ema21 := ema21s[len(ema21s)-1]
	ema50 := ema50s[len(ema50s)-1]

	macdLine, macdSignal, macdHist := macdSeries(closes)
	line := macdLine[len(macdLine)-1]
	signal := macdSignal[len(macdSignal)-1]
	hist := macdHist[len(macdHist)-1]

	atr := wilderATR(bars, 14)
	atrPercent := 0.0
	if currentPrice > 0 {
		atrPercent = atr / currentPrice * 100
	}

	alignment := AlignmentMixed
	if currentPrice > ema9 && ema9 > ema21 && ema21 > ema50 {
		alignment = AlignmentBullish
	} else if currentPrice < ema9 && ema9 < ema21 && ema21 < ema50 {
		alignment = AlignmentBearish
	}

	crossover := detectCrossover(ema9s, ema21s)
	divergence := detectDivergence(closes)

	pctVs := func(ema float64) float64 {
		if ema <= 0 {
			return 0
		}
		return roundTo((currentPrice-ema)/ema*100, 2)
	}
	pv9, pv21, pv50 := pctVs(ema9), pctVs(ema21), pctVs(ema50)

	overextended := pv21 > 15 || rsi > 80 || (pv9 > 8 && rsi > 70)
	pullback := alignment == AlignmentBullish &&
		rsi > 25 && rsi < 45 &&
		pv21 > -5 && pv21 < 3 &&
		currentPrice > ema50

	trendStrength := computeTrendStrength(alignment, crossover, hist, currentPrice, rsi)
	volumeTrend := classifyVolumeTrend(volumes)

	return &TechnicalIndicators{
		RSI14:             roundTo(rsi, 1),
		EMA9:              ema9,
		EMA21:             ema21,
		EMA50:             ema50,
		MACDLine:          roundTo(line, 8),
		MACDSignal:        roundTo(signal, 8),
		MACDHistogram:     roundTo(hist, 8),
		ATR14:             atr,
		ATRPercent:        roundTo(atrPercent, 2),
		EMATrendAlignment: alignment,
		EMACrossover:      crossover,
		RSIDivergence:     divergence,
		PriceVsEMA9:       pv9,
		PriceVsEMA21:      pv21,
		PriceVsEMA50:      pv50,
		IsOverextended:    overextended,
		IsPullback:        pullback,
		TrendStrength:     trendStrength,
		VolumeTrend:       volumeTrend,
		BarCount:          len(bars),
	}
}

// detectCrossover compares the EMA9/EMA21 relationship three samples ago
// with the latest one
func detectCrossover(ema9s, ema21s []float64) Crossover {
	n := len(ema9s)
	if n < 3 || len(ema21s) < 3 {
		return CrossoverNone
	}

	prevAbove := ema9s[n-3] > ema21s[n-3]
	nowAbove := ema9s[n-1] > ema21s[n-1]

	switch {
	case !prevAbove && nowAbove:
		return CrossoverGolden
	case prevAbove && !nowAbove:
		return CrossoverDeath
	default:
		return CrossoverNone
	}
}

// detectDivergence compares price and RSI extremes across the last 10
// samples vs the 10 before: lower price low with higher RSI low reads
// bullish, higher price high with lower RSI high reads bearish.
func detectDivergence(closes []float64) Divergence {
	if len(closes) < 22 {
		return DivergenceNone
	}
	rsiSeries := rsiPrefixSeries(closes, 14, len(closes)-19)
	if len(rsiSeries) < 20 {
		return DivergenceNone
	}
	rsiSeries = rsiSeries[len(rsiSeries)-20:]
	prices := closes[len(closes)-20:]

	minMax := func(vals []float64) (lo, hi float64) {
		lo, hi = vals[0], vals[0]
		for _, v := range vals[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		return lo, hi
	}

	prevPriceLo, prevPriceHi := minMax(prices[:10])
	recPriceLo, recPriceHi := minMax(prices[10:])
	prevRSILo, prevRSIHi := minMax(rsiSeries[:10])
	recRSILo, recRSIHi := minMax(rsiSeries[10:])

	if recPriceLo < prevPriceLo && recRSILo > prevRSILo {
		return DivergenceBullish
	}
	if recPriceHi > prevPriceHi && recRSIHi < prevRSIHi {
		return DivergenceBearish
	}
	return DivergenceNone
}

// computeTrendStrength starts neutral at 50 and shifts on EMA alignment,
// MACD histogram, RSI location and any recent crossover
func computeTrendStrength(alignment Alignment, crossover Crossover, macdHist, price, rsi float64) float64 {
	strength := 50.0

	switch alignment {
	case AlignmentBullish:
		strength += 15
	case AlignmentBearish:
		strength -= 15
	}

	if price > 0 {
		strength += clamp(macdHist/price*100*5, -10, 10)
	}

	strength += clamp((rsi-50)/2, -10, 10)

	switch crossover {
	case CrossoverGolden:
		strength += 8
	case CrossoverDeath:
		strength -= 8
	}

	return clamp(float64(int(strength+0.5)), 0, 100)
}

// classifyVolumeTrend compares the mean of the last 5 volumes against
// the 5 before
func classifyVolumeTrend(volumes []float64) VolumeTrend {
	if len(volumes) < 10 {
		return VolumeStable
	}

	recent := volumes[len(volumes)-5:]
	prior := volumes[len(volumes)-10 : len(volumes)-5]

	mean := func(vals []float64) float64 {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	}

	priorMean := mean(prior)
	if priorMean <= 0 {
		return VolumeStable
	}

	change := (mean(recent) - priorMean) / priorMean
	switch {
	case change > 0.3:
		return VolumeIncreasing
	case change < -0.3:
		return VolumeDecreasing
	default:
		return VolumeStable
	}
}
