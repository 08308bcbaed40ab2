package indicators

// PriceBar is one minute-bucketed OHLCV bar. Time is minute-aligned
// epoch milliseconds.
type PriceBar struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// Alignment classifies the EMA stack order
type Alignment string

const (
	AlignmentBullish Alignment = "bullish"
	AlignmentBearish Alignment = "bearish"
	AlignmentMixed   Alignment = "mixed"
)

// Crossover classifies a recent EMA9/EMA21 cross
type Crossover string

const (
	CrossoverGolden Crossover = "golden_cross"
	CrossoverDeath  Crossover = "death_cross"
	CrossoverNone   Crossover = "none"
)

// Divergence classifies RSI/price divergence
type Divergence string

const (
	DivergenceBullish Divergence = "bullish"
	DivergenceBearish Divergence = "bearish"
	DivergenceNone    Divergence = "none"
)

// VolumeTrend classifies the recent volume direction
type VolumeTrend string

const (
	VolumeIncreasing VolumeTrend = "increasing"
	VolumeDecreasing VolumeTrend = "decreasing"
	VolumeStable     VolumeTrend = "stable"
)

// TechnicalIndicators is the derived per-token indicator snapshot
type TechnicalIndicators struct {
	RSI14             float64     `json:"rsi_14"`
	EMA9              float64     `json:"ema_9"`
	EMA21             float64     `json:"ema_21"`
	EMA50             float64     `json:"ema_50"`
	MACDLine          float64     `json:"macd_line"`
	MACDSignal        float64     `json:"macd_signal"`
	MACDHistogram     float64     `json:"macd_histogram"`
	ATR14             float64     `json:"atr_14"`
	ATRPercent        float64     `json:"atr_percent"`
	EMATrendAlignment Alignment   `json:"ema_trend_alignment"`
	EMACrossover      Crossover   `json:"ema_crossover"`
	RSIDivergence     Divergence  `json:"rsi_divergence"`
	PriceVsEMA9       float64     `json:"price_vs_ema_9"`
	PriceVsEMA21      float64     `json:"price_vs_ema_21"`
	PriceVsEMA50      float64     `json:"price_vs_ema_50"`
	IsOverextended    bool        `json:"is_overextended"`
	IsPullback        bool        `json:"is_pullback"`
	TrendStrength     float64     `json:"trend_strength"`
	VolumeTrend       VolumeTrend `json:"volume_trend"`
	BarCount          int         `json:"bar_count"`
}

// Defaults is the typed value returned when a token has too little
// history for real indicators
func Defaults() *TechnicalIndicators {
	return &TechnicalIndicators{
		RSI14:             50,
		TrendStrength:     50,
		EMATrendAlignment: AlignmentMixed,
		EMACrossover:      CrossoverNone,
		RSIDivergence:     DivergenceNone,
		VolumeTrend:       VolumeStable,
	}
}
