package market

import (
	"context"
	"sync"
	"time"

	"dex-agent-bot/internal/logging"
)

// LiquiditySource reports pool liquidity health per token and market-wide
type LiquiditySource interface {
	Snapshot(ctx context.Context, address string, chain Chain) (*LiquiditySnapshot, error)
	MarketFlow(ctx context.Context) (FlowDirection, error)
}

type liqObservation struct {
	liquidity float64
	volume    float64
	observed  time.Time
}

// LiquidityTracker maintains rolling liquidity history per token from
// successive pair observations and classifies draining/growing pools.
type LiquidityTracker struct {
	mu      sync.RWMutex
	history map[string][]liqObservation
	window  int
	logger  *logging.Logger
}

// NewLiquidityTracker creates a tracker with a 30-observation window
func NewLiquidityTracker(logger *logging.Logger) *LiquidityTracker {
	return &LiquidityTracker{
		history: make(map[string][]liqObservation),
		window:  30,
		logger:  logger.WithComponent("liquidity"),
	}
}

// Observe records the latest liquidity snapshot for every tracked token
func (t *LiquidityTracker) Observe(pairs []Pair) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range pairs {
		key := TokenKey(p.Chain, p.Base.Address)
		obs := liqObservation{liquidity: p.LiquidityUSD, volume: p.Volume24h, observed: now}

		hist := append(t.history[key], obs)
		if len(hist) > t.window {
			hist = hist[len(hist)-t.window:]
		}
		t.history[key] = hist
	}
}

// Snapshot returns the liquidity health view for a token, nil when the
// token has no history yet
func (t *LiquidityTracker) Snapshot(_ context.Context, address string, chain Chain) (*LiquiditySnapshot, error) {
	key := TokenKey(chain, address)

	t.mu.RLock()
	hist := t.history[key]
	t.mu.RUnlock()

	if len(hist) == 0 {
		return nil, nil
	}

	last := hist[len(hist)-1]
	changePercent := 0.0
	if len(hist) >= 2 {
		first := hist[0]
		if first.liquidity > 0 {
			changePercent = (last.liquidity - first.liquidity) / first.liquidity * 100
		}
	}

	ratio := 0.0
	if last.liquidity > 0 {
		ratio = last.volume / last.liquidity
	}

	return &LiquiditySnapshot{
		CurrentLiquidity:    last.liquidity,
		ChangePercent:       changePercent,
		IsDraining:          changePercent < -10,
		IsGrowing:           changePercent > 10,
		VolumeToLiqRatio:    ratio,
		HasAbnormalActivity: ratio > 10 || changePercent < -25,
	}, nil
}

// MarketFlow aggregates liquidity change across all tracked tokens
func (t *LiquidityTracker) MarketFlow(_ context.Context) (FlowDirection, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var growing, draining, total int
	for _, hist := range t.history {
		if len(hist) < 2 {
			continue
		}
		first, last := hist[0], hist[len(hist)-1]
		if first.liquidity <= 0 {
			continue
		}
		change := (last.liquidity - first.liquidity) / first.liquidity * 100
		total++
		switch {
		case change > 5:
			growing++
		case change < -5:
			draining++
		}
	}

	if total == 0 {
		return FlowNeutral, nil
	}

	growRatio := float64(growing) / float64(total)
	drainRatio := float64(draining) / float64(total)
	switch {
	case growRatio > 0.5 && growRatio > drainRatio*1.5:
		return FlowInflow, nil
	case drainRatio > 0.5 && drainRatio > growRatio*1.5:
		return FlowOutflow, nil
	default:
		return FlowNeutral, nil
	}
}
