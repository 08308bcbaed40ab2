package market

import (
	"context"
	"sync"
	"time"

	"dex-agent-bot/internal/logging"
)

// SmartMoneySource looks up tracked-wallet flow for a token
type SmartMoneySource interface {
	Signal(ctx context.Context, address string, chain Chain) (*SmartMoneySignal, error)
}

type smObservation struct {
	buys     int
	sells    int
	volume   float64
	observed time.Time
}

// SmartMoneyTracker derives whale-flow signals from successive pair
// observations. It keeps a short rolling window of transaction deltas per
// token; large single-interval volume with a skewed buy/sell delta reads
// as top-trader activity.
type SmartMoneyTracker struct {
	mu      sync.RWMutex
	history map[string][]smObservation // token key -> rolling window
	window  int
	logger  *logging.Logger
}

// NewSmartMoneyTracker creates a tracker with a 20-observation window
func NewSmartMoneyTracker(logger *logging.Logger) *SmartMoneyTracker {
	return &SmartMoneyTracker{
		history: make(map[string][]smObservation),
		window:  20,
		logger:  logger.WithComponent("smartmoney"),
	}
}

// Observe records the latest pair snapshot for every tracked token.
// Called once per engine cycle with the live pair list.
func (t *SmartMoneyTracker) Observe(pairs []Pair) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range pairs {
		key := TokenKey(p.Chain, p.Base.Address)
		obs := smObservation{buys: p.Buys24h, sells: p.Sells24h, volume: p.Volume24h, observed: now}

		hist := append(t.history[key], obs)
		if len(hist) > t.window {
			hist = hist[len(hist)-t.window:]
		}
		t.history[key] = hist
	}
}

// Signal returns the derived smart-money view, nil when the token has
// fewer than two observations
func (t *SmartMoneyTracker) Signal(_ context.Context, address string, chain Chain) (*SmartMoneySignal, error) {
	key := TokenKey(chain, address)

	t.mu.RLock()
	hist := t.history[key]
	t.mu.RUnlock()

	if len(hist) < 2 {
		return nil, nil
	}

	first := hist[0]
	last := hist[len(hist)-1]

	buyDelta := last.buys - first.buys
	sellDelta := last.sells - first.sells
	volumeDelta := last.volume - first.volume
	if buyDelta < 0 {
		buyDelta = 0
	}
	if sellDelta < 0 {
		sellDelta = 0
	}
	if volumeDelta < 0 {
		volumeDelta = 0
	}

	netFlow := 0.0
	totalDelta := buyDelta + sellDelta
	if totalDelta > 0 {
		netFlow = volumeDelta * float64(buyDelta-sellDelta) / float64(totalDelta)
	}

	// Accumulation score: buy skew scaled by how much fresh volume
	// arrived within the window
	score := 50.0
	if totalDelta > 0 {
		skew := float64(buyDelta-sellDelta) / float64(totalDelta) // -1..+1
		score = 50 + skew*40
		if volumeDelta > 100000 {
			score += 10 * skew
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	// Wallet-level stats are not observable from pair deltas; report the
	// aggregate window as a single synthetic cohort
	return &SmartMoneySignal{
		TopTraderBuys:          buyDelta,
		TopTraderSells:         sellDelta,
		NetFlow:                netFlow,
		WhaleAccumulationScore: score,
		TopWalletCount:         totalDelta,
		AvgWalletWinRate:       0,
		AvgWalletPnl:           0,
	}, nil
}
