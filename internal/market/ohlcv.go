package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dex-agent-bot/internal/logging"
)

// OHLCVSource fetches external candle history for a pair
type OHLCVSource interface {
	FetchOHLCV(ctx context.Context, chain Chain, pairAddress, timeframe string) ([]OHLCVBar, error)
}

// GeckoTerminalClient fetches OHLCV candles from a GeckoTerminal-style API
type GeckoTerminalClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *ttlCache
	logger     *logging.Logger
}

// NewGeckoTerminalClient creates an OHLCV source with a 60s response cache
func NewGeckoTerminalClient(baseURL string, timeout time.Duration, logger *logging.Logger) *GeckoTerminalClient {
	return &GeckoTerminalClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      newTTLCache(60 * time.Second),
		logger:     logger.WithComponent("geckoterminal"),
	}
}

// gtNetwork maps a chain to the provider's network slug
func gtNetwork(chain Chain) string {
	switch chain {
	case ChainSolana:
		return "solana"
	case ChainEthereum:
		return "eth"
	case ChainBase:
		return "base"
	case ChainBSC:
		return "bsc"
	case ChainTron:
		return "tron"
	default:
		return string(chain)
	}
}

type gtOHLCVResponse struct {
	Data struct {
		Attributes struct {
			// Each row is [timestamp_sec, open, high, low, close, volume]
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchOHLCV returns candles for the pair, newest last
func (c *GeckoTerminalClient) FetchOHLCV(ctx context.Context, chain Chain, pairAddress, timeframe string) ([]OHLCVBar, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", chain, pairAddress, timeframe)

	if cached, ok := c.cache.get(cacheKey); ok {
		return cached.([]OHLCVBar), nil
	}

	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/%s", c.baseURL, gtNetwork(chain), pairAddress, timeframe)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stale, ok := c.cache.getStale(cacheKey); ok {
			c.logger.Warn("ohlcv fetch failed, serving stale cache", "pair", pairAddress, "error", err)
			return stale.([]OHLCVBar), nil
		}
		return nil, fmt.Errorf("error fetching ohlcv: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var parsed gtOHLCVResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing ohlcv: %w", err)
	}

	rows := parsed.Data.Attributes.OHLCVList
	bars := make([]OHLCVBar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		bars = append(bars, OHLCVBar{
			Time:   int64(row[0]) * 1000,
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}

	// Provider returns newest first; callers expect ascending time
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	c.cache.set(cacheKey, bars)
	return bars, nil
}
