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

// PairSource lists currently-live trading pairs
type PairSource interface {
	ListLivePairs(ctx context.Context) ([]Pair, error)
}

// DexScreenerClient fetches live pair data from a DexScreener-style API
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *ttlCache
	logger     *logging.Logger
}

// NewDexScreenerClient creates a pair source with a 30s response cache
func NewDexScreenerClient(baseURL string, timeout time.Duration, logger *logging.Logger) *DexScreenerClient {
	return &DexScreenerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      newTTLCache(30 * time.Second),
		logger:     logger.WithComponent("dexscreener"),
	}
}

// dsPair mirrors the provider's pair document
type dsPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap     float64 `json:"marketCap"`
	FDV           float64 `json:"fdv"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
	Info          struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
	Boosts struct {
		Active int `json:"active"`
	} `json:"boosts"`
}

type dsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

// ListLivePairs returns the latest live pairs, serving a cached copy for 30s
func (c *DexScreenerClient) ListLivePairs(ctx context.Context) ([]Pair, error) {
	const cacheKey = "live_pairs"

	if cached, ok := c.cache.get(cacheKey); ok {
		return cached.([]Pair), nil
	}

	endpoint := fmt.Sprintf("%s/latest/dex/pairs", c.baseURL)
	raw, err := c.fetch(ctx, endpoint)
	if err != nil {
		// Degrade to the last known pair list on transient failure
		if stale, ok := c.cache.getStale(cacheKey); ok {
			c.logger.Warn("pair fetch failed, serving stale cache", "error", err)
			return stale.([]Pair), nil
		}
		return nil, err
	}

	var parsed dsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing pairs: %w", err)
	}

	pairs := make([]Pair, 0, len(parsed.Pairs))
	for _, dp := range parsed.Pairs {
		if !ValidChain(dp.ChainID) {
			continue
		}
		pairs = append(pairs, convertPair(dp))
	}

	c.cache.set(cacheKey, pairs)
	return pairs, nil
}

func convertPair(dp dsPair) Pair {
	mcap := dp.MarketCap
	if mcap <= 0 {
		mcap = dp.FDV
	}
	return Pair{
		Chain:         Chain(dp.ChainID),
		PairAddress:   dp.PairAddress,
		Base:          TokenRef{Address: dp.BaseToken.Address, Name: dp.BaseToken.Name, Symbol: dp.BaseToken.Symbol},
		Quote:         TokenRef{Address: dp.QuoteToken.Address, Name: dp.QuoteToken.Name, Symbol: dp.QuoteToken.Symbol},
		PriceUSD:      parsePrice(dp.PriceUSD),
		PriceChange1h: dp.PriceChange.H1,
		PriceChange24: dp.PriceChange.H24,
		Volume24h:     dp.Volume.H24,
		Buys24h:       dp.Txns.H24.Buys,
		Sells24h:      dp.Txns.H24.Sells,
		LiquidityUSD:  dp.Liquidity.USD,
		MarketCap:     mcap,
		PairCreatedAt: dp.PairCreatedAt,
		ImageURL:      dp.Info.ImageURL,
		BoostsActive:  dp.Boosts.Active,
	}
}

func parsePrice(s string) float64 {
	var v float64
	fmt.Sscanf(s, "%g", &v)
	return v
}

func (c *DexScreenerClient) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching pairs: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}
