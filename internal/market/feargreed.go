package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dex-agent-bot/internal/logging"
)

// FearGreedSource reports the market-wide fear & greed index
type FearGreedSource interface {
	Get(ctx context.Context) (*FearGreed, error)
}

// AlternativeMeClient fetches the fear & greed index. The upstream index
// updates a few times a day; a 10 minute cache keeps us polite.
type AlternativeMeClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *ttlCache
	logger     *logging.Logger
}

// NewAlternativeMeClient creates a fear & greed source
func NewAlternativeMeClient(baseURL string, timeout time.Duration, logger *logging.Logger) *AlternativeMeClient {
	return &AlternativeMeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      newTTLCache(10 * time.Minute),
		logger:     logger.WithComponent("feargreed"),
	}
}

type fgResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// neutralFearGreed is the typed default served when the source is down
// and no cached reading exists
func neutralFearGreed() *FearGreed {
	return &FearGreed{
		Value:          50,
		Classification: "Neutral",
		Trend:          "stable",
		TradingBias:    BiasHold,
	}
}

// Get returns the current reading. Transient failures return the last
// cached reading, or the neutral default.
func (c *AlternativeMeClient) Get(ctx context.Context) (*FearGreed, error) {
	const cacheKey = "fng"

	if cached, ok := c.cache.get(cacheKey); ok {
		return cached.(*FearGreed), nil
	}

	endpoint := fmt.Sprintf("%s/fng/?limit=2", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return neutralFearGreed(), nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fear/greed fetch failed", "error", err)
		if stale, ok := c.cache.getStale(cacheKey); ok {
			return stale.(*FearGreed), nil
		}
		return neutralFearGreed(), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Warn("fear/greed fetch failed", "status", resp.StatusCode)
		if stale, ok := c.cache.getStale(cacheKey); ok {
			return stale.(*FearGreed), nil
		}
		return neutralFearGreed(), nil
	}

	var parsed fgResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		return neutralFearGreed(), nil
	}

	value, _ := strconv.Atoi(parsed.Data[0].Value)
	trend := "stable"
	if len(parsed.Data) > 1 {
		prev, _ := strconv.Atoi(parsed.Data[1].Value)
		switch {
		case value > prev+2:
			trend = "rising"
		case value < prev-2:
			trend = "falling"
		}
	}

	fg := &FearGreed{
		Value:          value,
		Classification: parsed.Data[0].Classification,
		Trend:          trend,
		TradingBias:    classifyBias(value),
	}

	c.cache.set(cacheKey, fg)
	return fg, nil
}

// classifyBias is contrarian at the extremes: extreme fear is a buying
// opportunity, extreme greed a reason to stand down.
func classifyBias(value int) Bias {
	switch {
	case value <= 25:
		return BiasBuy
	case value >= 75:
		return BiasSell
	default:
		return BiasHold
	}
}
