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

// SocialSource looks up social metrics for a token symbol
type SocialSource interface {
	Social(ctx context.Context, symbol string) (*SocialSignal, error)
}

// LunarCrushClient fetches social metrics from a LunarCrush-style API
type LunarCrushClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *ttlCache
	logger     *logging.Logger
}

// NewLunarCrushClient creates a social source with a 5 minute cache
func NewLunarCrushClient(apiKey string, timeout time.Duration, logger *logging.Logger) *LunarCrushClient {
	return &LunarCrushClient{
		apiKey:     apiKey,
		baseURL:    "https://lunarcrush.com/api4/public",
		httpClient: &http.Client{Timeout: timeout},
		cache:      newTTLCache(5 * time.Minute),
		logger:     logger.WithComponent("lunarcrush"),
	}
}

type lcResponse struct {
	Data struct {
		GalaxyScore        float64 `json:"galaxy_score"`
		AltRank            int     `json:"alt_rank"`
		SocialVolume       float64 `json:"social_volume_24h"`
		Sentiment          float64 `json:"sentiment"`
		SocialDominance    float64 `json:"social_dominance"`
		InfluencerMentions int     `json:"num_contributors"`
	} `json:"data"`
}

// Social returns the social snapshot for a symbol, or nil when the
// provider has no coverage. Failures degrade to nil with a warn log.
func (c *LunarCrushClient) Social(ctx context.Context, symbol string) (*SocialSignal, error) {
	sym := strings.ToUpper(symbol)
	if sym == "" {
		return nil, nil
	}

	if cached, ok := c.cache.get(sym); ok {
		if cached == nil {
			return nil, nil
		}
		return cached.(*SocialSignal), nil
	}

	endpoint := fmt.Sprintf("%s/coins/%s/v1", c.baseURL, sym)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("social fetch failed", "symbol", sym, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.cache.set(sym, nil)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Warn("social fetch failed", "symbol", sym, "status", resp.StatusCode)
		return nil, nil
	}

	var parsed lcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("social parse failed", "symbol", sym, "error", err)
		return nil, nil
	}

	d := parsed.Data
	sig := &SocialSignal{
		GalaxyScore:        d.GalaxyScore,
		AltRank:            d.AltRank,
		SocialVolume:       d.SocialVolume,
		Sentiment:          d.Sentiment,
		SocialSpike:        d.SocialDominance > 1.0,
		InfluencerMentions: d.InfluencerMentions,
	}

	c.cache.set(sym, sig)
	return sig, nil
}
