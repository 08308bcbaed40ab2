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

// NewsSource looks up news sentiment per token and market-wide
type NewsSource interface {
	TokenNews(ctx context.Context, symbol string) (*NewsSignal, error)
	MarketSentiment(ctx context.Context) (float64, error)
}

// CryptoPanicClient aggregates news sentiment from a CryptoPanic-style API
type CryptoPanicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *ttlCache
	logger     *logging.Logger
}

// NewCryptoPanicClient creates a news source with a 10 minute cache
func NewCryptoPanicClient(apiKey string, timeout time.Duration, logger *logging.Logger) *CryptoPanicClient {
	return &CryptoPanicClient{
		apiKey:     apiKey,
		baseURL:    "https://cryptopanic.com/api/v1",
		httpClient: &http.Client{Timeout: timeout},
		cache:      newTTLCache(10 * time.Minute),
		logger:     logger.WithComponent("cryptopanic"),
	}
}

type cpPost struct {
	Kind  string `json:"kind"`
	Votes struct {
		Positive  int `json:"positive"`
		Negative  int `json:"negative"`
		Important int `json:"important"`
	} `json:"votes"`
}

type cpResponse struct {
	Results []cpPost `json:"results"`
}

// TokenNews returns the aggregated news signal for a symbol, nil when
// there is no coverage. Failures degrade to nil with a warn log.
func (c *CryptoPanicClient) TokenNews(ctx context.Context, symbol string) (*NewsSignal, error) {
	sym := strings.ToUpper(symbol)
	cacheKey := "token:" + sym

	if cached, ok := c.cache.get(cacheKey); ok {
		if cached == nil {
			return nil, nil
		}
		return cached.(*NewsSignal), nil
	}

	endpoint := fmt.Sprintf("%s/posts/?auth_token=%s&currencies=%s&public=true", c.baseURL, c.apiKey, sym)
	posts, err := c.fetchPosts(ctx, endpoint)
	if err != nil {
		c.logger.Warn("news fetch failed", "symbol", sym, "error", err)
		return nil, nil
	}
	if len(posts) == 0 {
		c.cache.set(cacheKey, nil)
		return nil, nil
	}

	sig := aggregatePosts(posts)
	c.cache.set(cacheKey, sig)
	return sig, nil
}

// MarketSentiment returns the market-wide news sentiment in [-1, +1]
func (c *CryptoPanicClient) MarketSentiment(ctx context.Context) (float64, error) {
	const cacheKey = "market"

	if cached, ok := c.cache.get(cacheKey); ok {
		return cached.(float64), nil
	}

	endpoint := fmt.Sprintf("%s/posts/?auth_token=%s&public=true", c.baseURL, c.apiKey)
	posts, err := c.fetchPosts(ctx, endpoint)
	if err != nil {
		c.logger.Warn("market news fetch failed", "error", err)
		return 0, nil
	}

	sig := aggregatePosts(posts)
	sentiment := 0.0
	if sig != nil {
		sentiment = sig.OverallSentiment
	}

	c.cache.set(cacheKey, sentiment)
	return sentiment, nil
}

func aggregatePosts(posts []cpPost) *NewsSignal {
	if len(posts) == 0 {
		return nil
	}

	var positive, negative, highImpact int
	for _, p := range posts {
		positive += p.Votes.Positive
		negative += p.Votes.Negative
		if p.Votes.Important >= 3 {
			highImpact++
		}
	}

	total := positive + negative
	sentiment := 0.0
	if total > 0 {
		sentiment = float64(positive-negative) / float64(total)
	}

	return &NewsSignal{
		OverallSentiment: sentiment,
		HighImpactCount:  highImpact,
	}
}

func (c *CryptoPanicClient) fetchPosts(ctx context.Context, endpoint string) ([]cpPost, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var parsed cpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing news: %w", err)
	}
	return parsed.Results, nil
}
