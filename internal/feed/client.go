package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE FEED CLIENT - Read-only snapshot source over HTTP
// ═══════════════════════════════════════════════════════════════════════════════

// rawObservation mirrors the feed's JSON. A missing identifier or timestamp,
// or a non-finite price or volume, drops the record before it reaches the
// filter; absent numeric fields decode as zero and are left to the filter's
// volume, swap-count and price layers.
type rawObservation struct {
	Token       string  `json:"token"`
	Dex         string  `json:"dex"`
	PoolAddress string  `json:"pool_address"`
	PriceSol    float64 `json:"price_sol"`
	Volume24h   float64 `json:"volume_24h"`
	SwapCount   int64   `json:"swap_count_24h"`
	Timestamp   int64   `json:"timestamp"` // unix milliseconds
}

type feedResponse struct {
	Prices      []rawObservation `json:"prices"`
	TotalTokens int              `json:"total_tokens"`
}

// Client pulls price snapshots. A short cache keeps a fast tick from
// refetching inside one feed update.
type Client struct {
	url      string
	client   *http.Client
	cacheTTL time.Duration

	mu        sync.Mutex
	cached    []types.PriceObservation
	fetchedAt time.Time

	malformed int64
}

func NewClient(url string, timeout, cacheTTL time.Duration) *Client {
	return &Client{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		cacheTTL: cacheTTL,
	}
}

// Fetch returns the current observation snapshot.
func (c *Client) Fetch(ctx context.Context) ([]types.PriceObservation, error) {
	c.mu.Lock()
	if time.Since(c.fetchedAt) < c.cacheTTL && c.cached != nil {
		out := c.cached
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed returned %d", resp.StatusCode)
	}

	var parsed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("price feed parse: %w", err)
	}

	observations := make([]types.PriceObservation, 0, len(parsed.Prices))
	for _, raw := range parsed.Prices {
		obs, ok := c.convert(raw)
		if !ok {
			continue
		}
		observations = append(observations, obs)
	}

	c.mu.Lock()
	c.cached = observations
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	log.Debug().Int("records", len(observations)).Msg("price snapshot fetched")
	return observations, nil
}

func (c *Client) convert(raw rawObservation) (types.PriceObservation, bool) {
	if raw.Token == "" || raw.Dex == "" || raw.PoolAddress == "" || raw.Timestamp == 0 ||
		!isFinite(raw.PriceSol) || !isFinite(raw.Volume24h) {
		c.mu.Lock()
		c.malformed++
		c.mu.Unlock()
		log.Debug().Str("token", types.Abbrev(raw.Token)).Msg("malformed price record dropped")
		return types.PriceObservation{}, false
	}
	return types.PriceObservation{
		Token:      raw.Token,
		Venue:      raw.Dex,
		Pool:       raw.PoolAddress,
		Price:      decimal.NewFromFloat(raw.PriceSol),
		Volume24h:  decimal.NewFromFloat(raw.Volume24h),
		Swaps24h:   raw.SwapCount,
		ObservedAt: time.UnixMilli(raw.Timestamp),
	}, true
}

// Malformed returns the dropped-record count.
func (c *Client) Malformed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.malformed
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
