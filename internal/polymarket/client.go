// Package polymarket provides read-only access to the Gamma and CLOB APIs.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rcline/electioncal/internal/models"
)

// Client provides access to the Polymarket Gamma and CLOB APIs. All calls
// pass through a shared throttle so cross-endpoint request spacing holds.
type Client struct {
	gammaAPIURL    string
	clobAPIURL     string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	throttle       *Throttle
}

// ClientConfig holds retry and throttling behavior for the client.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	RequestDelay   time.Duration
}

// NewClient creates a new Polymarket client.
func NewClient(gammaAPIURL, clobAPIURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		gammaAPIURL:    gammaAPIURL,
		clobAPIURL:     clobAPIURL,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		throttle:       NewThrottle(cfg.RequestDelay),
	}
}

// GammaMarket represents a market object from the Gamma API. The Outcomes,
// OutcomePrices, and ClobTokenIds fields arrive as JSON-encoded string
// arrays nested inside the JSON payload.
type GammaMarket struct {
	ID               string     `json:"id"`
	Question         string     `json:"question"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	Outcomes         string     `json:"outcomes"`
	OutcomePrices    string     `json:"outcomePrices"`
	Volume           float64    `json:"volumeNum"`
	Liquidity        float64    `json:"liquidityNum"`
	StartDate        string     `json:"startDate"`
	EndDate          string     `json:"endDate"`
	ClosedTime       string     `json:"closedTime"`
	ResolutionSource string     `json:"resolutionSource"`
	ClobTokenIds     string     `json:"clobTokenIds"`
	Closed           bool       `json:"closed"`
	Tags             []GammaTag `json:"tags"`
}

// GammaTag is a market tag from the Gamma API. Tag ids arrive as strings.
type GammaTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GammaEvent represents an event (a group of related markets) from the
// Gamma API.
type GammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Markets []GammaMarket `json:"markets"`
}

// TagIDs returns the market's numeric tag ids, skipping malformed entries.
func (m *GammaMarket) TagIDs() []int {
	ids := make([]int, 0, len(m.Tags))
	for _, t := range m.Tags {
		id, err := strconv.Atoi(t.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ToRecord converts a Gamma market into the typed pipeline record. The side
// label is a human decision and is not set here.
func (m *GammaMarket) ToRecord() (models.MarketRecord, error) {
	rec := models.MarketRecord{
		ID:       m.ID,
		Question: m.Question,
		Volume:   m.Volume,
	}
	var err error
	if rec.ClobTokenIDs, err = models.ParseTokenIDs(m.ClobTokenIds); err != nil {
		return rec, fmt.Errorf("market %s: %w", m.ID, err)
	}
	if rec.OutcomePrices, err = models.ParseOutcomePrices(m.OutcomePrices); err != nil {
		return rec, fmt.Errorf("market %s: %w", m.ID, err)
	}
	if rec.StartDate, err = models.ParseTime(m.StartDate); err != nil {
		return rec, fmt.Errorf("market %s: startDate: %w", m.ID, err)
	}
	if rec.EndDate, err = models.ParseTime(m.EndDate); err != nil {
		return rec, fmt.Errorf("market %s: endDate: %w", m.ID, err)
	}
	if rec.ClosedTime, err = models.ParseTime(m.ClosedTime); err != nil {
		return rec, fmt.Errorf("market %s: closedTime: %w", m.ID, err)
	}
	return rec, nil
}

// ListMarketsQuery parametrizes one page of the Gamma market listing.
type ListMarketsQuery struct {
	TagID  int
	Closed bool
	Limit  int
	Offset int
}

// ListMarkets retrieves one page of markets from the Gamma API, tags
// included. An empty page signals the end of pagination to the caller.
func (c *Client) ListMarkets(ctx context.Context, q ListMarketsQuery) ([]GammaMarket, error) {
	u, err := url.Parse(c.gammaAPIURL + "/markets")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	params := u.Query()
	params.Set("tag_id", strconv.Itoa(q.TagID))
	params.Set("include_tag", "true")
	params.Set("closed", strconv.FormatBool(q.Closed))
	params.Set("ascending", "true")
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	u.RawQuery = params.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}
	defer resp.Body.Close()

	var markets []GammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}
	return markets, nil
}

// EventBySlug retrieves a single event by its URL slug. Returns nil without
// error when the slug matches nothing.
func (c *Client) EventBySlug(ctx context.Context, slug string) (*GammaEvent, error) {
	u, err := url.Parse(c.gammaAPIURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	params := u.Query()
	params.Set("slug", slug)
	u.RawQuery = params.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", slug, err)
	}
	defer resp.Body.Close()

	var events []GammaEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", slug, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// priceHistoryResponse is the CLOB /prices-history payload.
type priceHistoryResponse struct {
	History []struct {
		T int64   `json:"t"`
		P float64 `json:"p"`
	} `json:"history"`
}

// PriceHistory retrieves the traded price series for one outcome token over
// [start, end] at the given candle fidelity (minutes).
func (c *Client) PriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) ([]models.PricePoint, error) {
	u, err := url.Parse(c.clobAPIURL + "/prices-history")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	params := u.Query()
	params.Set("market", tokenID)
	params.Set("fidelity", strconv.Itoa(fidelityMinutes))
	params.Set("startTs", strconv.FormatInt(start.Unix(), 10))
	params.Set("endTs", strconv.FormatInt(end.Unix(), 10))
	u.RawQuery = params.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	defer resp.Body.Close()

	var payload priceHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode price history: %w", err)
	}

	points := make([]models.PricePoint, 0, len(payload.History))
	for _, h := range payload.History {
		points = append(points, models.PricePoint{
			Timestamp: time.Unix(h.T, 0).UTC(),
			Price:     h.P,
		})
	}
	return points, nil
}

// doRequest performs a throttled HTTP GET with retry on transport errors
// and 5xx responses, backing off linearly between attempts.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if err := sleepCtx(ctx, time.Duration(i+1)*c.retryDelayBase); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if err := sleepCtx(ctx, time.Duration(i+1)*c.retryDelayBase); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
