// Package supplier reads contracted rates from a channel-manager feed.
package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
)

const (
	maxAttempts = 4
	maxBody     = 8 << 20
)

var (
	ErrNotFound     = fmt.Errorf("supplier: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("supplier: unauthorized")
	ErrForbidden    = errors.New("supplier: forbidden")
)

type Client struct {
	base string
	key  string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, errors.New("supplier: API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		key:  key,
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// GetRates fetches the rate rows of one hotel. Feeds answer with a bare array
// or with {"rates": [...]} / {"data": [...]}; older feeds only serve the
// singular /hotel/{id} path.
func (c *Client) GetRates(ctx context.Context, hotelID int64) ([]map[string]any, error) {
	paths := []string{
		fmt.Sprintf("/hotels/%d/rates", hotelID),
		fmt.Sprintf("/hotel/%d/rates", hotelID),
	}
	var err error
	for _, p := range paths {
		var body []byte
		body, err = c.fetch(ctx, c.base+p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return decodeRows(body)
	}
	return nil, err
}

func decodeRows(raw []byte) ([]map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var env struct {
		Rates []map[string]any `json:"rates"`
		Data  []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if env.Rates != nil {
		return env.Rates, nil
	}
	return env.Data, nil
}

// attempt is the outcome of one request.
type attempt struct {
	body  []byte
	err   error
	retry bool
	wait  time.Duration // server-requested delay, 0 = use backoff
}

// fetch GETs url under the client-side rate limit, retrying transport
// errors, 429 and transient 5xx up to maxAttempts.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}
	var last attempt
	for i := 0; i < maxAttempts; i++ {
		last = c.do(ctx, url)
		if !last.retry {
			return last.body, last.err
		}
		if i == maxAttempts-1 {
			break
		}
		wait := last.wait
		if wait == 0 {
			wait = shared.Backoff(i, 200*time.Millisecond)
		}
		if !shared.SleepCtx(ctx, wait) {
			return nil, ctx.Err()
		}
	}
	return nil, last.err
}

func (c *Client) do(ctx context.Context, url string) attempt {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attempt{err: err}
	}
	req.Header.Set("X-API-Key", c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hotel-rates/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("supplier", "rates", 0, time.Since(start))
		if ctx.Err() != nil {
			return attempt{err: ctx.Err()}
		}
		return attempt{err: err, retry: true}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("supplier", "rates", resp.StatusCode, time.Since(start))

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		return attempt{body: body, err: err}
	case code == http.StatusNoContent:
		return attempt{}
	case code == http.StatusNotFound:
		return attempt{err: ErrNotFound}
	case code == http.StatusUnauthorized:
		return attempt{err: ErrUnauthorized}
	case code == http.StatusForbidden:
		return attempt{err: ErrForbidden}
	case retryable(code):
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return attempt{err: fmt.Errorf("supplier: remote %d", code), retry: true, wait: retryAfter(resp.Header.Get("Retry-After"))}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return attempt{err: fmt.Errorf("supplier: bad status %d: %s", code, strings.TrimSpace(string(b)))}
	}
}

func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses seconds or an HTTP-date; 0 when absent or in the past.
func retryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
