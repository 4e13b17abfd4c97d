package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/collection"
	"golang.org/x/time/rate"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

const (
	DefaultBaseURL = "https://api.satest-dev.com"

	defaultTimeout      = 30 * time.Second
	defaultRatePerSec   = 5
	defaultBurst        = 5
	defaultPairCacheTTL = 30 * time.Minute
	defaultSlippage     = 0.05

	provider = "HYPERLIQUID"
)

// Client talks to the Arena agent API with an API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	slippage   float64
	pairs      *collection.Cache
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithSlippage sets the adverse move applied to market order prices.
func WithSlippage(pct float64) Option {
	return func(c *Client) {
		if pct > 0 && pct < 1 {
			c.slippage = pct
		}
	}
}

// NewClient builds a client. pairTTL <= 0 selects the 30 minute default.
func NewClient(apiKey string, pairTTL time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errkit.Config("arena: api key is required")
	}
	if pairTTL <= 0 {
		pairTTL = defaultPairCacheTTL
	}
	pairs, err := collection.NewCache(pairTTL, collection.WithName("arena-pairs"))
	if err != nil {
		return nil, fmt.Errorf("arena: pair cache: %w", err)
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(defaultRatePerSec, defaultBurst),
		slippage:   defaultSlippage,
		pairs:      pairs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// do performs one rate-limited request. An empty or 204 body leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("arena: rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("arena: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("arena: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		if !errkit.IsRetryable(err) {
			return errkit.Wrap(err, errkit.KindConfig, errkit.CodeNetwork, "arena: %s %s", method, path)
		}
		return errkit.Transient(err, errkit.CodeNetwork, "arena: %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errkit.Transient(err, errkit.CodeNetwork, "arena: read %s %s", method, path)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, raw, method, path)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("arena: decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	return nil
}
