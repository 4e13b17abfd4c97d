package hyperliquid

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	mainnetAPIURL = "https://api.hyperliquid.xyz"
	testnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	defaultHTTPTimeout = 30 * time.Second
	defaultAssetTTL    = 10 * time.Minute
	defaultSlippage    = 0.05

	priceSigFigs    = 5
	maxPerpDecimals = 6
)

// Option customises Hyperliquid clients.
type Option func(*options)

type options struct {
	httpClient  *http.Client
	infoURL     string
	exchangeURL string
	testnet     bool
	clock       func() time.Time
	vault       string
	slippage    float64
	assetTTL    time.Duration
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		if httpClient != nil {
			o.httpClient = httpClient
		}
	}
}

// WithBaseURL points both endpoints at an API root such as https://api.hyperliquid.xyz.
func WithBaseURL(root string) Option {
	return func(o *options) {
		root = strings.TrimRight(strings.TrimSpace(root), "/")
		if root != "" {
			o.infoURL = root + "/info"
			o.exchangeURL = root + "/exchange"
		}
	}
}

// WithInfoURL overrides only the info endpoint.
func WithInfoURL(url string) Option {
	return func(o *options) {
		if url = strings.TrimSpace(url); url != "" {
			o.infoURL = url
		}
	}
}

// WithTestnet switches default endpoints and the signing source to testnet.
func WithTestnet(testnet bool) Option {
	return func(o *options) { o.testnet = testnet }
}

// WithClock overrides the time source used for nonces and cache expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithVaultAddress signs actions on behalf of a vault.
func WithVaultAddress(addr string) Option {
	return func(o *options) {
		if common.IsHexAddress(addr) {
			o.vault = strings.ToLower(common.HexToAddress(addr).Hex())
		}
	}
}

// WithSlippage sets the fraction applied to market order limit prices.
func WithSlippage(slippage float64) Option {
	return func(o *options) {
		if slippage > 0 && slippage < 1 {
			o.slippage = slippage
		}
	}
}

// WithAssetCacheTTL sets how long the asset directory is trusted.
func WithAssetCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.assetTTL = ttl
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		clock:      time.Now,
		slippage:   defaultSlippage,
		assetTTL:   defaultAssetTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	root := mainnetAPIURL
	if o.testnet {
		root = testnetAPIURL
	}
	if o.infoURL == "" {
		o.infoURL = root + "/info"
	}
	if o.exchangeURL == "" {
		o.exchangeURL = root + "/exchange"
	}
	return o
}
