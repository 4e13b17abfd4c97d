package arena

import (
	"errors"
	"net/http"
	"strings"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

func init() {
	exchange.RegisterProviderWithRequirements("arena", func(name string, cfg *exchange.ProviderConfig) (exchange.Backend, error) {
		return NewClient(cfg.APIKey, cfg.PairCacheTTL, OptionsFromConfig(cfg)...)
	}, func(cfg *exchange.ProviderConfig) error {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return errors.New("api_key is required")
		}
		return nil
	})
}

// OptionsFromConfig translates provider YAML into client options.
func OptionsFromConfig(cfg *exchange.ProviderConfig) []Option {
	if cfg == nil {
		return nil
	}
	var opts []Option
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	if cfg.Slippage > 0 {
		opts = append(opts, WithSlippage(cfg.Slippage))
	}
	return opts
}
