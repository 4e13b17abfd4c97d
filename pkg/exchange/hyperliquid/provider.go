package hyperliquid

import (
	"errors"
	"net/http"
	"strings"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

func init() {
	exchange.RegisterProviderWithRequirements("hyperliquid", func(name string, cfg *exchange.ProviderConfig) (exchange.Backend, error) {
		return NewClient(cfg.PrivateKey, OptionsFromConfig(cfg)...)
	}, func(cfg *exchange.ProviderConfig) error {
		if strings.TrimSpace(cfg.PrivateKey) == "" {
			return errors.New("private_key is required")
		}
		return nil
	})
}

// OptionsFromConfig translates provider YAML into client options.
func OptionsFromConfig(cfg *exchange.ProviderConfig) []Option {
	if cfg == nil {
		return nil
	}
	opts := []Option{WithTestnet(cfg.Testnet)}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.VaultAddress != "" {
		opts = append(opts, WithVaultAddress(cfg.VaultAddress))
	}
	if cfg.Slippage > 0 {
		opts = append(opts, WithSlippage(cfg.Slippage))
	}
	return opts
}
