package config

import (
	"strconv"
	"strings"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overlays the process environment on values read from YAML. Unset
// or blank variables leave the YAML value in place.
func (c *Config) applyEnv(lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"COPY_TRADING_TARGET_WALLET", &c.Copy.TargetWallet},
		{"BLOCKED_ASSETS", &c.Copy.BlockedAssets},
		{"LOG_LEVEL", &c.Copy.LogLevel},
		{"MAIN_WALLET_ADDRESS", &c.Wallet.Address},
		{"MAIN_WALLET_PRIVATE_KEY", &c.Wallet.PrivateKey},
		{"ARENA_API_KEY", &c.Arena.APIKey},
		{"ARENA_BASE_URL", &c.Arena.BaseURL},
		{"HYPERLIQUID_INFO_URL", &c.Hyperliquid.InfoURL},
	}
	for _, s := range strs {
		if v, ok := get(s.key); ok {
			*s.dst = v
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"SIZE_MULTIPLIER", &c.Copy.SizeMultiplier},
		{"MAX_POSITION_SIZE_PERCENT", &c.Copy.MaxPositionPercent},
		{"MIN_NOTIONAL", &c.Copy.MinNotional},
	}
	for _, f := range floats {
		v, ok := get(f.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errkit.Config("config: %s=%q is not a number", f.key, v)
		}
		*f.dst = n
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_LEVERAGE", &c.Copy.MaxLeverage},
		{"MAX_CONCURRENT_TRADES", &c.Copy.MaxConcurrentTrades},
	}
	for _, i := range ints {
		v, ok := get(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errkit.Config("config: %s=%q is not an integer", i.key, v)
		}
		*i.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"DRY_RUN", &c.Copy.DryRun},
		{"ARENA_FEED_ENABLED", &c.Notify.Enabled},
		{"TESTNET", &c.Hyperliquid.Testnet},
	}
	for _, b := range bools {
		v, ok := get(b.key)
		if !ok {
			continue
		}
		flag, err := strconv.ParseBool(v)
		if err != nil {
			return errkit.Config("config: %s=%q is not a boolean", b.key, v)
		}
		*b.dst = flag
	}
	return nil
}
