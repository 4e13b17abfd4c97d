package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/config"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app
// config. Secrets are reported only as configured or not.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	blocked := "none"
	if assets := cfg.BlockedAssets(); len(assets) > 0 {
		blocked = strings.Join(assets, ", ")
	}
	network := "mainnet"
	if cfg.Hyperliquid.Testnet {
		network = "testnet"
	}

	return []string{
		fmt.Sprintf("Target wallet: %s", cfg.Copy.TargetWallet),
		fmt.Sprintf("Main wallet: %s", cfg.Wallet.Address),
		fmt.Sprintf("Network: %s", network),
		fmt.Sprintf("Dry run: %t", cfg.Copy.DryRun),
		fmt.Sprintf("Size multiplier: %gx", cfg.Copy.SizeMultiplier),
		fmt.Sprintf("Max leverage: %dx", cfg.Copy.MaxLeverage),
		fmt.Sprintf("Max position size: %g%% of equity", cfg.Copy.MaxPositionPercent),
		fmt.Sprintf("Min notional: $%g", cfg.Copy.MinNotional),
		fmt.Sprintf("Max concurrent trades: %d", cfg.Copy.MaxConcurrentTrades),
		fmt.Sprintf("Blocked assets: %s", blocked),
		fmt.Sprintf("Arena API key: %s", presence(cfg.Arena.APIKey != "")),
		fmt.Sprintf("Arena feed: %s", enabled(cfg.Notify.Enabled)),
		fmt.Sprintf("Hyperliquid private key: %s", presence(cfg.Wallet.PrivateKey != "")),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("SQLite: %s", valueOr(cfg.SQLite.Path, "not configured")),
		fmt.Sprintf("Journal: %s", valueOr(cfg.Journal.Dir, "not configured")),
		sectionLine("Exchange config", cfg.Exchange),
	}
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
