// Command walletcheck prints the account state of the configured wallets on
// both Hyperliquid networks and flags an unregistered API wallet setup.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/config"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange/hyperliquid"
)

const (
	mainnetInfoURL = "https://api.hyperliquid.xyz/info"
	testnetInfoURL = "https://api.hyperliquid-testnet.xyz/info"
)

var configFile = flag.String("f", "etc/copytrader.yaml", "the config file")

type accountReader interface {
	GetAccountState(ctx context.Context, address string) (*exchange.AccountState, error)
}

func main() {
	flag.Parse()
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletcheck: %v\n", err)
		os.Exit(1)
	}

	apiWallet := ""
	if pk := strings.TrimSpace(cfg.Wallet.PrivateKey); pk != "" {
		signer, err := hyperliquid.NewPrivateKeySigner(pk)
		if err != nil {
			fmt.Fprintf(os.Stderr, "walletcheck: decode private key: %v\n", err)
			os.Exit(1)
		}
		apiWallet = signer.Address()
	}

	printWallets(os.Stdout, strings.ToLower(cfg.Wallet.Address), apiWallet)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, net := range []struct{ name, url string }{{"TESTNET", testnetInfoURL}, {"MAINNET", mainnetInfoURL}} {
		client := hyperliquid.NewInfoClient(hyperliquid.WithInfoURL(net.url))
		fmt.Printf("\n--- %s ---\n", net.name)
		for _, addr := range []string{cfg.Wallet.Address, cfg.Copy.TargetWallet} {
			printAccount(ctx, os.Stdout, client, addr)
		}
	}
}

func printWallets(w io.Writer, mainAddr, apiWallet string) {
	fmt.Fprintf(w, "Main account: %s\n", mainAddr)
	if apiWallet == "" {
		fmt.Fprintln(w, "API wallet: not configured (Arena execution)")
		return
	}
	fmt.Fprintf(w, "API wallet (from private key): %s\n", apiWallet)
	if apiWallet != mainAddr {
		fmt.Fprintln(w, "API wallet mode: the API wallet must be registered under Settings → API of the main account.")
	}
}

func printAccount(ctx context.Context, w io.Writer, client accountReader, addr string) {
	state, err := client.GetAccountState(ctx, addr)
	if err != nil {
		fmt.Fprintf(w, "%s: error: %v\n", addr, err)
		return
	}
	fmt.Fprintf(w, "%s: equity $%s, margin used $%s\n", addr, state.MarginSummary.AccountValue, state.MarginSummary.TotalMarginUsed)
	for _, p := range state.Positions() {
		if p.Size() == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s %s @ %s (%dx %s)\n", p.Coin, p.Szi, p.EntryPx, p.Leverage.Value, p.Leverage.Type)
	}
}
