package svc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exchangepkg "github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
	_ "github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange/hyperliquid"
)

// TestTestnetFlagOverridesProviders verifies that TESTNET forces providers
// onto testnet while a false flag keeps the provider setting.
func TestTestnetFlagOverridesProviders(t *testing.T) {
	tests := []struct {
		name            string
		testnet         bool
		configTestnet   bool
		expectedTestnet bool
	}{
		{"flag forces testnet when config says false", true, false, true},
		{"flag with testnet config stays true", true, true, true},
		{"no flag respects config false", false, false, false},
		{"no flag respects config true", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := `
default: hl
providers:
  hl:
    type: hyperliquid
    private_key: 4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318
    testnet: ` + map[bool]string{true: "true", false: "false"}[tt.configTestnet] + `
`
			ex, err := exchangepkg.LoadConfigFromReader(strings.NewReader(yaml))
			require.NoError(t, err)

			applyTestnet(ex, tt.testnet)
			assert.Equal(t, tt.expectedTestnet, ex.Providers["hl"].Testnet)
		})
	}

	applyTestnet(nil, true)
}
