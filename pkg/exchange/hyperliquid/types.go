package hyperliquid

import (
	"encoding/json"
	"fmt"
)

// infoRequest targets read-only endpoints that do not require signatures.
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type metaAndAssetCtxs struct {
	Universe  []universeEntry `json:"universe"`
	AssetCtxs []assetCtx      `json:"assetCtxs"`
}

// UnmarshalJSON accepts both the object form and the [meta, ctxs] tuple the
// API actually returns.
func (m *metaAndAssetCtxs) UnmarshalJSON(data []byte) error {
	type alias metaAndAssetCtxs
	var object alias
	if err := json.Unmarshal(data, &object); err == nil && len(object.Universe) > 0 {
		*m = metaAndAssetCtxs(object)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("hyperliquid: metaAndAssetCtxs decode: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("hyperliquid: metaAndAssetCtxs empty payload")
	}
	var meta struct {
		Universe []universeEntry `json:"universe"`
	}
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return fmt.Errorf("hyperliquid: metaAndAssetCtxs universe: %w", err)
	}
	m.Universe = meta.Universe
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &m.AssetCtxs); err != nil {
			return fmt.Errorf("hyperliquid: metaAndAssetCtxs assetCtxs: %w", err)
		}
	}
	return nil
}

type universeEntry struct {
	Name        string  `json:"name"`
	SzDecimals  int     `json:"szDecimals"`
	MaxLeverage float64 `json:"maxLeverage"`
	IsDelisted  bool    `json:"isDelisted"`
}

type assetCtx struct {
	MarkPx string `json:"markPx"`
	MidPx  string `json:"midPx"`
}

// AssetInfo is the trading metadata needed to build an order.
type AssetInfo struct {
	Name        string
	Index       int
	SzDecimals  int
	MaxLeverage float64
	IsDelisted  bool
	MarkPx      string
	MidPx       string
}

// Wire payloads. Field order matters: actions are msgpack-hashed in
// declaration order before signing.

type orderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []orderWire `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

type orderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Sz         string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  orderTypeWire `json:"t" msgpack:"t"`
}

type orderTypeWire struct {
	Limit limitWire `json:"limit" msgpack:"limit"`
}

type limitWire struct {
	TIF string `json:"tif" msgpack:"tif"`
}

type updateLeverageAction struct {
	Type     string `json:"type" msgpack:"type"`
	Asset    int    `json:"asset" msgpack:"asset"`
	IsCross  bool   `json:"isCross" msgpack:"isCross"`
	Leverage int    `json:"leverage" msgpack:"leverage"`
}

// exchangeRequest is the signed request envelope for exchange actions.
type exchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress string    `json:"vaultAddress,omitempty"`
}

// Signature represents an ECDSA signature.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// exchangeEnvelope is the outer shape of every exchange response.
type exchangeEnvelope struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}
