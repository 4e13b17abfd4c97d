package arena

import (
	"encoding/json"
	"strings"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

// apiError is the JSON error body returned by the Arena API.
type apiError struct {
	StatusCode int    `json:"statusCode"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
	Resolution string `json:"resolution"`
	Details    struct {
		ExchangeErrors []string `json:"exchangeErrors"`
	} `json:"details"`
}

func parseAPIError(status int, raw []byte, method, path string) error {
	var body apiError
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}
	if body.ErrorCode == "" {
		body.ErrorCode = "UNKNOWN"
	}
	e := errkit.HTTPStatus(status, string(raw), "arena: %s %s: %s: %s", method, path, body.ErrorCode, body.Message)
	e.With("errorCode", body.ErrorCode)
	if body.Resolution != "" {
		e.With("resolution", body.Resolution)
	}
	if len(body.Details.ExchangeErrors) > 0 {
		e.With("exchangeErrors", strings.Join(body.Details.ExchangeErrors, ", "))
	}
	return e
}
