// Package errkit tags failures raised while mirroring trades with a kind,
// a retryable flag and structured context for logging.
package errkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"syscall"
)

// Kind groups failures by how the engine reacts to them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransient covers network and transport failures.
	KindTransient
	// KindValidation covers risk-limit and malformed-input rejections.
	KindValidation
	// KindTrading covers executions the transport accepted but that failed semantically.
	KindTrading
	// KindConfig covers invalid static configuration.
	KindConfig
	// KindFatal covers failures that should stop the process.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindTrading:
		return "trading"
	case KindConfig:
		return "config"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Codes used across packages.
const (
	CodeNetwork          = "network"
	CodeHTTPStatus       = "http_status"
	CodeRateLimited      = "rate_limited"
	CodeBlockedAsset     = "blocked_asset"
	CodeBelowMinNotional = "below_min_notional"
	CodeLeverageTooHigh  = "leverage_too_high"
	CodePositionTooLarge = "position_too_large"
	CodeInvalidEquity    = "invalid_equity"
	CodeInvalidSize      = "invalid_size"
	CodeNoOrderID        = "no_order_id"
	CodeOrderRejected    = "order_rejected"
	CodeStreamExhausted  = "stream_exhausted"
	CodeStreamPanic      = "stream_panic"
	CodeStartup          = "startup"
	CodeInvalidConfig    = "invalid_config"
)

// Error is a tagged failure.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Retryable bool
	Context   map[string]any
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		b.WriteString("(" + e.Code + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches a context entry and returns the receiver.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New builds an Error whose retryable flag follows its kind.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: kind == KindTransient,
	}
}

// Wrap tags err with kind and code.
func Wrap(err error, kind Kind, code, format string, args ...any) *Error {
	e := New(kind, code, format, args...)
	e.Err = err
	return e
}

func Validation(code, format string, args ...any) *Error {
	return New(KindValidation, code, format, args...)
}

func Trading(code, format string, args ...any) *Error {
	return New(KindTrading, code, format, args...)
}

func Transient(err error, code, format string, args ...any) *Error {
	return Wrap(err, KindTransient, code, format, args...)
}

func Config(format string, args ...any) *Error {
	return New(KindConfig, CodeInvalidConfig, format, args...)
}

// KindOf reports the kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf reports the code of the first tagged error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return code != "" && CodeOf(err) == code
}

// ContextOf merges the context of every tagged error in err's chain.
// Outer entries win over inner ones.
func ContextOf(err error) map[string]any {
	out := make(map[string]any)
	for err != nil {
		if e, ok := err.(*Error); ok {
			for k, v := range e.Context {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
		}
		err = errors.Unwrap(err)
	}
	return out
}

// ContextKeys returns the context keys in a stable order.
func ContextKeys(ctx map[string]any) []string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var transientHints = []string{"network", "timeout", "connection", "econnreset", "enotfound"}

// IsRetryable decides whether a failed call may be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Retryable
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// HTTPStatus tags a non-2xx response. 408, 429 and 5xx are transient,
// every other status is a non-retryable trading failure.
func HTTPStatus(status int, body string, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	var e *Error
	switch {
	case status == 429:
		e = New(KindTransient, CodeRateLimited, "%s: http status %d", msg, status)
	case status == 408 || status >= 500:
		e = New(KindTransient, CodeHTTPStatus, "%s: http status %d", msg, status)
	default:
		e = New(KindTrading, CodeHTTPStatus, "%s: http status %d", msg, status)
	}
	e.With("status", status)
	if body = strings.TrimSpace(body); body != "" {
		if len(body) > 512 {
			body = body[:512]
		}
		e.With("body", body)
	}
	return e
}
