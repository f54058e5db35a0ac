package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrorKind classifies provider failures so callers can decide whether to
// retry, escalate or skip.
type ErrorKind int

const (
	// KindTransient covers network faults, timeouts and 5xx responses.
	KindTransient ErrorKind = iota
	// KindRateLimited means the provider refused the call because of quota.
	KindRateLimited
	// KindNotFound means the provider does not know the symbol.
	KindNotFound
	// KindInvalid covers rejected requests and undecodable responses.
	KindInvalid
	// KindConfigMissing means the provider cannot be used, e.g. no API key.
	KindConfigMissing
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindRateLimited:
		return "RateLimited"
	case KindNotFound:
		return "NotFound"
	case KindInvalid:
		return "Invalid"
	case KindConfigMissing:
		return "ConfigMissing"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the only error type adapters return for provider failures.
type Error struct {
	Kind     ErrorKind
	Provider string
	Symbol   string
	Status   int    // HTTP status when one was received
	Message  string // Short human readable cause, never a raw payload
	Err      error  // Underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(strings.ToLower(e.Kind.String()))
	if e.Symbol != "" {
		b.WriteString(" symbol=")
		b.WriteString(e.Symbol)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified provider error.
func NewError(kind ErrorKind, provider, symbol, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Symbol: symbol, Message: message}
}

// WrapError builds a classified provider error around cause.
func WrapError(kind ErrorKind, provider, symbol string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Symbol: symbol, Err: cause}
}

// KindOf extracts the classification of err. Unclassified errors are
// treated as transient.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}

// KindForStatus maps an HTTP status to an ErrorKind. ok is false for 2xx.
func KindForStatus(status int) (ErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	case status == http.StatusNotFound:
		return KindNotFound, true
	case status == http.StatusRequestTimeout, status >= 500:
		return KindTransient, true
	case status >= 400:
		return KindInvalid, true
	default:
		return KindTransient, true
	}
}

// ClassifyStatus returns nil for 2xx responses and a classified *Error otherwise.
func ClassifyStatus(provider, symbol string, status int) error {
	kind, failed := KindForStatus(status)
	if !failed {
		return nil
	}
	return &Error{
		Kind:     kind,
		Provider: provider,
		Symbol:   symbol,
		Status:   status,
		Message:  http.StatusText(status),
	}
}

// ClassifyTransport converts a transport level error into a Transient one.
// A *url.Error is replaced by its cause so the request URL, which may carry
// an API key, never reaches a message. Timeouts raised by the HTTP client
// keep their text but not their context identity: only the caller's own
// context reports cancellation, and Get checks that before classifying.
func ClassifyTransport(provider, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTransient, provider, symbol, Truncate(err.Error(), 160))
	}
	return WrapError(KindTransient, provider, symbol, err)
}
