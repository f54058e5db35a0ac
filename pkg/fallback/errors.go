package fallback

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviders is returned by New when the chain is empty.
var ErrNoProviders = errors.New("fallback: no providers configured")

// Attempt records the last error seen from one provider.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedProvidersError is returned when every provider in the chain failed
// or was skipped for lack of configuration.
type ExhaustedProvidersError struct {
	Symbol   string
	Attempts []Attempt
	Skipped  []string
}

func (e *ExhaustedProvidersError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fallback: all providers exhausted symbol=%s", e.Symbol)
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Provider, a.Err)
	}
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&b, " (skipped: %s)", strings.Join(e.Skipped, ", "))
	}
	return b.String()
}

// Unwrap exposes each provider's last error to errors.Is and errors.As.
func (e *ExhaustedProvidersError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// IsExhausted reports whether err is an ExhaustedProvidersError.
func IsExhausted(err error) bool {
	var target *ExhaustedProvidersError
	return errors.As(err, &target)
}
