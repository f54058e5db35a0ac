package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 32 << 20

// Get issues a GET against rawURL and returns the body of a 2xx response.
// Transport faults and non-2xx statuses come back as classified *Error values;
// the response payload is never copied into the error.
func Get(ctx context.Context, hc *http.Client, provider, symbol, rawURL string, header http.Header) ([]byte, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, WrapError(KindInvalid, provider, symbol, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ClassifyTransport(provider, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ClassifyTransport(provider, symbol, fmt.Errorf("read response: %w", err))
	}
	if err := ClassifyStatus(provider, symbol, resp.StatusCode); err != nil {
		return body, err
	}
	return body, nil
}

// Truncate shortens provider supplied messages before they reach summaries.
// n counts bytes; the cut moves back to the nearest rune boundary.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
