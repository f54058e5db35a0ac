package twelvedata

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/cassette"
	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Replays a recorded /time_series call. Skips when the cassette is absent
// unless RECORD_CASSETTES=1, in which case TWELVE_DATA_API_KEY must be set.
func TestClient_TimeSeries_Recorded(t *testing.T) {
	cassettePath := filepath.Join("testdata", "cassettes", "twelvedata_time_series")
	if _, err := os.Stat(cassettePath + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassettePath)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassettePath), 0o755))
	}

	r, err := recorder.New(cassettePath)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()
	r.AddFilter(func(i *cassette.Interaction) error {
		if u, err := url.Parse(i.Request.URL); err == nil {
			values := u.Query()
			values.Set("apikey", "REDACTED")
			u.RawQuery = values.Encode()
			i.Request.URL = u.String()
		}
		return nil
	})

	apiKey := os.Getenv("TWELVE_DATA_API_KEY")
	if apiKey == "" {
		apiKey = "REDACTED"
	}
	client := NewClient(WithHTTPClient(&http.Client{Transport: r}), WithAPIKey(apiKey))
	points, err := client.TimeSeries(context.Background(), "AAPL", day("2024-01-02"), day("2024-01-10"))
	require.NoError(t, err)
	assert.NotEmpty(t, points)
	for _, p := range points {
		assert.True(t, p.Close.IsPositive())
	}
}
