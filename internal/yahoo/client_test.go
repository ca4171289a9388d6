package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/marketbrief/internal/models"
)

// chartJSON builds a chart payload for the given session times and closes ("null" for a missing bar).
func chartJSON(symbol string, gmtOffset int64, times []time.Time, closes []string) string {
	ts := ""
	cl := ""
	for i, t := range times {
		if i > 0 {
			ts += ","
			cl += ","
		}
		ts += fmt.Sprintf("%d", t.Unix())
		cl += closes[i]
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":%q,"currency":"INR","gmtoffset":%d},"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		symbol, gmtOffset, ts, cl)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL), WithRateLimit(100))
}

func TestGetDailyCloses(t *testing.T) {
	// 09:15 IST opens are 03:45 UTC; gmtoffset shifts them back onto the trading date
	times := []time.Time{
		time.Date(2026, 10, 13, 3, 45, 0, 0, time.UTC),
		time.Date(2026, 10, 14, 3, 45, 0, 0, time.UTC),
		time.Date(2026, 10, 15, 3, 45, 0, 0, time.UTC),
	}

	var gotPath, gotRange, gotInterval, gotUA string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON("^NSEI", 19800, times, []string{"25100.5", "null", "25300.25"}))
	})

	bars, currency, err := client.GetDailyCloses(context.Background(), "^NSEI", "5d")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/%5ENSEI", gotPath)
	assert.Equal(t, "5d", gotRange)
	assert.Equal(t, "1d", gotInterval)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "INR", currency)

	require.Len(t, bars, 2, "null close should be skipped")
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 25100.5, bars[0].Close)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), bars[1].Date)
	assert.Equal(t, 25300.25, bars[1].Close)
}

func TestGetDailyCloses_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown symbol",
			status: http.StatusNotFound,
			body:   `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
				assert.Equal(t, "Not Found", apiErr.Code)
				assert.Contains(t, apiErr.Message, "delisted")
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   "Too Many Requests",
			check: func(t *testing.T, err error) {
				var rlErr *RateLimitError
				assert.True(t, errors.As(err, &rlErr))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, "boom", apiErr.Message)
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"chart":`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "failed to decode response")
			},
		},
		{
			name:   "error in 200 payload",
			status: http.StatusOK,
			body:   `{"chart":{"result":[],"error":{"code":"Bad Request","description":"Invalid range"}}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, "Invalid range", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, _, err := client.GetDailyCloses(context.Background(), "^XYZ", "5d")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetDailyCloses_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[]}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := client.GetDailyCloses(ctx, "^GSPC", "5d")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_LatestCloses(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC),
		time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC),
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON("^GSPC", -14400, times, []string{"95", "100"}))
	})

	provider := NewProvider(client)
	assert.Equal(t, "yahoo", provider.Name())

	quote, err := provider.LatestCloses(context.Background(), "^GSPC")
	require.NoError(t, err)
	assert.Equal(t, "^GSPC", quote.Symbol)
	assert.Equal(t, "100", quote.Close.String())
	assert.Equal(t, "95", quote.PriorClose.String())
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), quote.AsOf)
}

func TestProvider_LatestCloses_InsufficientHistory(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC),
		time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC),
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON("^GSPC", -14400, times, []string{"null", "100"}))
	})

	_, err := NewProvider(client).LatestCloses(context.Background(), "^GSPC")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
	assert.Contains(t, err.Error(), "got 1 bars")
}
