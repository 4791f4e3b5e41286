package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metaResponse = `[
  {"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":50},{"name":"ETH","szDecimals":4,"maxLeverage":50}]},
  [{"markPx":"50000.0","oraclePx":"49990.0"},{"markPx":"3000.5","oraclePx":"3001.0"}]
]`

const clearinghouseResponse = `{
  "marginSummary":{"accountValue":"12500.0","totalNtlPos":"0","totalRawUsd":"0","totalMarginUsed":"0"},
  "crossMarginSummary":{"accountValue":"10000.0","totalNtlPos":"0","totalRawUsd":"0","totalMarginUsed":"0"},
  "crossMaintenanceMarginUsed":"7500.0",
  "withdrawable":"100.0",
  "assetPositions":[
    {"type":"oneWay","position":{"coin":"BTC","szi":"-0.5","leverage":{"type":"cross","value":20},
      "entryPx":"48000.0","liquidationPx":"52000.0","unrealizedPnl":"-1000.0"}},
    {"type":"oneWay","position":{"coin":"ETH","szi":"2.0","leverage":{"type":"isolated","value":10},
      "entryPx":"3100.0","liquidationPx":null,"unrealizedPnl":"-199.0"}}
  ],
  "time":1700000000000
}`

// newInfoServer serves responses keyed by the request "type" field.
func newInfoServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]InfoRequest) {
	t.Helper()
	var seen []InfoRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req InfoRequest
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		seen = append(seen, req)

		resp, ok := responses[req.Type]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(server.Close)

	return server, &seen
}

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/info")

		assert.Equal(t, "https://api.example.com/info", c.infoURL)
		assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
		assert.Equal(t, 2, c.maxRetries)
		assert.Equal(t, time.Second, c.retryBackoff)
		assert.NotNil(t, c.logger)
		assert.Nil(t, c.limiter)
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		c := NewClient("https://api.example.com/info",
			WithTimeout(5*time.Second),
			WithRetries(4, 500*time.Millisecond),
			WithLogger(logger),
			WithRateLimit(10, 0),
		)

		assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
		assert.Equal(t, 4, c.maxRetries)
		assert.Equal(t, 500*time.Millisecond, c.retryBackoff)
		assert.Same(t, logger, c.logger)
		require.NotNil(t, c.limiter)
		assert.Equal(t, 1, c.limiter.Burst())
	})

	t.Run("non-positive rate disables limiter", func(t *testing.T) {
		c := NewClient("x", WithRateLimit(0, 5))
		assert.Nil(t, c.limiter)
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		hc := &http.Client{Timeout: time.Minute}
		c := NewClient("x", WithHTTPClient(hc))
		assert.Same(t, hc, c.httpClient)
	})
}

func TestFetchMarketSnapshot(t *testing.T) {
	server, seen := newInfoServer(t, map[string]string{TypeMetaAndAssetCtxs: metaResponse})
	c := NewClient(server.URL)

	snap, err := c.FetchMarketSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, InfoRequest{Type: "metaAndAssetCtxs"}, (*seen)[0])

	assert.Equal(t, 2, snap.Len())
	px, ok := snap.MarkPrice("ETH")
	require.True(t, ok)
	assert.Equal(t, 3000.5, px)
	assert.False(t, snap.FetchedAt().IsZero())
}

func TestFetchMarketSnapshotMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not an array", `{"universe":[]}`},
		{"one element", `[{"universe":[]}]`},
		{"length mismatch", `[{"universe":[{"name":"BTC"},{"name":"ETH"}]},[{"markPx":"1.0"}]]`},
		{"unparsable price", `[{"universe":[{"name":"BTC"}]},[{"markPx":"abc"}]]`},
		{"zero price", `[{"universe":[{"name":"BTC"}]},[{"markPx":"0"}]]`},
		{"missing price", `[{"universe":[{"name":"BTC"}]},[{"oraclePx":"1"}]]`},
		{"unnamed asset", `[{"universe":[{"name":""}]},[{"markPx":"1"}]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newInfoServer(t, map[string]string{TypeMetaAndAssetCtxs: tt.body})
			c := NewClient(server.URL)

			_, err := c.FetchMarketSnapshot(context.Background())
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, TypeMetaAndAssetCtxs, fe.Op)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestGetAccountState(t *testing.T) {
	server, seen := newInfoServer(t, map[string]string{TypeClearinghouseState: clearinghouseResponse})
	c := NewClient(server.URL)

	wallet := "0x1234567890abcdef1234567890abcdef12345678"
	state, err := c.GetAccountState(context.Background(), wallet)
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, InfoRequest{Type: "clearinghouseState", User: wallet}, (*seen)[0])

	assert.Equal(t, 12500.0, state.AccountValue)
	assert.Equal(t, 10000.0, state.CrossAccountValue)
	assert.Equal(t, 7500.0, state.CrossMaintenanceMarginUsed)
	require.Len(t, state.Positions, 2)

	btc := state.Positions[0]
	assert.Equal(t, "BTC", btc.Coin)
	assert.Equal(t, -0.5, btc.Size)
	assert.Equal(t, "cross", string(btc.MarginMode()))
	assert.Equal(t, 20, btc.Leverage.Value)
	require.NotNil(t, btc.LiquidationPrice)
	assert.Equal(t, 52000.0, *btc.LiquidationPrice)

	eth := state.Positions[1]
	assert.Equal(t, "isolated", string(eth.MarginMode()))
	assert.Nil(t, eth.LiquidationPrice)
	assert.Equal(t, -199.0, eth.UnrealizedPnl)
}

func TestGetAccountStateMalformed(t *testing.T) {
	server, _ := newInfoServer(t, map[string]string{
		TypeClearinghouseState: `{"marginSummary":{"accountValue":"1"},"assetPositions":[]}`,
	})
	c := NewClient(server.URL)

	_, err := c.GetAccountState(context.Background(), "0xabc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(clearinghouseResponse))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))

	state, err := c.GetAccountState(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, state.CrossAccountValue)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchMarketSnapshotSingleAttempt(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			c := NewClient(server.URL, WithRetries(3, time.Millisecond))

			_, err := c.FetchMarketSnapshot(context.Background())
			require.Error(t, err)
			assert.NotContains(t, err.Error(), "max retries exceeded")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, status, apiErr.StatusCode)
			assert.Equal(t, int32(1), attempts.Load())
		})
	}
}

func TestZeroRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(0, time.Millisecond))

	_, err := c.GetAccountState(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))

	_, err := c.FetchMarketSnapshot(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.False(t, apiErr.IsRetryable())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(1, time.Millisecond))

	_, err := c.GetAccountState(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, TypeClearinghouseState, fe.Op)
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(5, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetAccountState(ctx, "0xabc")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
