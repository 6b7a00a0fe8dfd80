package quote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/offramp/internal/config"
	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/pkg/amount"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func tenUSDC() model.QuoteRequest {
	return model.QuoteRequest{Side: model.AmountSideToken, Amount: decimal.NewFromInt(10), Token: "USDC", Currency: "VND", Country: "VN"}
}

func TestNewHTTPClientValidatesURL(t *testing.T) {
	_, err := NewHTTPClient("://bad-url", time.Second, testLogger())
	require.Error(t, err)
	_, err = NewHTTPClient("/relative", time.Second, testLogger())
	require.Error(t, err)
}

func TestQuoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quotes", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "token", q.Get("side"))
		assert.Equal(t, "10", q.Get("amount"))
		assert.Equal(t, "USDC", q.Get("token"))
		assert.Equal(t, "VND", q.Get("currency"))
		assert.Equal(t, "VN", q.Get("country"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"tokenAmount":"10","fiatAmount":"255000","rate":"25500","fee":"0.5"}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, time.Second, testLogger())
	require.NoError(t, err)

	q, err := client.Quote(context.Background(), tenUSDC())
	require.NoError(t, err)
	require.True(t, q.FiatAmount.Equal(decimal.NewFromInt(255000)))
	require.True(t, q.Rate.Equal(decimal.NewFromInt(25500)))
	require.True(t, q.Fee.Equal(decimal.RequireFromString("0.5")))
	require.True(t, q.TokenAmount.Equal(decimal.NewFromInt(10)))
}

func TestQuoteDerivesMissingCounterAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"rate":25500}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, time.Second, testLogger())
	require.NoError(t, err)

	q, err := client.Quote(context.Background(), tenUSDC())
	require.NoError(t, err)
	require.True(t, q.FiatAmount.Equal(decimal.NewFromInt(255000)))
	require.True(t, q.Fee.IsZero())

	fiat := model.QuoteRequest{Side: model.AmountSideFiat, Amount: decimal.NewFromInt(51000), Token: "USDC", Currency: "VND"}
	q, err = client.Quote(context.Background(), fiat)
	require.NoError(t, err)
	require.True(t, q.TokenAmount.Equal(decimal.NewFromInt(2)))
	require.True(t, q.FiatAmount.Equal(decimal.NewFromInt(51000)))
}

func TestQuoteDerivedTokenAmountIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"rate":"3"}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, time.Second, testLogger())
	require.NoError(t, err)

	fiat := model.QuoteRequest{Side: model.AmountSideFiat, Amount: decimal.NewFromInt(2), Token: "WETH", Currency: "VND"}
	q, err := client.Quote(context.Background(), fiat)
	require.NoError(t, err)

	raw, err := amount.DecimalToRaw(q.TokenAmount, 18)
	require.NoError(t, err)
	require.Equal(t, "666666666666666666", raw)
	require.True(t, q.TokenAmount.Mul(q.Rate).LessThanOrEqual(fiat.Amount))
}

func TestQuoteUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		request model.QuoteRequest
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", request: tenUSDC()},
		{name: "partner error variant", status: http.StatusOK, body: `{"success":false,"error":{"code":"PAIR_DISABLED","message":"disabled"}}`, request: tenUSDC()},
		{name: "malformed", status: http.StatusOK, body: `{"rate":1}`, request: tenUSDC()},
		{name: "zero rate", status: http.StatusOK, body: `{"success":true,"data":{"rate":"0"}}`, request: tenUSDC()},
		{name: "negative fee", status: http.StatusOK, body: `{"success":true,"data":{"rate":"1","fee":"-1"}}`, request: tenUSDC()},
		{name: "non-positive amount", status: http.StatusOK, body: `{"success":true,"data":{"rate":"1"}}`, request: model.QuoteRequest{Side: model.AmountSideToken, Amount: decimal.Zero}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, err := NewHTTPClient(srv.URL, time.Second, testLogger())
			require.NoError(t, err)

			_, err = client.Quote(context.Background(), tc.request)
			require.True(t, errors.Is(err, domainErrors.ErrQuoteUnavailable), "got %v", err)
		})
	}
}

func TestQuoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	_, err = client.Quote(context.Background(), tenUSDC())
	require.ErrorIs(t, err, domainErrors.ErrQuoteUnavailable)
}

func TestNewClientUsesConfig(t *testing.T) {
	cfg := &config.Config{QuoteAPIAddress: "http://example.com", ExternalTimeout: time.Second}
	client, err := newClient(clientParams{Config: cfg, Logger: testLogger()})
	require.NoError(t, err)
	require.NotNil(t, client)
}
