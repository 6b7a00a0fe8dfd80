package payout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
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
	"github.com/polkiloo/offramp/internal/pkg/signing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sampleRequest() model.PayoutRequest {
	return model.PayoutRequest{
		OrderID:         "order-1",
		Target:          model.PayoutTarget{ID: "bank-1", Currency: "VND", Country: "VN", Descriptor: json.RawMessage(`{"bank":"VCB","account":"0123"}`)},
		FiatAmount:      decimal.NewFromInt(255000),
		FiatCurrency:    "VND",
		SourceAddress:   "0xabc",
		IdempotencyHint: "hint-order-1",
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL, "secret", time.Second, testLogger())
	require.NoError(t, err)
	return client
}

func TestNewHTTPClientValidation(t *testing.T) {
	_, err := NewHTTPClient("relative/path", "k", time.Second, testLogger())
	require.Error(t, err)

	_, err = NewHTTPClient("http://partner", "", time.Second, testLogger())
	var cfgErr *domainErrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSubmitSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "hint-order-1", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-1", body["reference"])
		assert.Equal(t, "255000", body["amount"])
		assert.Equal(t, "VND", body["currency"])
		assert.Equal(t, "bank-1", body["targetId"])
		assert.NotNil(t, body["beneficiary"])

		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p-42","status":"processing"}}`))
	})

	id, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "p-42", id)
}

func TestSubmitClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		ambiguous bool
		code      string
	}{
		{"explicit failure envelope", http.StatusOK, `{"success":false,"error":{"code":"LIMIT","message":"over limit"}}`, false, "LIMIT"},
		{"bad request", http.StatusBadRequest, `{"success":false,"error":{"code":"INVALID_ACCOUNT","message":"no"}}`, false, "INVALID_ACCOUNT"},
		{"unprocessable without body", http.StatusUnprocessableEntity, ``, false, ""},
		{"server error", http.StatusBadGateway, `oops`, true, ""},
		{"rate limited", http.StatusTooManyRequests, ``, true, ""},
		{"request timeout", http.StatusRequestTimeout, ``, true, ""},
		{"undecodable success", http.StatusOK, `<html>`, true, ""},
		{"missing id", http.StatusOK, `{"success":true,"data":{"status":"processing"}}`, true, ""},
		{"conflict without data", http.StatusConflict, `{"success":false,"error":{"code":"DUPLICATE"}}`, true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.Submit(context.Background(), sampleRequest())
			require.Error(t, err)
			require.Equal(t, tc.ambiguous, domainErrors.IsAmbiguous(err))
			require.Equal(t, !tc.ambiguous, domainErrors.IsRejected(err))
			if tc.code != "" {
				var pe *domainErrors.PartnerError
				require.ErrorAs(t, err, &pe)
				require.Equal(t, tc.code, pe.Code)
			}
		})
	}
}

func TestSubmitConflictReturnsExistingPayout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p-existing","status":"processing"}}`))
	})

	id, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "p-existing", id)
}

func TestSubmitTimeoutIsAmbiguous(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewHTTPClient(srv.URL, "secret", 50*time.Millisecond, testLogger())
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), sampleRequest())
	require.Error(t, err)
	require.True(t, domainErrors.IsAmbiguous(err))
}

func TestStatusMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payouts/p-42", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p-42","status":"PAID","reference":"FT123"}}`))
	})

	st, err := client.Status(context.Background(), "p-42")
	require.NoError(t, err)
	require.Equal(t, model.PayoutStateCompleted, st.State)
	require.Equal(t, "FT123", st.Reference)
	require.Equal(t, "p-42", st.PartnerOrderID)
}

func TestStatusServerErrorIsAmbiguous(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Status(context.Background(), "p-42")
	require.True(t, domainErrors.IsAmbiguous(err))
}

func TestMapState(t *testing.T) {
	require.Equal(t, model.PayoutStateCompleted, MapState("succeeded"))
	require.Equal(t, model.PayoutStateFailed, MapState("Rejected"))
	require.Equal(t, model.PayoutStateFailed, MapState("cancelled"))
	require.Equal(t, model.PayoutStateProcessing, MapState("pending"))
	require.Equal(t, model.PayoutStateProcessing, MapState("something-new"))
}

func TestModuleBuildsClientFromConfig(t *testing.T) {
	c, err := newClient(clientParams{
		Config: &config.Config{PayoutAPIAddress: "http://partner", PayoutAPIKey: "k", ExternalTimeout: time.Second},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Nil(t, c.(*HTTPClient).signer)

	c, err = newClient(clientParams{
		Config: &config.Config{PayoutAPIAddress: "http://partner", PayoutAPIKey: "k", PayoutSigningSecret: "s", ExternalTimeout: time.Second},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, c.(*HTTPClient).signer)
}

func expectedSignature(secret string, r *http.Request, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(r.Method + "\n" + r.URL.RequestURI() + "\n" + r.Header.Get(signing.TimestampHeader) + "\n"))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestRequestsAreSignedWhenSignerConfigured(t *testing.T) {
	signer := signing.NewHMACSigner("shared")
	var verified int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NotEmpty(t, r.Header.Get(signing.TimestampHeader))
		assert.Equal(t, expectedSignature("shared", r, body), r.Header.Get(signing.SignatureHeader))
		verified++
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p-42","status":"processing"}}`))
	}).WithSigner(signer)

	_, err := client.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	_, err = client.Status(context.Background(), "p-42")
	require.NoError(t, err)
	require.Equal(t, 2, verified)
}
