package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/offramp/internal/config"
	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func serve(t *testing.T, status int, body string) *HTTPResolver {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payout-targets/bank-1", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	r, err := NewHTTPResolver(srv.URL, time.Second, testLogger())
	require.NoError(t, err)
	return r
}

func TestResolveSuccess(t *testing.T) {
	r := serve(t, http.StatusOK, `{"success":true,"data":{"id":"bank-1","currency":"vnd","country":"vn","descriptor":{"bank":"VCB","account":"0123"}}}`)

	target, err := r.Resolve(context.Background(), "bank-1")
	require.NoError(t, err)
	require.Equal(t, "bank-1", target.ID)
	require.Equal(t, "VND", target.Currency)
	require.Equal(t, "VN", target.Country)
	require.JSONEq(t, `{"bank":"VCB","account":"0123"}`, string(target.Descriptor))
}

func TestResolveNotFound(t *testing.T) {
	r := serve(t, http.StatusNotFound, ``)
	_, err := r.Resolve(context.Background(), "bank-1")
	require.ErrorIs(t, err, domainErrors.ErrNotFound)

	r = serve(t, http.StatusOK, `{"success":false,"error":{"code":"UNKNOWN_TARGET"}}`)
	_, err = r.Resolve(context.Background(), "bank-1")
	require.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestResolveUnavailable(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":     {http.StatusInternalServerError, `boom`},
		"malformed":        {http.StatusOK, `{"data":{}}`},
		"missing currency": {http.StatusOK, `{"success":true,"data":{"id":"bank-1"}}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := serve(t, tc.status, tc.body)
			_, err := r.Resolve(context.Background(), "bank-1")
			require.ErrorIs(t, err, domainErrors.ErrTargetUnavailable)
		})
	}
}

func TestResolveRejectsEmptyID(t *testing.T) {
	r, err := NewHTTPResolver("http://directory", time.Second, testLogger())
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "  ")
	var ve *domainErrors.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestModuleBuildsResolver(t *testing.T) {
	_, err := newResolver(resolverParams{Config: &config.Config{DirectoryAPIAddress: "http://directory"}, Logger: testLogger()})
	require.NoError(t, err)

	_, err = newResolver(resolverParams{Config: &config.Config{DirectoryAPIAddress: ""}, Logger: testLogger()})
	require.Error(t, err)
}
