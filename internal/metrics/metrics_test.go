package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := New()

	reg.OrderTransition("COMPLETED")
	reg.OrderTransition("COMPLETED")
	reg.Verification("success")
	reg.PayoutSubmission(OutcomeAmbiguous)
	reg.ReconcileBatch(3)

	require.Equal(t, 2.0, testutil.ToFloat64(reg.transitions.WithLabelValues("COMPLETED")))
	require.Equal(t, 1.0, testutil.ToFloat64(reg.verifications.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(reg.submissions.WithLabelValues(OutcomeAmbiguous)))
	require.Equal(t, 1, testutil.CollectAndCount(reg.batchSize))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := New()
	reg.PayoutSubmission(OutcomeAccepted)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `offramp_payout_submissions_total{outcome="accepted"} 1`))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.OrderTransition("FAILED")
	require.Equal(t, 0.0, testutil.ToFloat64(b.transitions.WithLabelValues("FAILED")))
}
