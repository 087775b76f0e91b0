package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder("test", reg)

	r.RecordSubmission()
	r.RecordSubmission()
	r.SetRegisteredNodes(1)
	r.RecordInvalidPayload()
	r.RecordInternalError()
	r.RecordInjectedFailure("/unauthorized", http.StatusUnauthorized)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.submissions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.registeredNodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.invalidPayloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.internalErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.injectedFailures.WithLabelValues("/unauthorized", "401")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordSubmission()
		r.SetRegisteredNodes(3)
		r.RecordInvalidPayload()
		r.RecordInternalError()
		r.RecordInjectedFailure("/fail", http.StatusInternalServerError)
	})
}

func TestMetricsServer_Exposition(t *testing.T) {
	srv, err := New("rpt-registration-mock", "127.0.0.1:0")
	require.NoError(t, err)

	srv.Recorder().RecordSubmission()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rpt_registration_mock_registration_submissions_total 1")
}
