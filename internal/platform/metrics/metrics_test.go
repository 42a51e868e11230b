package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAuditAppended("CREATE_PATIENT")
		m.IncIntegrityCheck("valid")
		m.IncSessionRecorded(false)
		m.IncTherapyCompleted()
		m.IncAssignment("doctor", "load")
		m.IncReassignmentUnavailable()
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncAuditAppended("RECORD_SESSION")
	m.IncAuditAppended("RECORD_SESSION")
	m.IncAssignment("practitioner", "leave")
	m.IncSessionRecorded(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditAppended.WithLabelValues("RECORD_SESSION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assignments.WithLabelValues("practitioner", "leave")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsRecorded.WithLabelValues("false")))
}

func TestHandlerExposesClinicMetrics(t *testing.T) {
	m := New()
	m.IncTherapyCompleted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "clinic_therapies_completed_total 1"))
}
