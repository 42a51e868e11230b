// Package metrics holds the Prometheus collectors for the clinic core. All
// methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Audit chain appends by action
	AuditAppended *prometheus.CounterVec

	// Integrity verifications by result: "valid", "tampered", "error"
	IntegrityChecks *prometheus.CounterVec

	// Sessions recorded by attendance
	SessionsRecorded *prometheus.CounterVec

	TherapiesCompleted prometheus.Counter

	// Staff assignments by role ("doctor", "practitioner") and reason
	// ("load", "emergency", "leave")
	Assignments *prometheus.CounterVec

	// Leave reassignment batches that found no candidate practitioner
	ReassignmentUnavailable prometheus.Counter
}

// New registers the clinic collectors, plus the Go and process collectors, on
// a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuditAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_audit_entries_appended_total",
			Help: "Audit log entries appended by action",
		}, []string{"action"}),
		IntegrityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_audit_integrity_checks_total",
			Help: "Audit chain integrity verifications by result",
		}, []string{"result"}),
		SessionsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_sessions_recorded_total",
			Help: "Therapy sessions recorded by attendance",
		}, []string{"attended"}),
		TherapiesCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "clinic_therapies_completed_total",
			Help: "Therapies that reached COMPLETED",
		}),
		Assignments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_staff_assignments_total",
			Help: "Patients routed to staff by role and reason",
		}, []string{"role", "reason"}),
		ReassignmentUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "clinic_leave_reassignment_unavailable_total",
			Help: "Leave reassignments aborted because no practitioner was available",
		}),
	}
}

func (m *Metrics) IncAuditAppended(action string) {
	if m != nil {
		m.AuditAppended.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncIntegrityCheck(result string) {
	if m != nil {
		m.IntegrityChecks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncSessionRecorded(attended bool) {
	if m != nil {
		label := "false"
		if attended {
			label = "true"
		}
		m.SessionsRecorded.WithLabelValues(label).Inc()
	}
}

func (m *Metrics) IncTherapyCompleted() {
	if m != nil {
		m.TherapiesCompleted.Inc()
	}
}

func (m *Metrics) IncAssignment(role, reason string) {
	if m != nil {
		m.Assignments.WithLabelValues(role, reason).Inc()
	}
}

func (m *Metrics) IncReassignmentUnavailable() {
	if m != nil {
		m.ReassignmentUnavailable.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
