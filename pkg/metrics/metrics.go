// Package metrics exposes the Prometheus instruments the schedule and task
// packages update as they evaluate triggers and converge iterations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the counters a ScheduleTrigger and Aggregator update.
// A nil *Registry is safe to use: every method becomes a no-op, so callers
// that never wire metrics (most unit tests) don't need a stub.
type Registry struct {
	TriggerEvaluations    *prometheus.CounterVec
	ConditionRejections   *prometheus.CounterVec
	LateDelaySkips        *prometheus.CounterVec
	AggregatorConvergence *prometheus.CounterVec
}

// NewRegistry registers every instrument against reg and returns the bundle.
// Pass prometheus.NewRegistry() in production; tests that don't care about
// metrics can pass nil to NewRegistry and use the resulting no-op Registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Registry{
		TriggerEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_trigger_evaluations_total",
			Help: "Number of ScheduleTrigger.Evaluate calls, by outcome.",
		}, []string{"trigger_id", "outcome"}),
		ConditionRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_condition_rejections_total",
			Help: "Number of candidate schedule dates rejected by a condition filter.",
		}, []string{"trigger_id"}),
		LateDelaySkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_late_delay_skips_total",
			Help: "Number of schedule dates skipped for exceeding their late maximum delay.",
		}, []string{"trigger_id"}),
		AggregatorConvergence: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "task_iteration_aggregator_convergence_total",
			Help: "Number of IterationAggregator.Apply calls that converged, by terminal state.",
		}, []string{"state"}),
	}
}

func (r *Registry) evaluation(triggerID, outcome string) {
	if r == nil {
		return
	}
	r.TriggerEvaluations.WithLabelValues(triggerID, outcome).Inc()
}

// RecordFired records a successful fire for triggerID.
func (r *Registry) RecordFired(triggerID string) { r.evaluation(triggerID, "fired") }

// RecordSkipped records a silent skip (no error, no fire) for triggerID.
func (r *Registry) RecordSkipped(triggerID string) { r.evaluation(triggerID, "skipped") }

// RecordFailed records a failed-seed evaluation for triggerID.
func (r *Registry) RecordFailed(triggerID string) { r.evaluation(triggerID, "failed") }

// RecordConditionRejection records one candidate date rejected by the
// condition filter for triggerID.
func (r *Registry) RecordConditionRejection(triggerID string) {
	if r == nil {
		return
	}
	r.ConditionRejections.WithLabelValues(triggerID).Inc()
}

// RecordLateDelaySkip records one schedule date dropped for exceeding its
// late maximum delay for triggerID.
func (r *Registry) RecordLateDelaySkip(triggerID string) {
	if r == nil {
		return
	}
	r.LateDelaySkips.WithLabelValues(triggerID).Inc()
}

// RecordConvergence records one IterationAggregator.Apply call that
// converged to the given terminal state.
func (r *Registry) RecordConvergence(state string) {
	if r == nil {
		return
	}
	r.AggregatorConvergence.WithLabelValues(state).Inc()
}
