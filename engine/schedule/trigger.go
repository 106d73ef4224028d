package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/flowcraft/corepipe/engine/condition"
	"github.com/flowcraft/corepipe/engine/core"
	"github.com/flowcraft/corepipe/engine/cron"
	"github.com/flowcraft/corepipe/engine/workflow"
	"github.com/flowcraft/corepipe/pkg/logger"
	"github.com/flowcraft/corepipe/pkg/metrics"
)

// RecoveryPolicy is the missed-schedule catch-up strategy a scheduler loop
// applies when resuming from a persisted last-fire date. The core only
// exposes the policy value; applying it is schedule.MissedScheduleRecovery
// or the caller's own loop.
type RecoveryPolicy string

const (
	RecoverAll  RecoveryPolicy = "ALL"
	RecoverLast RecoveryPolicy = "LAST"
	RecoverNone RecoveryPolicy = "NONE"
)

// TriggerConfig is the validated configuration surface of a ScheduleTrigger.
type TriggerConfig struct {
	Cron                   workflow.CronSpec
	Inputs                 core.Input
	Labels                 workflow.Labels
	LateMaximumDelay       time.Duration
	HasLateMaximumDelay    bool
	RecoverMissedSchedules RecoveryPolicy
	Conditions             ConditionSet
	StopAfter              []core.StatusType
}

// ScheduleTrigger is C4: it combines CronEvaluator, ScheduleWindow and
// ConditionFilter to decide when a flow should fire and to build the
// resulting Execution seed.
type ScheduleTrigger struct {
	ID        string
	config    TriggerConfig
	evaluator *condition.Evaluator
	schedule  func() (*cron.Spec, error)
	metrics   *metrics.Registry
}

// NewScheduleTrigger builds a trigger without parsing the cron expression
// eagerly. Callers that want construction-time validation should call
// Spec() immediately after construction and treat its error as fatal
// configuration-load failure, matching the InvalidCronExpression
// propagation policy. A nil registry disables metrics recording.
func NewScheduleTrigger(
	id string,
	config TriggerConfig,
	evaluator *condition.Evaluator,
	registry *metrics.Registry,
) *ScheduleTrigger {
	cronCfg := config.Cron
	var once sync.Once
	var spec *cron.Spec
	var err error
	return &ScheduleTrigger{
		ID:        id,
		config:    config,
		evaluator: evaluator,
		metrics:   registry,
		schedule: func() (*cron.Spec, error) {
			once.Do(func() {
				spec, err = cron.ParseSpec(cronCfg.Expression, cronCfg.WithSeconds, cronCfg.Timezone)
			})
			return spec, err
		},
	}
}

// Spec returns the parsed, cached cron schedule, compiling it on first use.
func (t *ScheduleTrigger) Spec() (*cron.Spec, error) {
	return t.schedule()
}

// NextEvaluationDate determines the next wall-clock instant the scheduler
// should consider firing, per spec.md §4.4 cases 1-3 plus the late-delay
// skip.
func (t *ScheduleTrigger) NextEvaluationDate(
	ctx context.Context,
	last *time.Time,
	backfill *workflow.Backfill,
	now time.Time,
) (time.Time, bool, error) {
	spec, err := t.schedule()
	if err != nil {
		return time.Time{}, false, err
	}
	// A backfill that has advanced past its end reverts to live mode: the
	// gap between backfill.End and now is not replayed, per spec.md's Open
	// Question resolution ("catch-up resumes from now").
	if backfill != nil && backfill.Complete() {
		next, ok := spec.NextAfter(now)
		return next, ok, nil
	}
	inBackfill := backfill != nil

	if last == nil && !inBackfill {
		next, ok := spec.NextAfter(now)
		return next, ok, nil
	}

	var anchor time.Time
	switch {
	case inBackfill:
		anchor = backfill.CurrentDate
	default:
		anchor = *last
	}
	next, ok, err := t.forwardCandidate(ctx, spec, anchor, now)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, nil
	}
	if inBackfill && next.After(backfill.End) {
		reanchored, ok := spec.NextAfter(now)
		return reanchored, ok, nil
	}
	if t.config.HasLateMaximumDelay && !inBackfill {
		return t.applyLateDelayTo(spec, next, now)
	}
	return next, true, nil
}

func (t *ScheduleTrigger) applyLateDelayTo(spec *cron.Spec, anchor, now time.Time) (time.Time, bool, error) {
	window, ok := ScheduleDates(spec, anchor)
	if !ok {
		return time.Time{}, false, nil
	}
	delayed, ok := ApplyLateDelay(spec, window, t.config.LateMaximumDelay, now)
	if !ok {
		return time.Time{}, false, nil
	}
	if delayed.Date.After(window.Date) {
		t.metrics.RecordLateDelaySkip(t.ID)
	}
	return delayed.Date, true, nil
}

func (t *ScheduleTrigger) forwardCandidate(
	ctx context.Context,
	spec *cron.Spec,
	anchor time.Time,
	now time.Time,
) (time.Time, bool, error) {
	if len(t.config.Conditions) == 0 {
		next, ok := spec.NextAfter(anchor)
		return next, ok, nil
	}
	return FindAccepted(ctx, spec, anchor, Forward, t.config.Conditions, t.evaluator, now, t.conditionData)
}

func (t *ScheduleTrigger) conditionData(candidate time.Time) map[string]any {
	return map[string]any{
		"schedule": map[string]any{"date": candidate},
		"trigger":  map[string]any{"id": t.ID},
	}
}

// EvaluateInput is the material the scheduler loop supplies when it has
// decided to fire at Date.
type EvaluateInput struct {
	TriggerContext   workflow.TriggerContext
	Date             time.Time
	PropagatedLabels workflow.Labels
	Now              time.Time
}

// Evaluate is C4's evaluate operation: builds an Execution seed for a
// decided fire, or none (silent skip), or a FAILED seed on condition/
// variable evaluation error, per spec.md §4.4 and §4.3.
func (t *ScheduleTrigger) Evaluate(ctx context.Context, in EvaluateInput) (*workflow.Execution, bool, error) {
	log := logger.FromContext(ctx)
	backfill := in.TriggerContext.Backfill
	if backfill != nil && backfill.Paused {
		return nil, false, nil
	}
	spec, err := t.schedule()
	if err != nil {
		return nil, false, err
	}
	anchor := in.Date
	if backfill != nil {
		anchor = backfill.CurrentDate
	}
	output, ok := ScheduleDates(spec, anchor)
	if !ok {
		t.metrics.RecordSkipped(t.ID)
		return nil, false, nil
	}
	if output.Date.After(in.Now.Add(time.Second)) {
		log.Debug("computed schedule date is more than 1s in the future, skipping", "triggerId", t.ID)
		t.metrics.RecordSkipped(t.ID)
		return nil, false, nil
	}
	if len(t.config.Conditions) > 0 {
		accepted, err := t.config.Conditions.Evaluate(ctx, t.evaluator, t.outputData(output))
		if err != nil {
			log.Error("condition evaluation failed, emitting a failed execution seed", "triggerId", t.ID, "error", err)
			t.metrics.RecordFailed(t.ID)
			return t.failedSeed(in, err), true, nil
		}
		if !accepted {
			t.metrics.RecordConditionRejection(t.ID)
			t.metrics.RecordSkipped(t.ID)
			return nil, false, nil
		}
		if reprojected, err := t.reprojectThroughConditions(ctx, spec, output, in.Now); err != nil {
			log.Error("condition re-projection failed, emitting a failed execution seed", "triggerId", t.ID, "error", err)
			return t.failedSeed(in, err), true, nil
		} else {
			output = reprojected
		}
	}
	labels := t.buildLabels(in, backfill)
	inputs, err := t.buildInputs(backfill)
	if err != nil {
		return nil, false, err
	}
	execID := core.MustNewID()
	execution := &workflow.Execution{
		ID:        execID,
		TenantID:  in.TriggerContext.TenantID,
		Namespace: in.TriggerContext.Namespace,
		FlowID:    in.TriggerContext.FlowID,
		Labels:    labels,
		Inputs:    inputs,
		Trigger: workflow.TriggerRef{
			ID:        t.ID,
			Type:      "schedule",
			Variables: core.Input{"schedule": output, "trigger": output},
		},
		ScheduleDate: &output.Date,
		State:        core.StatusCreated,
	}
	t.metrics.RecordFired(t.ID)
	return execution, true, nil
}

func (t *ScheduleTrigger) reprojectThroughConditions(
	ctx context.Context,
	spec *cron.Spec,
	output *workflow.ScheduleOutput,
	now time.Time,
) (*workflow.ScheduleOutput, error) {
	result := *output
	if next, ok, err := FindAccepted(ctx, spec, output.Date, Forward, t.config.Conditions, t.evaluator, now, t.conditionData); err != nil {
		return nil, err
	} else {
		result.Next, result.HasNext = next, ok
	}
	if prev, ok, err := FindAccepted(ctx, spec, output.Date, Backward, t.config.Conditions, t.evaluator, now, t.conditionData); err != nil {
		return nil, err
	} else {
		result.Previous, result.HasPrev = prev, ok
	}
	return &result, nil
}

func (t *ScheduleTrigger) outputData(output *workflow.ScheduleOutput) map[string]any {
	return map[string]any{
		"schedule": map[string]any{"date": output.Date, "previous": output.Previous, "next": output.Next},
		"trigger":  map[string]any{"id": t.ID},
	}
}

func (t *ScheduleTrigger) buildLabels(in EvaluateInput, backfill *workflow.Backfill) workflow.Labels {
	systemLabels := in.PropagatedLabels.SystemOnly()
	fallback, _ := in.PropagatedLabels.Get(workflow.CorrelationIDLabel)
	if fallback == "" {
		fallback = core.MustNewID().String()
	}
	combined := systemLabels.WithCorrelationID(fallback)
	if backfill != nil {
		combined = combined.Append(backfill.Labels)
	}
	combined = combined.Append(t.config.Labels)
	return combined.Collapse()
}

func (t *ScheduleTrigger) buildInputs(backfill *workflow.Backfill) (core.Input, error) {
	inputs := t.config.Inputs
	if backfill == nil || backfill.Inputs == nil {
		return inputs, nil
	}
	merged, err := (&inputs).Merge(&backfill.Inputs)
	if err != nil {
		return nil, err
	}
	return *merged, nil
}

func (t *ScheduleTrigger) failedSeed(in EvaluateInput, cause error) *workflow.Execution {
	return &workflow.Execution{
		ID:        core.MustNewID(),
		TenantID:  in.TriggerContext.TenantID,
		Namespace: in.TriggerContext.Namespace,
		FlowID:    in.TriggerContext.FlowID,
		State:     core.StatusFailed,
		Trigger: workflow.TriggerRef{
			ID:        t.ID,
			Type:      "schedule",
			Variables: core.Input{"error": cause.Error()},
		},
	}
}
