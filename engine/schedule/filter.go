package schedule

import (
	"context"
	"time"

	"github.com/flowcraft/corepipe/engine/condition"
	"github.com/flowcraft/corepipe/engine/cron"
)

// Condition is a single CEL boolean expression evaluated against the
// candidate fire's context data.
type Condition struct {
	Expression string
}

// ConditionSet is an ordered, AND-ed list of Condition.
type ConditionSet []Condition

// Evaluate runs every condition in order, short-circuiting on the first
// false or erroring result.
func (c ConditionSet) Evaluate(ctx context.Context, evaluator *condition.Evaluator, data map[string]any) (bool, error) {
	for _, cond := range c {
		accepted, err := evaluator.Evaluate(ctx, cond.Expression, data)
		if err != nil {
			return false, err
		}
		if !accepted {
			return false, nil
		}
	}
	return true, nil
}

// Direction selects which primitive findAccepted advances the cursor with.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ConditionData builds the evaluation context for a candidate fire instant.
type ConditionData func(candidate time.Time) map[string]any

// FindAccepted advances cursor via spec.NextAfter (Forward) or
// spec.LastBefore (Backward) until a fire is accepted by conditions, or the
// candidate drifts more than searchHorizonYears from now in either
// direction. With no conditions configured it degenerates to a single
// nextAfter/lastBefore call.
func FindAccepted(
	ctx context.Context,
	spec *cron.Spec,
	cursor time.Time,
	direction Direction,
	conditions ConditionSet,
	evaluator *condition.Evaluator,
	now time.Time,
	data ConditionData,
) (time.Time, bool, error) {
	if len(conditions) == 0 {
		return advance(spec, cursor, direction)
	}
	minBound := now.AddDate(-searchHorizonYears, 0, 0)
	maxBound := now.AddDate(searchHorizonYears, 0, 0)
	candidate := cursor
	for {
		next, ok := advance(spec, candidate, direction)
		if !ok {
			return time.Time{}, false, nil
		}
		candidate = next
		if candidate.After(maxBound) || candidate.Before(minBound) {
			return time.Time{}, false, nil
		}
		accepted, err := conditions.Evaluate(ctx, evaluator, data(candidate))
		if err != nil {
			return time.Time{}, false, err
		}
		if accepted {
			return candidate, true, nil
		}
	}
}

func advance(spec *cron.Spec, cursor time.Time, direction Direction) (time.Time, bool) {
	if direction == Forward {
		return spec.NextAfter(cursor)
	}
	return spec.LastBefore(cursor)
}
