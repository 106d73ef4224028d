// Package schedule implements C2 (ScheduleWindow), the search half of C3
// (ConditionFilter), and C4 (ScheduleTrigger): deciding when a cron trigger
// should next fire and assembling the resulting Execution seed.
package schedule

import (
	"time"

	"github.com/flowcraft/corepipe/engine/cron"
	"github.com/flowcraft/corepipe/engine/workflow"
)

// searchHorizonYears bounds both applyLateDelay and findAccepted so a
// misconfigured late-delay or condition set cannot loop indefinitely.
const searchHorizonYears = 10

// ScheduleDates computes the (date, previous, next) triple for a firing
// anchored at cursor. date is the smallest fire strictly after cursor-1s;
// next is the fire after date; previous is the fire strictly before cursor.
func ScheduleDates(spec *cron.Spec, cursor time.Time) (*workflow.ScheduleOutput, bool) {
	date, ok := spec.NextAfter(cursor.Add(-time.Second))
	if !ok {
		return nil, false
	}
	out := &workflow.ScheduleOutput{Date: date}
	if next, ok := spec.NextAfter(date); ok {
		out.Next, out.HasNext = next, true
	}
	if prev, ok := spec.LastBefore(cursor); ok {
		out.Previous, out.HasPrev = prev, true
	}
	return out, true
}

// ApplyLateDelay walks output forward while it is older than lateMax
// relative to now, stopping at the first fire still within the window. It
// returns false if no such fire exists within the search horizon.
func ApplyLateDelay(
	spec *cron.Spec,
	output *workflow.ScheduleOutput,
	lateMax time.Duration,
	now time.Time,
) (*workflow.ScheduleOutput, bool) {
	horizon := now.AddDate(searchHorizonYears, 0, 0)
	current := output
	for current.Date.Add(lateMax).Before(now) {
		if !current.HasNext {
			return nil, false
		}
		if current.Next.After(horizon) {
			return nil, false
		}
		next, ok := ScheduleDates(spec, current.Next)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}
