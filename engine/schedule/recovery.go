package schedule

import (
	"time"

	"github.com/flowcraft/corepipe/engine/core"
)

// ShouldStopAfter is a pure predicate the surrounding scheduler may call
// after observing a child execution terminate in observed, per the
// stopAfter trigger config field (spec.md §6): "trigger is disabled after
// observing one of these states ... recognized by the surrounding
// scheduler, not by this core." The core never calls this itself.
func ShouldStopAfter(observed core.StatusType, stopAfter []core.StatusType) bool {
	for _, s := range stopAfter {
		if s == observed {
			return true
		}
	}
	return false
}

// MissedScheduleRecovery applies one of the three catch-up policies
// (spec.md §4.4) to an ordered slice of missed fire dates, oldest first.
// It is offered as a ready-made strategy; nextEvaluationDate does not
// depend on it.
func MissedScheduleRecovery(missed []time.Time, policy RecoveryPolicy) []time.Time {
	switch policy {
	case RecoverAll:
		out := make([]time.Time, len(missed))
		copy(out, missed)
		return out
	case RecoverLast:
		if len(missed) == 0 {
			return nil
		}
		return []time.Time{missed[len(missed)-1]}
	case RecoverNone:
		return nil
	default:
		return nil
	}
}
