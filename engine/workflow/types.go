// Package workflow holds the data model shared by the schedule-trigger and
// task-orchestration components: cron configuration, trigger context,
// backfill progress, the ephemeral schedule window, and the execution seed
// the core hands back to its caller.
package workflow

import (
	"time"

	"github.com/flowcraft/corepipe/engine/core"
)

// CronSpec is the static, validated configuration of a cron trigger.
// engine/cron.ParseSpec turns its fields into an immutable cron.Spec.
type CronSpec struct {
	Expression  string `validate:"required,cron"`
	WithSeconds bool
	Timezone    string
}

// TriggerContext is the read-only snapshot passed to each trigger
// evaluation.
type TriggerContext struct {
	TenantID  string
	Namespace string
	FlowID    string
	TriggerID string
	LastDate  *time.Time
	Backfill  *Backfill
}

// Backfill tracks a user-initiated replay of historical fires. CurrentDate
// advances monotonically; once it exceeds End the backfill is complete and
// evaluation reverts to live mode.
type Backfill struct {
	Start       time.Time
	End         time.Time
	CurrentDate time.Time
	Paused      bool
	Labels      Labels
	Inputs      core.Input
}

// Complete reports whether CurrentDate has advanced past End.
func (b *Backfill) Complete() bool {
	if b == nil {
		return true
	}
	return b.CurrentDate.After(b.End)
}

// ScheduleOutput is the ephemeral (date, previous, next) triple computed for
// a single firing, timezone-aware and truncated to the cron's time unit.
type ScheduleOutput struct {
	Date     time.Time
	Next     time.Time
	Previous time.Time
	HasNext  bool
	HasPrev  bool
}

// TriggerRef identifies the trigger (or parent task, when attached to a
// child execution) that produced an Execution.
type TriggerRef struct {
	ID        string
	Type      string
	Variables core.Input
}

// Execution is the seed the core emits; ownership of persistence belongs to
// the external execution store.
type Execution struct {
	ID           core.ID
	TenantID     string
	Namespace    string
	FlowID       string
	FlowRevision string
	Labels       Labels
	Inputs       core.Input
	Trigger      TriggerRef
	ScheduleDate *time.Time
	State        core.StatusType
}
