// Package task implements C5 (SubflowLauncher) and C6 (IterationAggregator):
// launching a child execution from a parent task-run and collapsing
// fanned-out child terminal events into a single parent state.
package task

import (
	"time"

	"github.com/flowcraft/corepipe/engine/core"
)

// StateEntry is one (state, at) pair in a TaskRun's history.
type StateEntry struct {
	State core.StatusType
	At    time.Time
}

// StateHistory is the ordered sequence of states a TaskRun has passed
// through. A terminal entry can never be followed by a non-terminal one.
type StateHistory []StateEntry

// Current returns the most recent state, or the zero value if empty.
func (h StateHistory) Current() core.StatusType {
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1].State
}

// Previous returns the second-to-last state, if any.
func (h StateHistory) Previous() (core.StatusType, bool) {
	if len(h) < 2 {
		return "", false
	}
	return h[len(h)-2].State, true
}

// Append records a new state transition. It does not enforce the invariant
// in spec.md §3 (a terminal state cannot be followed by a non-terminal one):
// any state is appended as given. Callers should check Current().IsTerminal()
// before appending when that invariant matters to them.
func (h StateHistory) Append(state core.StatusType, at time.Time) StateHistory {
	return append(h, StateEntry{State: state, At: at})
}

// Attempt records one execution attempt of a task.
type Attempt struct {
	State core.StatusType
	At    time.Time
}

// IterationCounters maps a state name to the number of batches currently
// occupying it.
type IterationCounters map[core.StatusType]int

// Sum returns the total count across every state in states.
func (c IterationCounters) Sum(states ...core.StatusType) int {
	total := 0
	for _, s := range states {
		total += c[s]
	}
	return total
}

// Clone returns an independent copy of c.
func (c IterationCounters) Clone() IterationCounters {
	out := make(IterationCounters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// TaskRun is one run of one task inside an execution.
type TaskRun struct {
	ID        core.ID
	TaskID    string
	Iteration *int
	State     StateHistory
	Outputs   core.Output
	Attempts  []Attempt
}

const (
	// OutputNumberOfBatches holds the fan-out size on a parent task-run.
	OutputNumberOfBatches = "numberOfBatches"
	// OutputIterations holds the IterationCounters accumulated so far.
	OutputIterations = "iterations"
	// OutputSubflowOutputsBaseURI holds the storage base URI for subflow outputs.
	OutputSubflowOutputsBaseURI = "subflowOutputsBaseUri"
)

// NumberOfBatches reads and parses the fan-out size from outputs.
func NumberOfBatches(outputs core.Output) (int, bool) {
	v := outputs.Prop(OutputNumberOfBatches)
	if v == nil {
		return 0, false
	}
	return core.ParseAnyInt(v)
}
