package task

import (
	"context"
	"fmt"
	"time"

	"github.com/flowcraft/corepipe/engine/core"
	"github.com/flowcraft/corepipe/pkg/logger"
	"github.com/flowcraft/corepipe/pkg/metrics"
)

// terminalSum counts how many batches currently sit in any of the five
// terminal states T (spec.md §3), not just the four findTerminalState
// prioritizes, since CANCELLED never wins priority but still counts toward
// convergence.
func terminalSum(iterations IterationCounters) int {
	total := 0
	for state, count := range iterations {
		if state.IsTerminal() {
			total += count
		}
	}
	return total
}

// Repository loads and persists TaskRun state. The aggregator treats it as
// the sole source of truth for the persisted parent between invocations.
type Repository interface {
	Get(ctx context.Context, id core.ID) (*TaskRun, error)
	Save(ctx context.Context, run *TaskRun) error
}

// Aggregator is C6: it accumulates per-state iteration counters across
// re-deliveries of child-completion events and decides the parent's
// terminal state once every batch has converged.
type Aggregator struct {
	repo    Repository
	metrics *metrics.Registry
}

// NewAggregator builds an Aggregator. A nil registry disables metrics
// recording.
func NewAggregator(repo Repository, registry *metrics.Registry) *Aggregator {
	return &Aggregator{repo: repo, metrics: registry}
}

// ApplyInput is one child-completion event to fold into the parent's
// iteration counters.
type ApplyInput struct {
	ParentTaskRunID     core.ID
	IncomingTaskRun     *TaskRun
	SubflowOutputsBaseURI string
	TransmitFailed      bool
	AllowFailure        bool
	AllowWarning        bool
}

// Apply loads the persisted parent, folds the incoming child state into its
// iteration counters, and persists either the updated counters (no
// convergence yet) or the converged terminal parent (spec.md §4.6).
func (a *Aggregator) Apply(ctx context.Context, in ApplyInput) (*TaskRun, error) {
	log := logger.FromContext(ctx)
	parent, err := a.repo.Get(ctx, in.ParentTaskRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent task-run: %w", err)
	}
	if parent == nil {
		return nil, core.NewError(
			fmt.Errorf("parent task-run %s not found", in.ParentTaskRunID),
			"MISSING_PARENT_TASK_RUN",
			map[string]any{"parentTaskRunId": in.ParentTaskRunID.String()},
		)
	}
	numberOfBatches, ok := NumberOfBatches(parent.Outputs)
	if !ok {
		return nil, core.NewError(
			fmt.Errorf("parent task-run %s is missing numberOfBatches", in.ParentTaskRunID),
			"MISSING_PARENT_TASK_RUN",
			map[string]any{"parentTaskRunId": in.ParentTaskRunID.String()},
		)
	}

	iterations := loadIterations(parent.Outputs)
	curState := in.IncomingTaskRun.State.Current()
	prevState, hasPrev := in.IncomingTaskRun.State.Previous()

	iterations[curState]++
	if hasPrev && prevState != curState {
		if _, existed := iterations[prevState]; !existed {
			iterations[prevState] = numberOfBatches
		}
		iterations[prevState]--
	}

	terminated := terminalSum(iterations)
	if terminated != numberOfBatches {
		parent.Outputs = mergeIterationOutputs(parent.Outputs, iterations, numberOfBatches, in.SubflowOutputsBaseURI)
		if err := a.repo.Save(ctx, parent); err != nil {
			return nil, fmt.Errorf("failed to persist iteration counters: %w", err)
		}
		return parent, nil
	}

	terminal := findTerminalState(iterations, in.AllowFailure, in.AllowWarning)
	if !in.TransmitFailed {
		terminal = core.StatusSuccess
	}
	log.Info("iteration aggregation converged", "parentTaskRunId", in.ParentTaskRunID.String(), "state", terminal)
	a.metrics.RecordConvergence(string(terminal))
	parent.Outputs = mergeIterationOutputs(parent.Outputs, iterations, numberOfBatches, in.SubflowOutputsBaseURI)
	parent.Attempts = append(parent.Attempts, Attempt{State: terminal, At: time.Now()})
	parent.State = parent.State.Append(terminal, time.Now())
	if err := a.repo.Save(ctx, parent); err != nil {
		return nil, fmt.Errorf("failed to persist converged parent task-run: %w", err)
	}
	return parent, nil
}

func loadIterations(outputs core.Output) IterationCounters {
	raw := outputs.Prop(OutputIterations)
	m, ok := raw.(map[string]any)
	if !ok {
		return IterationCounters{}
	}
	out := make(IterationCounters, len(m))
	for k, v := range m {
		if n, ok := core.ParseAnyInt(v); ok {
			out[core.StatusType(k)] = n
		}
	}
	return out
}

func mergeIterationOutputs(outputs core.Output, iterations IterationCounters, numberOfBatches int, baseURI string) core.Output {
	if outputs == nil {
		outputs = core.Output{}
	}
	raw := make(map[string]any, len(iterations))
	for k, v := range iterations {
		raw[string(k)] = v
	}
	outputs.Set(OutputIterations, raw)
	outputs.Set(OutputNumberOfBatches, numberOfBatches)
	if baseURI != "" {
		outputs.Set(OutputSubflowOutputsBaseURI, baseURI)
	}
	return outputs
}

// findTerminalState resolves the converged counters into a single parent
// state, honoring the FAILED > KILLED > WARNING > SUCCESS priority and the
// allowFailure/allowWarning override chain from spec.md §4.6.
func findTerminalState(iterations IterationCounters, allowFailure, allowWarning bool) core.StatusType {
	switch {
	case iterations[core.StatusFailed] > 0:
		if !allowFailure {
			return core.StatusFailed
		}
		if allowWarning {
			return core.StatusSuccess
		}
		return core.StatusWarning
	case iterations[core.StatusKilled] > 0:
		return core.StatusKilled
	case iterations[core.StatusWarning] > 0:
		if allowWarning {
			return core.StatusSuccess
		}
		return core.StatusWarning
	default:
		return core.StatusSuccess
	}
}

// reportableGuessStates are the child states guessState treats as
// newsworthy when transmitFailed is set; any other state collapses to
// SUCCESS.
var reportableGuessStates = map[core.StatusType]bool{
	core.StatusFailed:  true,
	core.StatusPaused:  true,
	core.StatusKilled:  true,
	core.StatusWarning: true,
}

// GuessState collapses a single child's state for single-child (non
// fan-out) parent updates. It is idempotent: applying it twice to the same
// childState yields the same answer, since it is a pure function of its
// inputs.
func GuessState(childState core.StatusType, transmitFailed, allowedFailure, allowWarning bool) core.StatusType {
	if !transmitFailed || !reportableGuessStates[childState] {
		return core.StatusSuccess
	}
	state := childState
	if state == core.StatusFailed && allowedFailure {
		state = core.StatusWarning
	}
	if state == core.StatusWarning && allowWarning {
		state = core.StatusSuccess
	}
	return state
}
