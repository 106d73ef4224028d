package task

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/flowcraft/corepipe/engine/core"
	wf "github.com/flowcraft/corepipe/engine/workflow"
)

// Flow is the minimal target-flow shape the launcher needs to resolve and
// validate before spawning a child execution.
type Flow struct {
	TenantID  string
	Namespace string
	ID        string
	Revision  string
	Disabled  bool
	Invalid   bool
}

// FlowLookup resolves a target flow by coordinates, falling back to the
// caller's tenant/namespace for access-scope checking.
type FlowLookup interface {
	Lookup(
		ctx context.Context,
		tenantID, namespace, flowID, revision string,
		callerTenantID, callerNamespace, callerFlowID string,
	) (*Flow, error)
}

// InputReader resolves raw inputs against a flow's declared input schema.
type InputReader interface {
	ReadInputs(ctx context.Context, flow *Flow, rawInputs core.Input) (core.Input, error)
}

// ParentTask is the task definition driving the launch.
type ParentTask struct {
	ID   string
	Type string
}

// ParentTaskRun is the parent task-run context the launcher needs.
type ParentTaskRun struct {
	ID core.ID
}

// LaunchInput bundles everything SubflowLauncher.Launch needs to resolve
// and construct a child execution seed.
type LaunchInput struct {
	ParentExecution wf.Execution
	ParentFlow      Flow
	ParentTask      ParentTask
	ParentTaskRun   ParentTaskRun
	TargetFlowID    string
	TargetRevision  string
	RawInputs       core.Input
	CallerLabels    wf.Labels
	ScheduleDate    *time.Time
}

// LaunchResult is what Launch returns: the child execution seed plus the
// parent task-run, now in RUNNING state. The launcher persists neither.
type LaunchResult struct {
	Child        *wf.Execution
	ParentTaskRun *TaskRun
}

// Launcher is C5: it resolves the target flow, builds labels/inputs, and
// emits a child Execution seed from a parent task-run.
type Launcher struct {
	flows  FlowLookup
	inputs InputReader
}

func NewLauncher(flows FlowLookup, inputs InputReader) *Launcher {
	return &Launcher{flows: flows, inputs: inputs}
}

// Launch resolves the target flow and constructs the child execution seed.
// It fails fatally (IllegalState-equivalent *core.Error) when the flow
// cannot be found, is disabled, or is otherwise invalid.
func (l *Launcher) Launch(ctx context.Context, in LaunchInput) (*LaunchResult, error) {
	flow, err := l.flows.Lookup(
		ctx,
		in.ParentFlow.TenantID, in.ParentFlow.Namespace, in.TargetFlowID, in.TargetRevision,
		in.ParentFlow.TenantID, in.ParentFlow.Namespace, in.ParentFlow.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target flow: %w", err)
	}
	if flow == nil {
		return nil, core.NewError(
			fmt.Errorf("target flow %s not found", in.TargetFlowID),
			"FLOW_NOT_FOUND",
			map[string]any{"flowId": in.TargetFlowID},
		)
	}
	if flow.Disabled {
		return nil, core.NewError(
			fmt.Errorf("target flow %s is disabled", in.TargetFlowID),
			"FLOW_DISABLED",
			map[string]any{"flowId": in.TargetFlowID},
		)
	}
	if flow.Invalid {
		return nil, core.NewError(
			fmt.Errorf("target flow %s is invalid", in.TargetFlowID),
			"INVALID_FLOW",
			map[string]any{"flowId": in.TargetFlowID},
		)
	}

	resolvedInputs, err := l.inputs.ReadInputs(ctx, flow, in.RawInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subflow inputs: %w", err)
	}

	labels := l.buildLabels(in)
	childID := core.MustNewID()
	child := &wf.Execution{
		ID:           childID,
		TenantID:     flow.TenantID,
		Namespace:    flow.Namespace,
		FlowID:       flow.ID,
		FlowRevision: flow.Revision,
		Labels:       labels,
		Inputs:       resolvedInputs,
		Trigger: wf.TriggerRef{
			ID:   in.ParentTask.ID,
			Type: in.ParentTask.Type,
			Variables: core.Input{
				"executionId":  in.ParentExecution.ID.String(),
				"namespace":    in.ParentExecution.Namespace,
				"flowId":       in.ParentExecution.FlowID,
				"flowRevision": in.ParentExecution.FlowRevision,
			},
		},
		ScheduleDate: in.ScheduleDate,
		State:        core.StatusCreated,
	}

	parentRun := &TaskRun{
		ID:     in.ParentTaskRun.ID,
		TaskID: in.ParentTask.ID,
		State:  StateHistory{{State: core.StatusRunning, At: time.Now()}},
	}

	return &LaunchResult{Child: child, ParentTaskRun: parentRun}, nil
}

func (l *Launcher) buildLabels(in LaunchInput) wf.Labels {
	systemLabels := in.ParentExecution.Labels.SystemOnly()
	correlationID, ok := in.ParentExecution.Labels.Get(wf.CorrelationIDLabel)
	if !ok {
		correlationID = in.ParentExecution.ID.String()
	}
	withCorrelation := systemLabels.WithCorrelationID(correlationID)
	return withCorrelation.Append(in.CallerLabels).Collapse()
}

// ChildWorkflowOptionsConfig is the retry/timeout configuration resolved
// hierarchically (project -> workflow -> task) into concrete Temporal child
// workflow options, following the same override chain as the project's
// activity-option resolution.
type ChildWorkflowOptionsConfig struct {
	ProjectRetryPolicy  *RetryPolicy
	WorkflowRetryPolicy *RetryPolicy
	TaskRetryPolicy     *RetryPolicy
	WorkflowTimeout     time.Duration
}

// RetryPolicy is a Go-native mirror of go.temporal.io/sdk/temporal.RetryPolicy,
// kept independent of the Temporal SDK type so configuration layers can be
// expressed (and unit-tested) without importing workflow code.
type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int32
}

// ResolveChildWorkflowOptions merges the three configuration layers,
// narrowest wins, and converts the result into
// go.temporal.io/sdk/workflow.ChildWorkflowOptions for the Executor
// boundary that actually starts the child workflow run.
func ResolveChildWorkflowOptions(cfg ChildWorkflowOptionsConfig) workflow.ChildWorkflowOptions {
	policy := cfg.ProjectRetryPolicy
	if cfg.WorkflowRetryPolicy != nil {
		policy = cfg.WorkflowRetryPolicy
	}
	if cfg.TaskRetryPolicy != nil {
		policy = cfg.TaskRetryPolicy
	}
	opts := workflow.ChildWorkflowOptions{
		WorkflowExecutionTimeout: cfg.WorkflowTimeout,
	}
	if policy != nil {
		opts.RetryPolicy = &temporal.RetryPolicy{
			InitialInterval:    policy.InitialInterval,
			BackoffCoefficient: policy.BackoffCoefficient,
			MaximumInterval:    policy.MaximumInterval,
			MaximumAttempts:    policy.MaximumAttempts,
		}
	}
	return opts
}
