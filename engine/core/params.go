package core

import (
	"fmt"
	"maps"

	"dario.cat/mergo"
)

// Input and Output carry the dyn-typed variable bags that flow through a
// trigger firing: trigger.Inputs seeds a child workflow's Variables, and a
// task-run's Outputs feeds CEL condition data and parent aggregation.
type (
	Input  map[string]any
	Output map[string]any
)

func merge(dst, src map[string]any, kind string) (map[string]any, error) {
	result := make(map[string]any)
	maps.Copy(result, dst)
	if err := mergo.Merge(&result, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, fmt.Errorf("failed to merge %s: %w", kind, err)
	}
	return result, nil
}

// Merge folds other onto i, with other's values overriding i's and slice
// values appended rather than replaced. Used to fold a backfill's Inputs
// onto a trigger's static Inputs before seeding a child workflow.
func (i *Input) Merge(other *Input) (*Input, error) {
	if i == nil {
		return other, nil
	}
	result, err := merge(*i, *other, "input")
	if err != nil {
		return nil, err
	}
	newInput := Input(result)
	return &newInput, nil
}

// Prop reads a single output key, such as numberOfBatches or iterations
// during aggregation.
func (o *Output) Prop(key string) any {
	if o == nil {
		return nil
	}
	return (*o)[key]
}

// Set writes a single output key in place, initializing the map on first
// write if it is nil. A nil receiver is a no-op.
func (o *Output) Set(key string, value any) {
	if o == nil {
		return
	}
	if *o == nil {
		*o = Output{}
	}
	(*o)[key] = value
}
