// Package condition implements C3: evaluating a CEL boolean expression
// against trigger context data to decide whether a schedule fire should be
// accepted.
package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/interpreter"

	"github.com/flowcraft/corepipe/pkg/logger"
)

const (
	defaultCostLimit = uint64(1000)
	defaultCacheSize = int64(1000)
)

// Option configures an Evaluator at construction time.
type Option func(*options)

type options struct {
	costLimit uint64
	cacheSize int64
}

// WithCostLimit overrides the actual-cost ceiling an expression may spend
// during evaluation. Default is 1000.
func WithCostLimit(limit uint64) Option {
	return func(o *options) { o.costLimit = limit }
}

// WithCacheSize overrides the maximum number of compiled programs the
// Ristretto cache retains. Default is 1000.
func WithCacheSize(size int64) Option {
	return func(o *options) { o.cacheSize = size }
}

// Evaluator compiles and evaluates CEL boolean expressions over trigger
// context data. Two namespaces are declared: the webhook-style signal,
// processor, payload, headers, and query root variables, and the
// schedule/trigger root variables ScheduleTrigger.outputData and
// ScheduleTrigger.conditionData actually populate. Construct with
// NewEvaluator; the zero value is not usable.
type Evaluator struct {
	env          *cel.Env
	costLimit    uint64
	programCache *ristretto.Cache[string, cel.Program]
}

// NewEvaluator builds a CEL environment exposing the signal, processor,
// payload, headers, query, schedule, and trigger root variables as
// dyn-typed maps.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	cfg := &options{costLimit: defaultCostLimit, cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(cfg)
	}
	env, err := cel.NewEnv(
		cel.Variable("signal", cel.DynType),
		cel.Variable("processor", cel.DynType),
		cel.Variable("payload", cel.DynType),
		cel.Variable("headers", cel.DynType),
		cel.Variable("query", cel.DynType),
		cel.Variable("schedule", cel.DynType),
		cel.Variable("trigger", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL environment: %w", err)
	}
	numCounters := cfg.cacheSize * 10
	if numCounters < 100 {
		numCounters = 100
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cel.Program]{
		NumCounters: numCounters,
		MaxCost:     cfg.cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build program cache: %w", err)
	}
	return &Evaluator{env: env, costLimit: cfg.costLimit, programCache: cache}, nil
}

// ValidateExpression reports a syntax error without evaluating expression.
func (e *Evaluator) ValidateExpression(expression string) error {
	_, iss := e.env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return fmt.Errorf("invalid expression: %w", iss.Err())
	}
	return nil
}

// Evaluate compiles (or fetches from cache) expression and runs it against
// data, returning the boolean result. It fails if expression does not
// statically produce a boolean, if the actual evaluation cost exceeds the
// configured limit, or if ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, data map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}
	prg, err := e.compile(ctx, expression)
	if err != nil {
		return false, err
	}
	out, details, err := prg.ContextEval(ctx, data)
	if err != nil {
		var cancelled interpreter.EvalCancelledError
		if errors.As(err, &cancelled) && cancelled.Cause == interpreter.CostLimitExceeded {
			return false, fmt.Errorf("expression exceeded cost limit (%d): %w", e.costLimit, err)
		}
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	if details != nil && e.costLimit > 0 {
		if cost := details.ActualCost(); cost != nil && *cost > e.costLimit {
			return false, fmt.Errorf("expression exceeded cost limit (%d > %d)", *cost, e.costLimit)
		}
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must evaluate to a boolean result, got %T", out.Value())
	}
	return b, nil
}

func (e *Evaluator) compile(ctx context.Context, expression string) (cel.Program, error) {
	if cached, ok := e.programCache.Get(expression); ok {
		return cached, nil
	}
	ast, iss := e.env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must produce a boolean result, got %s", ast.OutputType())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(e.costLimit), cel.EvalOptions(cel.OptTrackCost))
	if err != nil {
		return nil, fmt.Errorf("program construction error: %w", err)
	}
	if !e.programCache.Set(expression, prg, 1) {
		logger.FromContext(ctx).Debug("condition program cache rejected entry", "expression", expression)
	}
	e.programCache.Wait()
	return prg, nil
}
