package condition

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errContains(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}

func TestNewEvaluator(t *testing.T) {
	t.Run("Should build an evaluator with the default cost limit", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		assert.NotNil(t, e.env)
		assert.Equal(t, defaultCostLimit, e.costLimit)
		assert.NotNil(t, e.programCache)
	})
	t.Run("Should accept a custom cost limit", func(t *testing.T) {
		e, err := NewEvaluator(WithCostLimit(500))
		require.NoError(t, err)
		assert.Equal(t, uint64(500), e.costLimit)
	})
}

func TestEvaluator_Evaluate(t *testing.T) {
	t.Run("Should evaluate a simple boolean expression", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{
			"signal": map[string]any{"payload": map[string]any{"status": "approved"}},
		}
		ok, err := e.Evaluate(context.Background(), `signal.payload.status == "approved"`, data)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should combine payload, headers and query namespaces", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{
			"payload": map[string]any{"action": "create"},
			"headers": map[string]any{"content-type": "application/json"},
			"query":   map[string]any{"source": "web"},
		}
		expr := `payload.action == "create" && headers["content-type"] == "application/json" && query.source == "web"`
		ok, err := e.Evaluate(context.Background(), expr, data)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should return false for a false condition", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"status": "rejected"}}}
		ok, err := e.Evaluate(context.Background(), `signal.payload.status == "approved"`, data)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("Should error on missing map key without has()", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{}}}
		ok, err := e.Evaluate(context.Background(), `signal.payload.status == "approved"`, data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such key")
		assert.False(t, ok)
	})
	t.Run("Should support has() for optional fields", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"status": "approved"}}}
		ok, err := e.Evaluate(context.Background(), `has(signal.payload.status) && signal.payload.status == "approved"`, data)
		require.NoError(t, err)
		assert.True(t, ok)
		ok2, err := e.Evaluate(context.Background(), `has(signal.payload.missing)`, data)
		require.NoError(t, err)
		assert.False(t, ok2)
	})
	t.Run("Should reject an already-cancelled context", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"status": "approved"}}}
		ok, err := e.Evaluate(ctx, `signal.payload.status == "approved"`, data)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled) || errContains(err, "context"))
		assert.False(t, ok)
	})
	t.Run("Should respect an expired deadline", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"status": "approved"}}}
		ok, err := e.Evaluate(ctx, `signal.payload.status == "approved"`, data)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded) || errContains(err, "context"))
		assert.False(t, ok)
	})
	t.Run("Should surface a type mismatch as no-such-overload", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"count": "not-a-number"}}}
		ok, err := e.Evaluate(context.Background(), `signal.payload.count > 10`, data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such overload")
		assert.False(t, ok)
	})
	t.Run("Should reject malformed syntax at compile time", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		ok, err := e.Evaluate(context.Background(), `signal.payload.status ==`, map[string]any{})
		require.Error(t, err)
		assert.True(t, errContains(err, "compilation"))
		assert.False(t, ok)
	})
	t.Run("Should require the expression to statically produce a boolean", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"status": "approved"}}}
		ok, err := e.Evaluate(context.Background(), `signal.payload.status`, data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boolean")
		assert.False(t, ok)
	})
	t.Run("Should tolerate empty headers and query maps", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{
			"payload": map[string]any{"status": "ok"},
			"headers": map[string]any{},
			"query":   map[string]any{},
		}
		ok, err := e.Evaluate(context.Background(), `payload.status == "ok"`, data)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should reuse a cached program on repeated evaluation", func(t *testing.T) {
		e, err := NewEvaluator(WithCacheSize(3))
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"value": 1}}}
		expr := `signal.payload.value == 1`
		ok1, err := e.Evaluate(context.Background(), expr, data)
		require.NoError(t, err)
		assert.True(t, ok1)
		ok2, err := e.Evaluate(context.Background(), expr, data)
		require.NoError(t, err)
		assert.True(t, ok2)
	})
	t.Run("Should keep working once the cache evicts older entries", func(t *testing.T) {
		e, err := NewEvaluator(WithCacheSize(2))
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"value": 1}}}
		exprs := []string{
			`signal.payload.value == 1`,
			`signal.payload.value > 0`,
			`signal.payload.value < 10`,
			`signal.payload.value != 0`,
		}
		for _, expr := range exprs {
			ok, err := e.Evaluate(context.Background(), expr, data)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := e.Evaluate(context.Background(), exprs[0], data)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestEvaluator_CostLimit(t *testing.T) {
	t.Run("Should allow cheap expressions through", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"list": []any{1, 2, 3, 4, 5}}}}
		ok, err := e.Evaluate(context.Background(), `size(signal.payload.list) > 3`, data)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should reject expressions that spend past a very low cost limit", func(t *testing.T) {
		e, err := NewEvaluator(WithCostLimit(1))
		require.NoError(t, err)
		data := map[string]any{"signal": map[string]any{"payload": map[string]any{"value": "test"}}}
		expr := `signal.payload.value + signal.payload.value + signal.payload.value +
			signal.payload.value + signal.payload.value + signal.payload.value == "testtesttesttesttesttest"`
		ok, err := e.Evaluate(context.Background(), expr, data)
		if err != nil {
			assert.Contains(t, err.Error(), "exceeded cost limit")
		} else {
			assert.True(t, ok)
		}
	})
}

func TestEvaluator_ValidateExpression(t *testing.T) {
	t.Run("Should accept a well-formed expression", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		assert.NoError(t, e.ValidateExpression(`signal.payload.status == "approved"`))
	})
	t.Run("Should reject malformed syntax", func(t *testing.T) {
		e, err := NewEvaluator()
		require.NoError(t, err)
		err = e.ValidateExpression(`signal.payload.status ==`)
		require.Error(t, err)
		assert.True(t, errContains(err, "invalid") || errContains(err, "compilation"))
	})
}
