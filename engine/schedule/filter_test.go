package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcraft/corepipe/engine/condition"
)

func firstMondayData(candidate time.Time) map[string]any {
	return map[string]any{"signal": map[string]any{"day": int64(candidate.Day())}}
}

func TestFindAccepted(t *testing.T) {
	t.Run("Should compute S4: skip non-first Mondays of the month", func(t *testing.T) {
		spec := mustSpec(t, "0 11 * * 1", false, "UTC")
		evaluator, err := condition.NewEvaluator()
		require.NoError(t, err)
		conditions := ConditionSet{{Expression: "signal.day <= 7"}}
		last := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		next, ok, err := FindAccepted(context.Background(), spec, last, Forward, conditions, evaluator, now, firstMondayData)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 2, 5, 11, 0, 0, 0, time.UTC), next)
	})
	t.Run("Should degrade to a plain nextAfter with no conditions configured", func(t *testing.T) {
		spec := mustSpec(t, "0 11 * * 1", false, "UTC")
		evaluator, err := condition.NewEvaluator()
		require.NoError(t, err)
		last := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
		next, ok, err := FindAccepted(context.Background(), spec, last, Forward, nil, evaluator, last, firstMondayData)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC), next)
	})
	t.Run("Should surface condition evaluation errors instead of looping forever", func(t *testing.T) {
		spec := mustSpec(t, "0 11 * * 1", false, "UTC")
		evaluator, err := condition.NewEvaluator()
		require.NoError(t, err)
		conditions := ConditionSet{{Expression: "signal.missing.field == 1"}}
		last := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
		_, ok, err := FindAccepted(context.Background(), spec, last, Forward, conditions, evaluator, last, firstMondayData)
		require.Error(t, err)
		assert.False(t, ok)
	})
	t.Run("Should give up once the search drifts past the ten-year horizon", func(t *testing.T) {
		spec := mustSpec(t, "0 11 * * 1", false, "UTC")
		evaluator, err := condition.NewEvaluator()
		require.NoError(t, err)
		conditions := ConditionSet{{Expression: "signal.day <= 0"}}
		last := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
		_, ok, err := FindAccepted(context.Background(), spec, last, Forward, conditions, evaluator, last, firstMondayData)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
