package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabels_Get(t *testing.T) {
	t.Run("Should return the value of the last matching key", func(t *testing.T) {
		labels := Labels{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}}
		value, ok := labels.Get("a")
		assert.True(t, ok)
		assert.Equal(t, "2", value)
	})
	t.Run("Should report absence for an unknown key", func(t *testing.T) {
		labels := Labels{{Key: "a", Value: "1"}}
		_, ok := labels.Get("missing")
		assert.False(t, ok)
	})
}

func TestLabels_SystemOnly(t *testing.T) {
	t.Run("Should keep only system-prefixed labels, in order", func(t *testing.T) {
		labels := Labels{
			{Key: "system.tenant", Value: "t1"},
			{Key: "user.env", Value: "prod"},
			{Key: "system.flow", Value: "f1"},
		}
		filtered := labels.SystemOnly()
		assert.Equal(t, Labels{
			{Key: "system.tenant", Value: "t1"},
			{Key: "system.flow", Value: "f1"},
		}, filtered)
	})
}

func TestLabels_WithCorrelationID(t *testing.T) {
	t.Run("Should mint a CORRELATION_ID when none is present", func(t *testing.T) {
		labels := Labels{{Key: "system.tenant", Value: "t1"}}
		result := labels.WithCorrelationID("parent-exec-id")
		value, ok := result.Get(CorrelationIDLabel)
		assert.True(t, ok)
		assert.Equal(t, "parent-exec-id", value)
	})
	t.Run("Should keep an existing CORRELATION_ID", func(t *testing.T) {
		labels := Labels{{Key: CorrelationIDLabel, Value: "existing"}}
		result := labels.WithCorrelationID("fallback")
		value, ok := result.Get(CorrelationIDLabel)
		assert.True(t, ok)
		assert.Equal(t, "existing", value)
	})
}

func TestLabels_AppendAndCollapse(t *testing.T) {
	t.Run("Should let later entries win for equal keys after collapse", func(t *testing.T) {
		system := Labels{{Key: "system.tenant", Value: "t1"}}
		correlation := Labels{{Key: CorrelationIDLabel, Value: "exec-1"}}
		callerSupplied := Labels{{Key: "system.tenant", Value: "override"}, {Key: "custom", Value: "v"}}
		combined := system.Append(correlation, callerSupplied).Collapse()
		tenant, ok := combined.Get("system.tenant")
		assert.True(t, ok)
		assert.Equal(t, "override", tenant)
		assert.Len(t, combined, 3)
	})
	t.Run("Should preserve first-appearance order across collapses", func(t *testing.T) {
		labels := Labels{{Key: "a", Value: "1"}, {Key: "b", Value: "1"}, {Key: "a", Value: "2"}}
		collapsed := labels.Collapse()
		assert.Equal(t, "a", collapsed[0].Key)
		assert.Equal(t, "2", collapsed[0].Value)
		assert.Equal(t, "b", collapsed[1].Key)
	})
}
