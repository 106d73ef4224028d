package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Input_Merge(t *testing.T) {
	t.Run("Should merge inputs overriding values and appending slices", func(t *testing.T) {
		a := Input{"a": 1, "b": []int{1}}
		b := Input{"b": []int{2}, "c": 3}
		res, err := a.Merge(&b)
		require.NoError(t, err)
		assert.Equal(t, 1, (*res)["a"])
		assert.Equal(t, []int{1, 2}, (*res)["b"]) // append slice
		assert.Equal(t, 3, (*res)["c"])
	})
	t.Run("Should return other unchanged when receiver is nil", func(t *testing.T) {
		b := Input{"c": 3}
		var nilIn *Input
		r2, err := nilIn.Merge(&b)
		require.NoError(t, err)
		assert.Same(t, &b, r2)
	})
}

func Test_Output_PropSet(t *testing.T) {
	t.Run("Should read and write keys", func(t *testing.T) {
		var o *Output
		assert.Nil(t, o.Prop("a"))
		o = &Output{"a": 1}
		assert.Equal(t, 1, o.Prop("a"))
		o.Set("b", 2)
		assert.Equal(t, 2, (*o)["b"])
	})
	t.Run("Should no-op Set on nil receiver", func(t *testing.T) {
		var o *Output
		o.Set("a", 1) // must not panic
	})
}
