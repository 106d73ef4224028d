package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_StatusType(t *testing.T) {
	t.Run("Should validate known statuses only", func(t *testing.T) {
		assert.True(t, StatusCreated.IsValid())
		assert.True(t, StatusRunning.IsValid())
		assert.True(t, StatusCancelled.IsValid())
		assert.False(t, StatusType("BOGUS").IsValid())
	})
	t.Run("Should classify the terminal set T", func(t *testing.T) {
		for _, s := range []StatusType{StatusSuccess, StatusFailed, StatusKilled, StatusWarning, StatusCancelled} {
			assert.Truef(t, s.IsTerminal(), "%s should be terminal", s)
		}
		for _, s := range []StatusType{StatusCreated, StatusRunning, StatusPaused} {
			assert.Falsef(t, s.IsTerminal(), "%s should not be terminal", s)
		}
	})
	t.Run("Should stringify", func(t *testing.T) {
		assert.Equal(t, "SUCCESS", StatusSuccess.String())
	})
	t.Run("Should expose terminal priority in FAILED > KILLED > WARNING > SUCCESS order", func(t *testing.T) {
		assert.Equal(t, []StatusType{StatusFailed, StatusKilled, StatusWarning, StatusSuccess}, TerminalPriority())
	})
}

func Test_ComponentType(t *testing.T) {
	assert.Equal(t, "trigger", ComponentTrigger.String())
}
