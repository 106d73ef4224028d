package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowcraft/corepipe/engine/core"
)

func TestMissedScheduleRecovery(t *testing.T) {
	missed := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	t.Run("Should fire every missed occurrence under ALL", func(t *testing.T) {
		assert.Equal(t, missed, MissedScheduleRecovery(missed, RecoverAll))
	})
	t.Run("Should fire only the most recent occurrence under LAST", func(t *testing.T) {
		assert.Equal(t, []time.Time{missed[2]}, MissedScheduleRecovery(missed, RecoverLast))
	})
	t.Run("Should fire nothing under NONE", func(t *testing.T) {
		assert.Nil(t, MissedScheduleRecovery(missed, RecoverNone))
	})
	t.Run("Should return nil for LAST with no missed fires", func(t *testing.T) {
		assert.Nil(t, MissedScheduleRecovery(nil, RecoverLast))
	})
}

func TestShouldStopAfter(t *testing.T) {
	t.Run("Should report true when the observed state is configured to stop", func(t *testing.T) {
		assert.True(t, ShouldStopAfter(core.StatusFailed, []core.StatusType{core.StatusFailed, core.StatusKilled}))
	})
	t.Run("Should report false when the observed state is not configured", func(t *testing.T) {
		assert.False(t, ShouldStopAfter(core.StatusSuccess, []core.StatusType{core.StatusFailed}))
	})
	t.Run("Should report false with an empty stop list", func(t *testing.T) {
		assert.False(t, ShouldStopAfter(core.StatusFailed, nil))
	})
}
