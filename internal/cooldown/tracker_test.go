package cooldown_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-registry/internal/cooldown"
	"property-registry/internal/domain"
)

func TestCheckAndRecord_FreshUser(t *testing.T) {
	tracker := cooldown.NewTracker(2, 3)
	user := &domain.User{}

	require.NoError(t, tracker.CheckAndRecord(user, 0))
	assert.Equal(t, int64(0), user.LastActionAt)
	assert.Equal(t, uint64(1), user.ActionCount)
	assert.False(t, user.PenaltyActive)
}

func TestCheckAndRecord_EscalationSequence(t *testing.T) {
	tracker := cooldown.NewTracker(2, 3)
	user := &domain.User{}

	// t=0: first action succeeds.
	require.NoError(t, tracker.CheckAndRecord(user, 0))

	// t=1: inside the normal window; rejected and penalty armed.
	err := tracker.CheckAndRecord(user, 1)
	require.ErrorIs(t, err, domain.ErrThrottled)
	assert.True(t, user.PenaltyActive)
	assert.Equal(t, int64(0), user.LastActionAt, "rejection must not advance the clock")

	// t=2: the lockout measures from the last allowed action, so the
	// user is still locked even though the normal window has elapsed.
	err = tracker.CheckAndRecord(user, 2)
	require.ErrorIs(t, err, domain.ErrPenaltyLockActive)
	assert.True(t, user.PenaltyActive)

	// t=4: lockout served, normal window also clear; allowed and reset.
	require.NoError(t, tracker.CheckAndRecord(user, 4))
	assert.False(t, user.PenaltyActive)
	assert.Equal(t, int64(4), user.LastActionAt)
	assert.Equal(t, uint64(2), user.ActionCount)
}

func TestCheckAndRecord_PenaltyClearsButStillThrottled(t *testing.T) {
	// Lockout elapsed, but the elapsed time still violates the normal
	// window: the penalty re-arms.
	tracker := cooldown.NewTracker(10, 3)
	user := &domain.User{LastActionAt: 0, ActionCount: 1, PenaltyActive: true}

	err := tracker.CheckAndRecord(user, 5)
	require.ErrorIs(t, err, domain.ErrThrottled)
	assert.True(t, user.PenaltyActive)
	assert.Equal(t, int64(0), user.LastActionAt)
}

func TestCheckAndRecord_StaleViolationDoesNotCompound(t *testing.T) {
	tracker := cooldown.NewTracker(2, 3)
	user := &domain.User{LastActionAt: 100, ActionCount: 3, PenaltyActive: true}

	require.NoError(t, tracker.CheckAndRecord(user, 200))
	assert.False(t, user.PenaltyActive)
	assert.Equal(t, int64(200), user.LastActionAt)
}

func TestCheckAndRecord_NormalWindow(t *testing.T) {
	tests := []struct {
		name    string
		now     int64
		wantErr error
	}{
		{name: "just inside the window", now: 101, wantErr: domain.ErrThrottled},
		{name: "exactly at the boundary", now: 102},
		{name: "past the window", now: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := cooldown.NewTracker(2, 3)
			user := &domain.User{LastActionAt: 100, ActionCount: 1}

			err := tracker.CheckAndRecord(user, tt.now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.now, user.LastActionAt)
		})
	}
}
