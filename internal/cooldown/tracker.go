// Package cooldown implements the anti-spam timing rules applied to the
// account initiating a mutating action. A user who retries inside the
// normal cooldown window is escalated into a strictly longer lockout.
package cooldown

import (
	"property-registry/internal/domain"
)

// Tracker evaluates and advances a user's cooldown state. Periods are
// injected (seconds); production and test configurations differ.
type Tracker struct {
	period     int64
	lockPeriod int64
}

func NewTracker(period, lockPeriod int64) *Tracker {
	return &Tracker{period: period, lockPeriod: lockPeriod}
}

func (t *Tracker) Period() int64     { return t.period }
func (t *Tracker) LockPeriod() int64 { return t.lockPeriod }

// CheckAndRecord decides whether the user may act at the given time and
// mutates the user's cooldown fields accordingly. Being rejected is
// itself a transition: a first violation arms the penalty flag, and a
// violation while penalized keeps the lockout in force. LastActionAt is
// only advanced on an allowed action.
func (t *Tracker) CheckAndRecord(user *domain.User, now int64) error {
	if !user.HasActed() {
		t.record(user, now)
		return nil
	}

	elapsed := now - user.LastActionAt

	if user.PenaltyActive {
		if elapsed < t.lockPeriod {
			return domain.ErrPenaltyLockActive
		}
		// Lockout served; the same elapsed value is re-evaluated
		// against the normal window below.
		user.PenaltyActive = false
	}

	if elapsed < t.period {
		user.PenaltyActive = true
		return domain.ErrThrottled
	}

	t.record(user, now)
	return nil
}

func (t *Tracker) record(user *domain.User, now int64) {
	user.LastActionAt = now
	user.ActionCount++
}
