package domain

import "errors"

// Every rejected precondition maps to exactly one of these. Rejected
// operations leave all involved entities untouched.
var (
	// ErrThrottled means the normal cooldown window has not elapsed yet.
	// The violation arms the penalty lockout.
	ErrThrottled = errors.New("cooldown active")
	// ErrPenaltyLockActive means the escalated lockout window has not
	// elapsed yet.
	ErrPenaltyLockActive = errors.New("penalty lockout active")

	ErrMaxPropertiesReached = errors.New("maximum number of properties reached")
	ErrNotOwner             = errors.New("only the property owner can perform this action")

	ErrInvalidCategory    = errors.New("unknown property category")
	ErrInvalidContentHash = errors.New("content hash does not match the category reference")
	ErrInvalidUpgradePath = errors.New("requested upgrade conversion is not allowed")
	ErrArithmeticOverflow = errors.New("value computation overflows")

	ErrNotForSale        = errors.New("property is not listed for sale")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransferHistoryFull is returned only under the "reject"
	// history policy when previous_owners is at its cap.
	ErrTransferHistoryFull = errors.New("transfer history is full")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrPropertyNotFound  = errors.New("property not found")

	// ErrStorageUnavailable wraps collaborator I/O failures; it is
	// propagated, never recovered.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
