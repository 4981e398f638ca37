package domain

import "time"

// MaxPropertiesPerUser is the hard cap on concurrently held properties.
const MaxPropertiesPerUser = 4

// User represents a registered account that can hold and trade properties.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Balance      uint64
	// Properties is the ordered list of held property IDs, oldest
	// acquisition first, never longer than MaxPropertiesPerUser.
	Properties []string
	// LastActionAt is the unix timestamp of the most recent mutating
	// action; 0 together with ActionCount == 0 means the account has
	// never acted.
	LastActionAt  int64
	ActionCount   uint64
	PenaltyActive bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasActed reports whether the user has ever completed a mutating action.
// LastActionAt alone cannot tell a fresh account from one whose first
// action landed exactly at unix time 0.
func (u *User) HasActed() bool {
	return u.ActionCount > 0
}
