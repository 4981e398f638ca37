package repository

import "context"

// Store bundles the repositories and provides all-or-nothing execution
// of multi-entity mutations. Every registry operation that writes more
// than one record runs inside Transact so a rejected or failed step
// never leaves entities half-updated.
type Store interface {
	Users() UserRepository
	Properties() PropertyRepository
	// Transact runs fn against transaction-scoped repositories and
	// commits only if fn returns nil.
	Transact(ctx context.Context, fn func(users UserRepository, properties PropertyRepository) error) error
}
