package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"property-registry/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store implements repository.Store over a single sqlite database.
type Store struct {
	db         *sql.DB
	users      repository.UserRepository
	properties repository.PropertyRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		users:      NewUserRepository(db),
		properties: NewPropertyRepository(db),
	}
}

func (s *Store) Users() repository.UserRepository { return s.users }

func (s *Store) Properties() repository.PropertyRepository { return s.properties }

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	if err := s.users.Init(ctx); err != nil {
		return err
	}
	return s.properties.Init(ctx)
}

// Transact runs fn with repositories bound to a single transaction and
// commits only when fn succeeds. Any error rolls everything back.
func (s *Store) Transact(ctx context.Context, fn func(users repository.UserRepository, properties repository.PropertyRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", storageErr(err))
	}

	if err := fn(NewUserRepository(tx), NewPropertyRepository(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, storageErr(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", storageErr(err))
	}
	return nil
}
