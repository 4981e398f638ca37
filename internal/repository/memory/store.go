// Package memory implements the repositories over plain maps. It backs
// unit tests and the "memory" database driver for local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"property-registry/internal/domain"
	"property-registry/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps all records in memory behind one mutex. Transact buffers
// writes and applies them only when the callback succeeds, mirroring
// the all-or-nothing behaviour of the sql implementation.
type Store struct {
	mu         sync.Mutex
	nextUserID int64
	users      map[int64]*domain.User
	byUsername map[string]int64
	properties map[string]*domain.Property
}

func NewStore() *Store {
	return &Store{
		nextUserID: 1,
		users:      map[int64]*domain.User{},
		byUsername: map[string]int64{},
		properties: map[string]*domain.Property{},
	}
}

func (s *Store) Users() repository.UserRepository { return &userRepo{store: s} }

func (s *Store) Properties() repository.PropertyRepository { return &propertyRepo{store: s} }

// Transact gives fn repositories that buffer every write. On success the
// buffered writes are applied in one critical section; on error they are
// discarded, so concurrent transactions over disjoint entities never see
// or lose each other's work.
func (s *Store) Transact(ctx context.Context, fn func(users repository.UserRepository, properties repository.PropertyRepository) error) error {
	tx := &txState{
		store:      s,
		users:      map[int64]*domain.User{},
		properties: map[string]*domain.Property{},
	}

	if err := fn(&userRepo{store: s, tx: tx}, &propertyRepo{store: s, tx: tx}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, user := range tx.users {
		s.users[id] = user
		s.byUsername[user.Username] = id
	}
	for id, property := range tx.properties {
		s.properties[id] = property
	}
	return nil
}

// txState holds a transaction's dirty entities. Reads through the tx see
// these before the committed state.
type txState struct {
	store      *Store
	users      map[int64]*domain.User
	properties map[string]*domain.Property
}

type userRepo struct {
	store *Store
	tx    *txState
}

func (r *userRepo) Init(ctx context.Context) error { return nil }

func (r *userRepo) Create(ctx context.Context, user *domain.User) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.byUsername[user.Username]; exists {
		return 0, domain.ErrUserAlreadyExists
	}
	if r.tx != nil {
		for _, pending := range r.tx.users {
			if pending.Username == user.Username {
				return 0, domain.ErrUserAlreadyExists
			}
		}
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ID = r.store.nextUserID
	r.store.nextUserID++

	if r.tx != nil {
		r.tx.users[user.ID] = cloneUser(user)
	} else {
		r.store.users[user.ID] = cloneUser(user)
		r.store.byUsername[user.Username] = user.ID
	}
	return user.ID, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if r.tx != nil {
		for _, pending := range r.tx.users {
			if pending.Username == username {
				return cloneUser(pending), nil
			}
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id, ok := r.store.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.store.users[id]), nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if r.tx != nil {
		if pending, ok := r.tx.users[id]; ok {
			return cloneUser(pending), nil
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *userRepo) Save(ctx context.Context, user *domain.User) error {
	stored, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	stored.Balance = user.Balance
	stored.LastActionAt = user.LastActionAt
	stored.ActionCount = user.ActionCount
	stored.PenaltyActive = user.PenaltyActive
	stored.UpdatedAt = time.Now().UTC()

	if r.tx != nil {
		r.tx.users[stored.ID] = stored
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.users[stored.ID] = stored
	return nil
}

type propertyRepo struct {
	store *Store
	tx    *txState
}

func (r *propertyRepo) Init(ctx context.Context) error { return nil }

func (r *propertyRepo) Create(ctx context.Context, property *domain.Property) error {
	if r.tx != nil {
		r.tx.properties[property.ID] = cloneProperty(property)
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.properties[property.ID] = cloneProperty(property)
	return nil
}

func (r *propertyRepo) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	if r.tx != nil {
		if pending, ok := r.tx.properties[id]; ok {
			return cloneProperty(pending), nil
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	property, ok := r.store.properties[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	return cloneProperty(property), nil
}

func (r *propertyRepo) Save(ctx context.Context, property *domain.Property) error {
	if _, err := r.GetByID(ctx, property.ID); err != nil {
		return err
	}

	if r.tx != nil {
		r.tx.properties[property.ID] = cloneProperty(property)
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.properties[property.ID] = cloneProperty(property)
	return nil
}

// merged returns the committed properties overlaid with the
// transaction's dirty ones.
func (r *propertyRepo) merged() map[string]*domain.Property {
	r.store.mu.Lock()
	view := make(map[string]*domain.Property, len(r.store.properties))
	for id, property := range r.store.properties {
		view[id] = property
	}
	r.store.mu.Unlock()

	if r.tx != nil {
		for id, property := range r.tx.properties {
			view[id] = property
		}
	}
	return view
}

func (r *propertyRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Property, error) {
	var properties []domain.Property
	for _, property := range r.merged() {
		if property.OwnerID == ownerID {
			properties = append(properties, *cloneProperty(property))
		}
	}
	sortByAcquisition(properties)
	return properties, nil
}

func (r *propertyRepo) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	count := 0
	for _, property := range r.merged() {
		if property.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *propertyRepo) ListForSale(ctx context.Context) ([]domain.Property, error) {
	var properties []domain.Property
	for _, property := range r.merged() {
		if property.ForSale {
			properties = append(properties, *cloneProperty(property))
		}
	}
	sortByAcquisition(properties)
	return properties, nil
}

func sortByAcquisition(properties []domain.Property) {
	sort.Slice(properties, func(i, j int) bool {
		if properties[i].LastTransferAt != properties[j].LastTransferAt {
			return properties[i].LastTransferAt < properties[j].LastTransferAt
		}
		if properties[i].CreatedAt != properties[j].CreatedAt {
			return properties[i].CreatedAt < properties[j].CreatedAt
		}
		return properties[i].ID < properties[j].ID
	})
}

func cloneUser(user *domain.User) *domain.User {
	clone := *user
	clone.Properties = append([]string(nil), user.Properties...)
	return &clone
}

func cloneProperty(property *domain.Property) *domain.Property {
	clone := *property
	clone.PreviousOwners = append([]int64(nil), property.PreviousOwners...)
	return &clone
}
