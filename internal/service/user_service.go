package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"property-registry/internal/domain"
	"property-registry/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRegistrationPassword indicates the registration secret is incorrect.
	ErrInvalidRegistrationPassword = errors.New("invalid registration password")
)

// UserService describes account lifecycle operations. Register doubles
// as the registry's user initialization: a new account starts with no
// holdings, a zero balance and a fresh cooldown state.
type UserService interface {
	Register(ctx context.Context, username, password, providedSecret string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// Deposit credits the account balance used on the marketplace.
	Deposit(ctx context.Context, id int64, amount uint64) (*domain.User, error)
}

type userService struct {
	store          repository.Store
	registerSecret string
	locks          *Locks
}

func NewUserService(store repository.Store, registerSecret string, locks *Locks) UserService {
	return &userService{
		store:          store,
		registerSecret: strings.TrimSpace(registerSecret),
		locks:          locks,
	}
}

func (s *userService) Register(ctx context.Context, username, password, providedSecret string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	providedSecret = strings.TrimSpace(providedSecret)
	password = strings.TrimSpace(password)

	if username == "" {
		return nil, errors.New("username is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	if s.registerSecret == "" {
		return nil, fmt.Errorf("registration secret is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(providedSecret), []byte(s.registerSecret)) != 1 {
		return nil, ErrInvalidRegistrationPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Properties:   []string{},
	}

	if _, err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	properties, err := s.store.Properties().ListByOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Properties = make([]string, 0, len(properties))
	for _, p := range properties {
		user.Properties = append(user.Properties, p.ID)
	}

	return sanitizeUser(user), nil
}

func (s *userService) Deposit(ctx context.Context, id int64, amount uint64) (*domain.User, error) {
	release := s.locks.acquire(userKey(id))
	defer release()

	var deposited *domain.User
	err := s.store.Transact(ctx, func(users repository.UserRepository, _ repository.PropertyRepository) error {
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if user.Balance+amount < user.Balance {
			return domain.ErrArithmeticOverflow
		}
		user.Balance += amount
		if err := users.Save(ctx, user); err != nil {
			return err
		}
		deposited = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sanitizeUser(deposited), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:            user.ID,
		Username:      user.Username,
		Balance:       user.Balance,
		Properties:    append([]string(nil), user.Properties...),
		LastActionAt:  user.LastActionAt,
		ActionCount:   user.ActionCount,
		PenaltyActive: user.PenaltyActive,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}
