package service

import (
	"context"

	"github.com/google/uuid"

	"property-registry/internal/catalog"
	"property-registry/internal/cooldown"
	"property-registry/internal/domain"
	"property-registry/internal/repository"
)

// HistoryPolicy selects what happens when a property's transfer history
// is already at its cap and another owner must be appended.
type HistoryPolicy string

const (
	// HistoryPolicyDropOldest evicts the oldest entry (default).
	HistoryPolicyDropOldest HistoryPolicy = "drop-oldest"
	// HistoryPolicyReject fails the transfer instead.
	HistoryPolicyReject HistoryPolicy = "reject"
)

// RegistryService is the ownership and transfer core. Every mutating
// method takes the current unix timestamp from the caller, executes
// all-or-nothing against the entities it names, and serializes with any
// concurrent operation touching the same user or property.
//
// Known asymmetry, kept on purpose: exchange gates on the sender's
// cooldown only, and the marketplace paths (list, buy) are not gated
// at all.
type RegistryService interface {
	MintProperty(ctx context.Context, actorID int64, metadata domain.Metadata, now int64) (*domain.Property, error)
	ExchangeProperty(ctx context.Context, senderID, receiverID int64, propertyID string, now int64) (*domain.Property, error)
	UpgradeProperty(ctx context.Context, actorID int64, propertyID string, newType domain.PropertyType, now int64) (*domain.Property, error)
	ListForSale(ctx context.Context, actorID int64, propertyID string, price uint64) (*domain.Property, error)
	BuyProperty(ctx context.Context, buyerID int64, propertyID string, now int64) (*domain.Property, error)
	VerifyMetadata(metadata domain.Metadata) error
	GetProperty(ctx context.Context, id string) (*domain.Property, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Property, error)
	ListOnMarket(ctx context.Context) ([]domain.Property, error)
}

type registryService struct {
	store         repository.Store
	tracker       *cooldown.Tracker
	catalog       *catalog.Catalog
	historyCap    int
	historyPolicy HistoryPolicy
	locks         *Locks
}

func NewRegistryService(store repository.Store, tracker *cooldown.Tracker, cat *catalog.Catalog, locks *Locks, historyCap int, historyPolicy HistoryPolicy) RegistryService {
	if historyCap <= 0 {
		historyCap = domain.MaxPreviousOwners
	}
	if historyPolicy == "" {
		historyPolicy = HistoryPolicyDropOldest
	}
	return &registryService{
		store:         store,
		tracker:       tracker,
		catalog:       cat,
		historyCap:    historyCap,
		historyPolicy: historyPolicy,
		locks:         locks,
	}
}

func (s *registryService) MintProperty(ctx context.Context, actorID int64, metadata domain.Metadata, now int64) (*domain.Property, error) {
	release := s.locks.acquire(userKey(actorID))
	defer release()

	var property *domain.Property
	var throttled error
	err := s.store.Transact(ctx, func(users repository.UserRepository, properties repository.PropertyRepository) error {
		actor, err := users.GetByID(ctx, actorID)
		if err != nil {
			return err
		}

		if cdErr := s.tracker.CheckAndRecord(actor, now); cdErr != nil {
			// The rejection itself advances the penalty state
			// machine; that transition is the only thing persisted.
			throttled = cdErr
			return users.Save(ctx, actor)
		}

		held, err := properties.CountByOwner(ctx, actorID)
		if err != nil {
			return err
		}
		if held >= domain.MaxPropertiesPerUser {
			return domain.ErrMaxPropertiesReached
		}

		if err := s.catalog.VerifyMetadata(metadata); err != nil {
			return err
		}

		property = &domain.Property{
			ID:             uuid.NewString(),
			OwnerID:        actorID,
			Metadata:       metadata,
			CreatedAt:      now,
			LastTransferAt: now,
			PreviousOwners: []int64{},
		}
		if err := properties.Create(ctx, property); err != nil {
			return err
		}
		return users.Save(ctx, actor)
	})
	if err != nil {
		return nil, err
	}
	if throttled != nil {
		return nil, throttled
	}
	return property, nil
}

func (s *registryService) ExchangeProperty(ctx context.Context, senderID, receiverID int64, propertyID string, now int64) (*domain.Property, error) {
	release := s.locks.acquire(userKey(senderID), userKey(receiverID), propertyKey(propertyID))
	defer release()

	var property *domain.Property
	var throttled error
	err := s.store.Transact(ctx, func(users repository.UserRepository, properties repository.PropertyRepository) error {
		sender, err := users.GetByID(ctx, senderID)
		if err != nil {
			return err
		}
		receiver, err := users.GetByID(ctx, receiverID)
		if err != nil {
			return err
		}
		p, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			return err
		}

		if p.OwnerID != senderID {
			return domain.ErrNotOwner
		}

		held, err := properties.CountByOwner(ctx, receiverID)
		if err != nil {
			return err
		}
		if held >= domain.MaxPropertiesPerUser {
			return domain.ErrMaxPropertiesReached
		}

		if cdErr := s.tracker.CheckAndRecord(sender, now); cdErr != nil {
			throttled = cdErr
			return users.Save(ctx, sender)
		}

		if err := s.appendPreviousOwner(p, senderID); err != nil {
			return err
		}
		p.OwnerID = receiverID
		p.LastTransferAt = now

		// Receiving counts as the receiver's latest activity even
		// though only the sender was gated.
		receiver.LastActionAt = now
		receiver.ActionCount++

		if err := properties.Save(ctx, p); err != nil {
			return err
		}
		if err := users.Save(ctx, sender); err != nil {
			return err
		}
		if err := users.Save(ctx, receiver); err != nil {
			return err
		}
		property = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if throttled != nil {
		return nil, throttled
	}
	return property, nil
}

func (s *registryService) UpgradeProperty(ctx context.Context, actorID int64, propertyID string, newType domain.PropertyType, now int64) (*domain.Property, error) {
	release := s.locks.acquire(userKey(actorID), propertyKey(propertyID))
	defer release()

	var property *domain.Property
	var throttled error
	err := s.store.Transact(ctx, func(users repository.UserRepository, properties repository.PropertyRepository) error {
		actor, err := users.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		p, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			return err
		}

		if p.OwnerID != actorID {
			return domain.ErrNotOwner
		}

		if cdErr := s.tracker.CheckAndRecord(actor, now); cdErr != nil {
			throttled = cdErr
			return users.Save(ctx, actor)
		}

		upgraded, err := s.catalog.UpgradeValue(p.Metadata.PropertyType, newType, p.Metadata.Value)
		if err != nil {
			return err
		}
		p.Metadata.PropertyType = newType
		p.Metadata.Value = upgraded
		p.LastTransferAt = now

		if err := properties.Save(ctx, p); err != nil {
			return err
		}
		if err := users.Save(ctx, actor); err != nil {
			return err
		}
		property = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if throttled != nil {
		return nil, throttled
	}
	return property, nil
}

// ListForSale puts a property on the market. Listing is not rate
// limited.
func (s *registryService) ListForSale(ctx context.Context, actorID int64, propertyID string, price uint64) (*domain.Property, error) {
	release := s.locks.acquire(userKey(actorID), propertyKey(propertyID))
	defer release()

	var property *domain.Property
	err := s.store.Transact(ctx, func(users repository.UserRepository, properties repository.PropertyRepository) error {
		p, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			return err
		}
		if p.OwnerID != actorID {
			return domain.ErrNotOwner
		}

		p.ForSale = true
		p.Price = price
		if err := properties.Save(ctx, p); err != nil {
			return err
		}
		property = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return property, nil
}

// BuyProperty performs the escrow step: the debit of the buyer, the
// credit of the seller and the ownership change commit together or not
// at all. Purchases are not throttled by the buyer's recent activity.
func (s *registryService) BuyProperty(ctx context.Context, buyerID int64, propertyID string, now int64) (*domain.Property, error) {
	release := s.locks.acquire(userKey(buyerID), propertyKey(propertyID))
	defer release()

	var property *domain.Property
	err := s.store.Transact(ctx, func(users repository.UserRepository, properties repository.PropertyRepository) error {
		p, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			return err
		}
		if !p.ForSale {
			return domain.ErrNotForSale
		}

		buyer, err := users.GetByID(ctx, buyerID)
		if err != nil {
			return err
		}
		if buyer.Balance < p.Price {
			return domain.ErrInsufficientFunds
		}

		held, err := properties.CountByOwner(ctx, buyerID)
		if err != nil {
			return err
		}
		if buyerID != p.OwnerID && held >= domain.MaxPropertiesPerUser {
			return domain.ErrMaxPropertiesReached
		}

		sellerID := p.OwnerID
		seller := buyer
		if sellerID != buyerID {
			seller, err = users.GetByID(ctx, sellerID)
			if err != nil {
				return err
			}
		}

		price := p.Price
		buyer.Balance -= price
		if seller.Balance+price < seller.Balance {
			return domain.ErrArithmeticOverflow
		}
		seller.Balance += price

		if err := s.appendPreviousOwner(p, sellerID); err != nil {
			return err
		}
		p.OwnerID = buyerID
		p.LastTransferAt = now
		p.ForSale = false
		p.Price = 0

		if err := properties.Save(ctx, p); err != nil {
			return err
		}
		if err := users.Save(ctx, buyer); err != nil {
			return err
		}
		if sellerID != buyerID {
			if err := users.Save(ctx, seller); err != nil {
				return err
			}
		}
		property = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return property, nil
}

// VerifyMetadata is the standalone read-only catalog check.
func (s *registryService) VerifyMetadata(metadata domain.Metadata) error {
	return s.catalog.VerifyMetadata(metadata)
}

func (s *registryService) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	return s.store.Properties().GetByID(ctx, id)
}

func (s *registryService) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Property, error) {
	return s.store.Properties().ListByOwner(ctx, ownerID)
}

func (s *registryService) ListOnMarket(ctx context.Context) ([]domain.Property, error) {
	return s.store.Properties().ListForSale(ctx)
}

func (s *registryService) appendPreviousOwner(property *domain.Property, ownerID int64) error {
	if len(property.PreviousOwners) >= s.historyCap {
		if s.historyPolicy == HistoryPolicyReject {
			return domain.ErrTransferHistoryFull
		}
		drop := len(property.PreviousOwners) - s.historyCap + 1
		property.PreviousOwners = append([]int64{}, property.PreviousOwners[drop:]...)
	}
	property.PreviousOwners = append(property.PreviousOwners, ownerID)
	return nil
}
