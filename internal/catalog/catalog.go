// Package catalog validates property metadata against the fixed category
// catalog and prices category upgrades.
package catalog

import (
	"math"

	"property-registry/internal/domain"
)

// upgradePath is a (from, to) category pair.
type upgradePath struct {
	from domain.PropertyType
	to   domain.PropertyType
}

// multipliers is the exact conversion table; no other pair is permitted.
var multipliers = map[upgradePath]float64{
	{domain.PropertyTypeResidential, domain.PropertyTypeCommercial}: 1.2,
	{domain.PropertyTypeCommercial, domain.PropertyTypeLuxury}:      1.5,
	{domain.PropertyTypeResidential, domain.PropertyTypeLuxury}:     1.8,
}

// Catalog holds the externally supplied reference hash per category.
type Catalog struct {
	referenceHashes map[domain.PropertyType]string
}

// New builds a catalog from per-category reference hashes. The mapping
// must be total over the three categories.
func New(residential, commercial, luxury string) *Catalog {
	return &Catalog{
		referenceHashes: map[domain.PropertyType]string{
			domain.PropertyTypeResidential: residential,
			domain.PropertyTypeCommercial:  commercial,
			domain.PropertyTypeLuxury:      luxury,
		},
	}
}

// ExpectedHash returns the reference content hash for a category.
func (c *Catalog) ExpectedHash(propertyType domain.PropertyType) (string, error) {
	hash, ok := c.referenceHashes[propertyType]
	if !ok {
		return "", domain.ErrInvalidCategory
	}
	return hash, nil
}

// VerifyMetadata checks that the declared category is known and that the
// supplied content hash matches the category's reference hash.
func (c *Catalog) VerifyMetadata(metadata domain.Metadata) error {
	expected, err := c.ExpectedHash(metadata.PropertyType)
	if err != nil {
		return err
	}
	if metadata.ContentHash != expected {
		return domain.ErrInvalidContentHash
	}
	return nil
}

// UpgradeValue returns the post-upgrade value for a category conversion,
// floor(value * multiplier). The multiplication is overflow-checked
// rather than allowed to wrap.
func (c *Catalog) UpgradeValue(from, to domain.PropertyType, value uint64) (uint64, error) {
	multiplier, ok := multipliers[upgradePath{from: from, to: to}]
	if !ok {
		return 0, domain.ErrInvalidUpgradePath
	}

	upgraded := math.Floor(float64(value) * multiplier)
	if upgraded >= float64(math.MaxUint64) {
		return 0, domain.ErrArithmeticOverflow
	}
	return uint64(upgraded), nil
}
