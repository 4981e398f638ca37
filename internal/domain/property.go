package domain

// MaxPreviousOwners caps the transfer history kept on a property.
const MaxPreviousOwners = 10

type PropertyType string

const (
	PropertyTypeResidential PropertyType = "Residential"
	PropertyTypeCommercial  PropertyType = "Commercial"
	PropertyTypeLuxury      PropertyType = "Luxury"
)

// Valid reports whether the type is one of the three known categories.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeResidential, PropertyTypeCommercial, PropertyTypeLuxury:
		return true
	}
	return false
}

// Metadata describes a property as supplied at mint time.
type Metadata struct {
	Name         string
	PropertyType PropertyType
	Value        uint64
	ContentHash  string
}

// Property is the asset record tracked by the registry.
type Property struct {
	ID             string
	OwnerID        int64
	Metadata       Metadata
	CreatedAt      int64
	LastTransferAt int64
	// PreviousOwners is append-only, oldest first, capped at
	// MaxPreviousOwners entries.
	PreviousOwners []int64
	ForSale        bool
	// Price is meaningful only while ForSale is true.
	Price uint64
}
