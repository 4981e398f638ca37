package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"property-registry/internal/domain"
	"property-registry/internal/repository"
)

const createPropertiesTable = `
CREATE TABLE IF NOT EXISTS properties (
	id TEXT PRIMARY KEY,
	owner_id INTEGER NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	property_type TEXT NOT NULL,
	value INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_transfer_at INTEGER NOT NULL,
	previous_owners TEXT NOT NULL DEFAULT '[]',
	for_sale INTEGER NOT NULL DEFAULT 0,
	price INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id);
CREATE INDEX IF NOT EXISTS idx_properties_for_sale ON properties(for_sale);
`

const selectPropertyColumns = `
SELECT id, owner_id, name, property_type, value, content_hash, created_at, last_transfer_at, previous_owners, for_sale, price
FROM properties`

type PropertyRepository struct {
	db dbtx
}

func NewPropertyRepository(db dbtx) repository.PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPropertiesTable); err != nil {
		return fmt.Errorf("create properties table: %w", err)
	}
	return nil
}

func (r *PropertyRepository) Create(ctx context.Context, property *domain.Property) error {
	owners, err := marshalOwners(property.PreviousOwners)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO properties (id, owner_id, name, property_type, value, content_hash, created_at, last_transfer_at, previous_owners, for_sale, price)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		property.ID,
		property.OwnerID,
		property.Metadata.Name,
		string(property.Metadata.PropertyType),
		int64(property.Metadata.Value),
		property.Metadata.ContentHash,
		property.CreatedAt,
		property.LastTransferAt,
		owners,
		property.ForSale,
		int64(property.Price),
	)
	if err != nil {
		return fmt.Errorf("insert property: %w", storageErr(err))
	}
	return nil
}

func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	row := r.db.QueryRowContext(ctx, selectPropertyColumns+` WHERE id = ?`, id)
	return scanProperty(row)
}

func (r *PropertyRepository) Save(ctx context.Context, property *domain.Property) error {
	owners, err := marshalOwners(property.PreviousOwners)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE properties
SET owner_id = ?, name = ?, property_type = ?, value = ?, content_hash = ?, last_transfer_at = ?, previous_owners = ?, for_sale = ?, price = ?
WHERE id = ?`,
		property.OwnerID,
		property.Metadata.Name,
		string(property.Metadata.PropertyType),
		int64(property.Metadata.Value),
		property.Metadata.ContentHash,
		property.LastTransferAt,
		owners,
		property.ForSale,
		int64(property.Price),
		property.ID,
	)
	if err != nil {
		return fmt.Errorf("update property: %w", storageErr(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property rows affected: %w", storageErr(err))
	}
	if affected == 0 {
		return domain.ErrPropertyNotFound
	}
	return nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, selectPropertyColumns+`
WHERE owner_id = ?
ORDER BY last_transfer_at ASC, created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list properties by owner: %w", storageErr(err))
	}
	defer rows.Close()
	return collectProperties(rows)
}

func (r *PropertyRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties WHERE owner_id = ?`, ownerID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count properties by owner: %w", storageErr(err))
	}
	return count, nil
}

func (r *PropertyRepository) ListForSale(ctx context.Context) ([]domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, selectPropertyColumns+`
WHERE for_sale = 1
ORDER BY last_transfer_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list properties for sale: %w", storageErr(err))
	}
	defer rows.Close()
	return collectProperties(rows)
}

func collectProperties(rows *sql.Rows) ([]domain.Property, error) {
	var properties []domain.Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *property)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", storageErr(err))
	}
	return properties, nil
}

func scanProperty(row interface {
	Scan(dest ...any) error
}) (*domain.Property, error) {
	var (
		property     domain.Property
		propertyType string
		value        int64
		price        int64
		owners       string
	)
	if err := row.Scan(
		&property.ID,
		&property.OwnerID,
		&property.Metadata.Name,
		&propertyType,
		&value,
		&property.Metadata.ContentHash,
		&property.CreatedAt,
		&property.LastTransferAt,
		&owners,
		&property.ForSale,
		&price,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("scan property: %w", storageErr(err))
	}
	property.Metadata.PropertyType = domain.PropertyType(propertyType)
	property.Metadata.Value = uint64(value)
	property.Price = uint64(price)
	if err := json.Unmarshal([]byte(owners), &property.PreviousOwners); err != nil {
		return nil, fmt.Errorf("decode previous owners: %w", err)
	}
	return &property, nil
}

func marshalOwners(owners []int64) (string, error) {
	if owners == nil {
		owners = []int64{}
	}
	encoded, err := json.Marshal(owners)
	if err != nil {
		return "", fmt.Errorf("encode previous owners: %w", err)
	}
	return string(encoded), nil
}
