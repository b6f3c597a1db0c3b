package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docproc/internal/entity"
)

// VendorRepository persists deduplicated counterparty identities.
type VendorRepository struct {
	pool *pgxpool.Pool
	docs *DocumentRepository
}

func NewVendorRepository(pool *pgxpool.Pool, docs *DocumentRepository) *VendorRepository {
	return &VendorRepository{pool: pool, docs: docs}
}

const vendorColumns = `id, primary_name, alternate_names, gstin, pan,
	transaction_count, total_amount, active, merged_into, created_at, updated_at`

func scanVendor(row pgx.Row) (*entity.VendorIdentity, error) {
	var v entity.VendorIdentity
	err := row.Scan(&v.ID, &v.PrimaryName, &v.AlternateNames, &v.GSTIN, &v.PAN,
		&v.TransactionCount, &v.TotalAmount, &v.Active, &v.MergedInto,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan vendor: %w", err)
	}
	return &v, nil
}

func (r *VendorRepository) GetByGSTIN(ctx context.Context, gstin string) (*entity.VendorIdentity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendor_identities WHERE gstin = $1 AND active`, gstin)
	return scanVendor(row)
}

func (r *VendorRepository) GetByPAN(ctx context.Context, pan string) (*entity.VendorIdentity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendor_identities WHERE pan = $1 AND active`, pan)
	return scanVendor(row)
}

func (r *VendorRepository) ListActive(ctx context.Context) ([]*entity.VendorIdentity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+vendorColumns+` FROM vendor_identities WHERE active ORDER BY primary_name`)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var out []*entity.VendorIdentity
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VendorRepository) Create(ctx context.Context, v *entity.VendorIdentity) (*entity.VendorIdentity, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vendor_identities
			(id, primary_name, alternate_names, gstin, pan, transaction_count, total_amount, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING `+vendorColumns,
		uuid.New(), v.PrimaryName, v.AlternateNames, v.GSTIN, v.PAN,
		v.TransactionCount, v.TotalAmount)
	return scanVendor(row)
}

func (r *VendorRepository) AppendAlias(ctx context.Context, id uuid.UUID, alias string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE vendor_identities
		SET alternate_names = array_append(alternate_names, $2), updated_at = now()
		WHERE id = $1 AND NOT ($2 = ANY(alternate_names))`,
		id, alias)
	if err != nil {
		return fmt.Errorf("append alias: %w", err)
	}
	return nil
}

func (r *VendorRepository) RecordTransaction(ctx context.Context, id uuid.UUID, amount float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE vendor_identities
		SET transaction_count = transaction_count + 1,
		    total_amount = total_amount + $2,
		    updated_at = now()
		WHERE id = $1`,
		id, amount)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func (r *VendorRepository) Deactivate(ctx context.Context, id, mergedInto uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE vendor_identities
		SET active = false, merged_into = $2, updated_at = now()
		WHERE id = $1`,
		id, mergedInto)
	if err != nil {
		return fmt.Errorf("deactivate vendor: %w", err)
	}
	return nil
}

func (r *VendorRepository) UpdateAggregates(ctx context.Context, id uuid.UUID,
	aliases []string, txCount int, total float64) error {

	_, err := r.pool.Exec(ctx, `
		UPDATE vendor_identities
		SET alternate_names = $2, transaction_count = $3, total_amount = $4, updated_at = now()
		WHERE id = $1`,
		id, aliases, txCount, total)
	if err != nil {
		return fmt.Errorf("update vendor aggregates: %w", err)
	}
	return nil
}

func (r *VendorRepository) RepointDocuments(ctx context.Context, from, to uuid.UUID) error {
	return r.docs.RepointVendor(ctx, from, to)
}
