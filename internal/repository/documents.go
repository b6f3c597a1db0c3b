package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
)

// DocumentRepository persists document lifecycle state.
type DocumentRepository struct {
	pool      *pgxpool.Pool
	dupWindow time.Duration
}

func NewDocumentRepository(pool *pgxpool.Pool, dupWindow time.Duration) *DocumentRepository {
	if dupWindow <= 0 {
		dupWindow = 24 * time.Hour
	}
	return &DocumentRepository{pool: pool, dupWindow: dupWindow}
}

const documentColumns = `id, client_id, kind, filename, byte_size, mime_type,
	source_channel, status, failure_reason, vendor_id, created_at, updated_at`

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var d entity.Document
	err := row.Scan(&d.ID, &d.ClientID, &d.Kind, &d.Filename, &d.ByteSize,
		&d.MimeType, &d.SourceChannel, &d.Status, &d.FailureReason,
		&d.VendorID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO documents (id, client_id, kind, filename, byte_size, mime_type, source_channel, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+documentColumns,
		uuid.New(), doc.ClientID, doc.Kind, doc.Filename, doc.ByteSize,
		doc.MimeType, doc.SourceChannel, constants.DocumentUploaded)
	return scanDocument(row)
}

func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *DocumentRepository) setStatus(ctx context.Context, id uuid.UUID,
	status constants.DocumentStatus, reason *string) error {

	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		id, status, reason, constants.DocumentCompleted, constants.DocumentFailed)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.WrapError(common.ErrInvalidTransition, "document.status",
			fmt.Errorf("document %s is terminal or missing", id))
	}
	return nil
}

func (r *DocumentRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, constants.DocumentProcessing, nil)
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, constants.DocumentCompleted, nil)
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setStatus(ctx, id, constants.DocumentFailed, &reason)
}

func (r *DocumentRepository) SetVendor(ctx context.Context, id, vendorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET vendor_id = $2, updated_at = now() WHERE id = $1`,
		id, vendorID)
	if err != nil {
		return fmt.Errorf("link vendor: %w", err)
	}
	return nil
}

// SeenRecently implements the duplicate guard: an identical (filename, size)
// pair for the client inside the window blocks resubmission.
func (r *DocumentRepository) SeenRecently(ctx context.Context, clientID uuid.UUID,
	filename string, size int64) (bool, error) {

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE client_id = $1 AND filename = $2 AND byte_size = $3
			  AND created_at > $4
		)`,
		clientID, filename, size, time.Now().Add(-r.dupWindow)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("duplicate lookup: %w", err)
	}
	return exists, nil
}

// RepointVendor moves every document from one vendor identity to another.
func (r *DocumentRepository) RepointVendor(ctx context.Context, from, to uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET vendor_id = $2, updated_at = now() WHERE vendor_id = $1`,
		from, to)
	if err != nil {
		return fmt.Errorf("repoint documents: %w", err)
	}
	return nil
}

// ListVendorDocuments returns the projection the anomaly detector scans:
// completed documents joined with their latest extraction's tax block.
func (r *DocumentRepository) ListVendorDocuments(ctx context.Context, since time.Time) ([]AnomalyRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, COALESCE(d.vendor_id, '00000000-0000-0000-0000-000000000000'::uuid),
		       e.fields, e.created_at
		FROM documents d
		JOIN LATERAL (
			SELECT fields, created_at FROM extraction_results
			WHERE document_id = d.id
			ORDER BY created_at DESC LIMIT 1
		) e ON true
		WHERE d.status = $1 AND d.created_at >= $2`,
		constants.DocumentCompleted, since)
	if err != nil {
		return nil, fmt.Errorf("query anomaly rows: %w", err)
	}
	defer rows.Close()

	var out []AnomalyRow
	for rows.Next() {
		var row AnomalyRow
		if err := rows.Scan(&row.DocumentID, &row.VendorID, &row.Fields, &row.ExtractedAt); err != nil {
			return nil, fmt.Errorf("scan anomaly row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AnomalyRow is one raw row feeding the detector's Record projection.
type AnomalyRow struct {
	DocumentID  uuid.UUID
	VendorID    uuid.UUID
	Fields      []byte
	ExtractedAt time.Time
}
