package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docproc/internal/common"
	"docproc/internal/entity"
	"docproc/internal/review"
)

// ReviewRepository persists review queue items and their corrections.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id, document_id, extraction_id, extracted_data, findings,
	priority, status, assigned_to, assigned_at, corrected_data, reviewer_notes,
	resolved_at, created_at, updated_at`

func scanReviewItem(row pgx.Row) (*entity.ReviewQueueItem, error) {
	var item entity.ReviewQueueItem
	var findings []byte

	err := row.Scan(&item.ID, &item.DocumentID, &item.ExtractionID,
		&item.ExtractedData, &findings, &item.Priority, &item.Status,
		&item.AssignedTo, &item.AssignedAt, &item.CorrectedData,
		&item.ReviewerNotes, &item.ResolvedAt, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan review item: %w", err)
	}
	if len(findings) > 0 {
		if err := json.Unmarshal(findings, &item.Findings); err != nil {
			return nil, fmt.Errorf("decode findings: %w", err)
		}
	}
	return &item, nil
}

func (r *ReviewRepository) Get(ctx context.Context, id uuid.UUID) (*entity.ReviewQueueItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM review_queue_items WHERE id = $1`, id)
	return scanReviewItem(row)
}

func (r *ReviewRepository) Create(ctx context.Context, item *entity.ReviewQueueItem) (*entity.ReviewQueueItem, error) {
	findings, err := json.Marshal(item.Findings)
	if err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}

	// partial unique index on (document_id) where status not terminal enforces
	// the one-active-item invariant at the storage layer
	row := r.pool.QueryRow(ctx, `
		INSERT INTO review_queue_items
			(id, document_id, extraction_id, extracted_data, findings, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+reviewColumns,
		uuid.New(), item.DocumentID, item.ExtractionID, item.ExtractedData,
		findings, item.Priority, item.Status)
	return scanReviewItem(row)
}

func (r *ReviewRepository) List(ctx context.Context, f review.ListFilter) ([]*entity.ReviewQueueItem, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	where := `status IN ('PENDING', 'IN_REVIEW', 'ESCALATED')`
	args := []any{f.Limit}
	if f.Status != "" {
		args = append(args, f.Status)
		where = fmt.Sprintf("status = $%d", len(args))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		where += fmt.Sprintf(" AND priority = $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM review_queue_items
		WHERE `+where+`
		ORDER BY
			CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
			created_at
		LIMIT $1`, args...)
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}
	defer rows.Close()

	var out []*entity.ReviewQueueItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ClaimAssignment is the single-writer compare-and-set on the assignee: the
// row only updates when no reviewer holds it, so exactly one concurrent
// claimant wins.
func (r *ReviewRepository) ClaimAssignment(ctx context.Context, id uuid.UUID,
	reviewer string, at time.Time) (bool, error) {

	tag, err := r.pool.Exec(ctx, `
		UPDATE review_queue_items
		SET assigned_to = $2, assigned_at = $3, updated_at = now()
		WHERE id = $1 AND assigned_to IS NULL`,
		id, reviewer, at)
	if err != nil {
		return false, fmt.Errorf("claim assignment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReviewRepository) Update(ctx context.Context, item *entity.ReviewQueueItem) error {
	findings, err := json.Marshal(item.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE review_queue_items
		SET status = $2, priority = $3, assigned_to = $4, assigned_at = $5,
		    corrected_data = $6, reviewer_notes = $7, resolved_at = $8,
		    findings = $9, updated_at = now()
		WHERE id = $1`,
		item.ID, item.Status, item.Priority, item.AssignedTo, item.AssignedAt,
		item.CorrectedData, item.ReviewerNotes, item.ResolvedAt, findings)
	if err != nil {
		return fmt.Errorf("update review item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// AppendCorrections inserts the write-once field diffs in one batch.
func (r *ReviewRepository) AppendCorrections(ctx context.Context, corrections []entity.Correction) error {
	if len(corrections) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range corrections {
		batch.Queue(`
			INSERT INTO corrections
				(id, review_item_id, document_id, field_name, original_value,
				 corrected_value, correction_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.ReviewItemID, c.DocumentID, c.FieldName,
			c.OriginalValue, c.CorrectedValue, c.CorrectionType, c.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range corrections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}
	}
	return nil
}

// ListCorrections returns the append-only diff history for a document.
func (r *ReviewRepository) ListCorrections(ctx context.Context, documentID uuid.UUID) ([]entity.Correction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, review_item_id, document_id, field_name, original_value,
		       corrected_value, correction_type, created_at
		FROM corrections
		WHERE document_id = $1
		ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []entity.Correction
	for rows.Next() {
		var c entity.Correction
		if err := rows.Scan(&c.ID, &c.ReviewItemID, &c.DocumentID, &c.FieldName,
			&c.OriginalValue, &c.CorrectedValue, &c.CorrectionType, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
