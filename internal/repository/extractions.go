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
)

// ExtractionRepository persists immutable extraction results. There is no
// update path: re-extraction inserts a new row.
type ExtractionRepository struct {
	pool *pgxpool.Pool
}

func NewExtractionRepository(pool *pgxpool.Pool) *ExtractionRepository {
	return &ExtractionRepository{pool: pool}
}

func (r *ExtractionRepository) CreateExtraction(ctx context.Context, res *entity.ExtractionResult) (*entity.ExtractionResult, error) {
	confidence, err := json.Marshal(res.FieldConfidence)
	if err != nil {
		return nil, fmt.Errorf("encode confidence map: %w", err)
	}

	res.ID = uuid.New()
	err = r.pool.QueryRow(ctx, `
		INSERT INTO extraction_results
			(id, document_id, schema_version, fields, field_confidence,
			 overall_confidence, weighted_confidence, ocr_confidence, ocr_text, processing_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		res.ID, res.DocumentID, res.SchemaVersion, res.Fields, confidence,
		res.OverallConfidence, res.WeightedConfidence, res.OCRConfidence,
		res.OCRText, res.ProcessingTime.Milliseconds()).Scan(&res.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert extraction: %w", err)
	}
	return res, nil
}

// Latest returns the most recent extraction for a document.
func (r *ExtractionRepository) Latest(ctx context.Context, documentID uuid.UUID) (*entity.ExtractionResult, error) {
	var res entity.ExtractionResult
	var confidence []byte
	var processingMs int64

	err := r.pool.QueryRow(ctx, `
		SELECT id, document_id, schema_version, fields, field_confidence,
		       overall_confidence, weighted_confidence, ocr_confidence, ocr_text,
		       processing_ms, created_at
		FROM extraction_results
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, documentID).Scan(
		&res.ID, &res.DocumentID, &res.SchemaVersion, &res.Fields, &confidence,
		&res.OverallConfidence, &res.WeightedConfidence, &res.OCRConfidence,
		&res.OCRText, &processingMs, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query extraction: %w", err)
	}

	if err := json.Unmarshal(confidence, &res.FieldConfidence); err != nil {
		return nil, fmt.Errorf("decode confidence map: %w", err)
	}
	res.ProcessingTime = time.Duration(processingMs) * time.Millisecond
	return &res, nil
}
