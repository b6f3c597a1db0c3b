package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"docproc/internal/anomaly"
	"docproc/internal/entity"
)

// AnomalySource projects completed documents into detector records.
type AnomalySource struct {
	docs   *DocumentRepository
	logger *slog.Logger
}

func NewAnomalySource(docs *DocumentRepository, logger *slog.Logger) *AnomalySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnomalySource{docs: docs, logger: logger}
}

// ListRecords loads the scan window and decodes each document's latest
// extraction into the flat detector shape. Rows whose payload does not parse
// are skipped, not fatal: one bad row must not block a scan.
func (s *AnomalySource) ListRecords(ctx context.Context, since time.Time) ([]anomaly.Record, error) {
	rows, err := s.docs.ListVendorDocuments(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load scan window: %w", err)
	}

	out := make([]anomaly.Record, 0, len(rows))
	for _, row := range rows {
		var envelope struct {
			Fields entity.InvoiceFields `json:"fields"`
		}
		if err := json.Unmarshal(row.Fields, &envelope); err != nil {
			s.logger.Warn("anomaly_source.decode_skip", "document_id", row.DocumentID, "error", err)
			continue
		}
		inv := envelope.Fields

		rec := anomaly.Record{
			DocumentID:     row.DocumentID,
			VendorID:       row.VendorID,
			DocumentNumber: entity.DerefS(inv.DocumentNumber),
			Tax:            inv.TaxSummary,
			// payment state is tracked outside this system
			Paid: true,
		}
		if inv.TaxSummary != nil {
			rec.Amount = entity.Deref(inv.TaxSummary.GrandTotal)
		}
		rec.IssueDate = parseDay(inv.DocumentDate)
		rec.DueDate = parseDay(inv.DueDate)
		out = append(out, rec)
	}
	return out, nil
}

func parseDay(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}
