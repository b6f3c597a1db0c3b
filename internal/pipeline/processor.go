package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docproc/constants"
	"docproc/internal/entity"
	"docproc/internal/extract"
	"docproc/internal/intake"
	"docproc/internal/media"
	"docproc/internal/metrics"
	"docproc/internal/ocr"
	"docproc/internal/route"
	"docproc/internal/validate"
	"docproc/internal/vendor"
)

// DocumentStore persists document lifecycle state.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	SetVendor(ctx context.Context, id, vendorID uuid.UUID) error
}

// ExtractionStore persists immutable extraction results.
type ExtractionStore interface {
	CreateExtraction(ctx context.Context, res *entity.ExtractionResult) (*entity.ExtractionResult, error)
}

// Enqueuer routes a non-auto-approved document into the review queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, documentID, extractionID uuid.UUID,
		extracted json.RawMessage, findings []entity.ValidationFinding,
		priority constants.ReviewPriority) (*entity.ReviewQueueItem, error)
}

// VendorResolver links an extraction's counterparty to a deduplicated identity.
type VendorResolver interface {
	Resolve(ctx context.Context, s vendor.Sighting) (*entity.VendorIdentity, error)
}

// Recognizer is the page-chain OCR surface the processor depends on.
type Recognizer interface {
	Recognize(ctx context.Context, pages []media.Page) (ocr.Result, error)
}

// Normalizer converts raw bytes to recognition-ready pages.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, mimeType string) ([]media.Page, error)
}

// Processor runs one document through the full pipeline. Each document is an
// independent unit of work; the processor holds no per-document state and is
// safe for concurrent use.
type Processor struct {
	docs       DocumentStore
	extOut     ExtractionStore
	normalizer Normalizer
	recognizer Recognizer
	extractor  extract.FieldExtractor
	validator  *validate.Validator
	thresholds route.Thresholds
	reviews    Enqueuer
	vendors    VendorResolver
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Deps struct {
	Documents   DocumentStore
	Extractions ExtractionStore
	Normalizer  Normalizer
	Recognizer  Recognizer
	Extractor   extract.FieldExtractor
	Thresholds  route.Thresholds
	Reviews     Enqueuer
	Vendors     VendorResolver
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func NewProcessor(d Deps) *Processor {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Thresholds == (route.Thresholds{}) {
		d.Thresholds = route.DefaultThresholds()
	}
	return &Processor{
		docs:       d.Documents,
		extOut:     d.Extractions,
		normalizer: d.Normalizer,
		recognizer: d.Recognizer,
		extractor:  d.Extractor,
		validator:  validate.NewValidator(),
		thresholds: d.Thresholds,
		reviews:    d.Reviews,
		vendors:    d.Vendors,
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

// Process implements the intake pipeline contract: normalize, recognize,
// extract, validate, route. A fatal stage failure marks the document FAILED
// and propagates; a routed document leaves with a pending review item.
func (p *Processor) Process(ctx context.Context, ev entity.InboundEvent, kind constants.DocumentKind) (*intake.PipelineOutcome, error) {
	doc, err := p.docs.CreateDocument(ctx, &entity.Document{
		ClientID:      ev.ClientID,
		Kind:          kind,
		Filename:      ev.Filename,
		ByteSize:      int64(len(ev.Payload)),
		MimeType:      ev.MimeType,
		SourceChannel: string(ev.Type),
		Status:        constants.DocumentUploaded,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	log := p.logger.With("document_id", doc.ID)

	if err := p.docs.MarkProcessing(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	pages, err := p.stageNormalize(ctx, ev)
	if err != nil {
		return nil, p.fail(ctx, log, doc.ID, "normalize", err)
	}

	ocrRes, err := p.stageRecognize(ctx, pages)
	if err != nil {
		return nil, p.fail(ctx, log, doc.ID, "recognize", err)
	}

	extraction, err := p.stageExtract(ctx, ev, kind, ocrRes)
	if err != nil {
		return nil, p.fail(ctx, log, doc.ID, "extract", err)
	}

	findings := p.stageValidate(extraction)
	decision := route.Decide(p.thresholds, extraction.FieldConfidence, findings)

	stored, err := p.extOut.CreateExtraction(ctx, &entity.ExtractionResult{
		DocumentID:         doc.ID,
		SchemaVersion:      extraction.SchemaVersion,
		Fields:             extraction.RawJSON,
		FieldConfidence:    extraction.FieldConfidence,
		OverallConfidence:  decision.OverallConfidence,
		WeightedConfidence: decision.WeightedConfidence,
		OCRConfidence:      ocrRes.Confidence,
		OCRText:            &ocrRes.Text,
		ProcessingTime:     ocrRes.ProcessingTime,
	})
	if err != nil {
		return nil, p.fail(ctx, log, doc.ID, "persist extraction", err)
	}

	p.resolveVendor(ctx, log, doc.ID, extraction)

	if err := p.docs.MarkCompleted(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	if p.metrics != nil {
		p.metrics.DocumentsTotal.WithLabelValues(string(constants.DocumentCompleted)).Inc()
	}

	outcome := &intake.PipelineOutcome{DocumentID: doc.ID, AutoApproved: decision.AutoApprove}
	if decision.AutoApprove {
		log.Info("pipeline.auto_approved",
			"weighted_confidence", decision.WeightedConfidence)
		return outcome, nil
	}

	item, err := p.reviews.Enqueue(ctx, doc.ID, stored.ID, extraction.RawJSON, findings, decision.Priority)
	if err != nil {
		return nil, fmt.Errorf("enqueue review: %w", err)
	}
	if p.metrics != nil {
		p.metrics.ReviewEnqueuedTotal.WithLabelValues(string(decision.Priority)).Inc()
	}
	outcome.ReviewItemID = &item.ID

	log.Info("pipeline.routed_to_review",
		"priority", decision.Priority,
		"weighted_confidence", decision.WeightedConfidence,
		"findings", len(findings))
	return outcome, nil
}

func (p *Processor) stageNormalize(ctx context.Context, ev entity.InboundEvent) ([]media.Page, error) {
	start := time.Now()
	pages, err := p.normalizer.Normalize(ctx, ev.Payload, ev.MimeType)
	p.observe("normalize", start)
	return pages, err
}

func (p *Processor) stageRecognize(ctx context.Context, pages []media.Page) (ocr.Result, error) {
	start := time.Now()
	res, err := p.recognizer.Recognize(ctx, pages)
	p.observe("recognize", start)
	if err == nil && p.metrics != nil {
		p.metrics.EngineUsedTotal.WithLabelValues(res.EngineUsed).Inc()
		p.metrics.OCRConfidence.Observe(res.Confidence)
	}
	return res, err
}

func (p *Processor) stageExtract(ctx context.Context, ev entity.InboundEvent,
	kind constants.DocumentKind, ocrRes ocr.Result) (*extract.Extraction, error) {

	start := time.Now()
	extraction, err := p.extractor.ExtractFields(ctx, extract.Request{
		Text:          ocrRes.Text,
		Kind:          kind,
		FilenameHint:  ev.Filename,
		OCRConfidence: ocrRes.Confidence,
	})
	p.observe("extract", start)
	return extraction, err
}

func (p *Processor) stageValidate(extraction *extract.Extraction) []entity.ValidationFinding {
	if extraction.Invoice == nil {
		return nil
	}
	start := time.Now()
	findings := p.validator.ValidateInvoice(extraction.Invoice)
	p.observe("validate", start)
	return findings
}

// resolveVendor links the issuer to an identity. Resolution failures are
// logged, not fatal: the document's extraction already stands on its own.
func (p *Processor) resolveVendor(ctx context.Context, log *slog.Logger, docID uuid.UUID, extraction *extract.Extraction) {
	if p.vendors == nil || extraction.Invoice == nil || extraction.Invoice.Issuer == nil {
		return
	}
	inv := extraction.Invoice

	sighting := vendor.Sighting{
		Name:  entity.DerefS(inv.Issuer.LegalName),
		GSTIN: entity.DerefS(inv.Issuer.GSTIN),
		PAN:   entity.DerefS(inv.Issuer.PAN),
	}
	if inv.TaxSummary != nil {
		sighting.Amount = entity.Deref(inv.TaxSummary.GrandTotal)
	}
	if sighting.Name == "" && sighting.GSTIN == "" && sighting.PAN == "" {
		return
	}

	identity, err := p.vendors.Resolve(ctx, sighting)
	if err != nil {
		log.Warn("pipeline.vendor_resolution_failed", "error", err)
		return
	}
	if err := p.docs.SetVendor(ctx, docID, identity.ID); err != nil {
		log.Warn("pipeline.vendor_link_failed", "error", err)
	}
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, docID uuid.UUID, stage string, err error) error {
	log.Error("pipeline.stage_failed", "stage", stage, "error", err)
	if markErr := p.docs.MarkFailed(ctx, docID, err.Error()); markErr != nil {
		log.Error("pipeline.mark_failed_error", "error", markErr)
	}
	if p.metrics != nil {
		p.metrics.DocumentsTotal.WithLabelValues(string(constants.DocumentFailed)).Inc()
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func (p *Processor) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(start))
	}
}
