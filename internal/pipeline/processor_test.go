package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
	"docproc/internal/extract"
	"docproc/internal/media"
	"docproc/internal/ocr"
	"docproc/internal/vendor"
)

type fakeDocs struct {
	docs     map[uuid.UUID]*entity.Document
	statuses map[uuid.UUID][]constants.DocumentStatus
	vendors  map[uuid.UUID]uuid.UUID
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		docs:     make(map[uuid.UUID]*entity.Document),
		statuses: make(map[uuid.UUID][]constants.DocumentStatus),
		vendors:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *fakeDocs) CreateDocument(_ context.Context, doc *entity.Document) (*entity.Document, error) {
	doc.ID = uuid.New()
	s.docs[doc.ID] = doc
	s.statuses[doc.ID] = append(s.statuses[doc.ID], doc.Status)
	return doc, nil
}

func (s *fakeDocs) record(id uuid.UUID, status constants.DocumentStatus) {
	s.docs[id].Status = status
	s.statuses[id] = append(s.statuses[id], status)
}

func (s *fakeDocs) MarkProcessing(_ context.Context, id uuid.UUID) error {
	s.record(id, constants.DocumentProcessing)
	return nil
}

func (s *fakeDocs) MarkCompleted(_ context.Context, id uuid.UUID) error {
	s.record(id, constants.DocumentCompleted)
	return nil
}

func (s *fakeDocs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.record(id, constants.DocumentFailed)
	s.docs[id].FailureReason = &reason
	return nil
}

func (s *fakeDocs) SetVendor(_ context.Context, id, vendorID uuid.UUID) error {
	s.vendors[id] = vendorID
	return nil
}

type fakeExtractions struct {
	created []*entity.ExtractionResult
}

func (s *fakeExtractions) CreateExtraction(_ context.Context, res *entity.ExtractionResult) (*entity.ExtractionResult, error) {
	res.ID = uuid.New()
	s.created = append(s.created, res)
	return res, nil
}

type fakeNormalizer struct{ err error }

func (n *fakeNormalizer) Normalize(_ context.Context, _ []byte, _ string) ([]media.Page, error) {
	if n.err != nil {
		return nil, n.err
	}
	return []media.Page{{Index: 0}}, nil
}

type fakeRecognizer struct {
	res ocr.Result
	err error
}

func (r *fakeRecognizer) Recognize(_ context.Context, _ []media.Page) (ocr.Result, error) {
	return r.res, r.err
}

type fakeExtractor struct {
	extraction *extract.Extraction
	err        error
}

func (e *fakeExtractor) ExtractFields(_ context.Context, _ extract.Request) (*extract.Extraction, error) {
	return e.extraction, e.err
}

type fakeEnqueuer struct {
	items []*entity.ReviewQueueItem
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, documentID, extractionID uuid.UUID,
	extracted json.RawMessage, findings []entity.ValidationFinding,
	priority constants.ReviewPriority) (*entity.ReviewQueueItem, error) {

	item := &entity.ReviewQueueItem{
		ID:            uuid.New(),
		DocumentID:    documentID,
		ExtractionID:  extractionID,
		ExtractedData: extracted,
		Findings:      findings,
		Priority:      priority,
		Status:        constants.ReviewPending,
	}
	e.items = append(e.items, item)
	return item, nil
}

type fakeResolver struct {
	identity *entity.VendorIdentity
	sightings []vendor.Sighting
}

func (r *fakeResolver) Resolve(_ context.Context, s vendor.Sighting) (*entity.VendorIdentity, error) {
	r.sightings = append(r.sightings, s)
	if r.identity == nil {
		r.identity = &entity.VendorIdentity{ID: uuid.New()}
	}
	return r.identity, nil
}

func cleanInvoice(confidence float64) *extract.Extraction {
	inv := &entity.InvoiceFields{
		DocumentNumber: entity.S("INV-001"),
		DocumentDate:   entity.S("2026-08-01"),
		Issuer: &entity.Party{
			LegalName: entity.S("Umesh Traders"),
			GSTIN:     entity.S("27AAPFU0939F1ZV"),
		},
		Recipient: &entity.Party{GSTIN: entity.S("29AAGCB7383J1Z4")},
		LineItems: []entity.LineItem{{
			Quantity: entity.F(1), Rate: entity.F(10000), Amount: entity.F(10000),
		}},
		TaxSummary: &entity.TaxSummary{
			Subtotal: entity.F(10000), CGST: entity.F(900), SGST: entity.F(900),
			IGST: entity.F(0), GrandTotal: entity.F(11800),
		},
	}
	return &extract.Extraction{
		Kind:          constants.KindInvoice,
		SchemaVersion: extract.SchemaVersion,
		Invoice:       inv,
		FieldConfidence: map[string]float64{
			"issuer.gstin":            confidence,
			"tax_summary.grand_total": confidence,
			"document_number":         confidence,
		},
		RawJSON: []byte(`{"fields":{}}`),
	}
}

type fixture struct {
	docs        *fakeDocs
	extractions *fakeExtractions
	reviews     *fakeEnqueuer
	resolver    *fakeResolver
	processor   *Processor
}

func newFixture(extraction *extract.Extraction) *fixture {
	f := &fixture{
		docs:        newFakeDocs(),
		extractions: &fakeExtractions{},
		reviews:     &fakeEnqueuer{},
		resolver:    &fakeResolver{},
	}
	f.processor = NewProcessor(Deps{
		Documents:   f.docs,
		Extractions: f.extractions,
		Normalizer:  &fakeNormalizer{},
		Recognizer:  &fakeRecognizer{res: ocr.Result{Text: "TAX INVOICE", Confidence: 0.93, EngineUsed: "tesseract"}},
		Extractor:   &fakeExtractor{extraction: extraction},
		Reviews:     f.reviews,
		Vendors:     f.resolver,
	})
	return f
}

func event() entity.InboundEvent {
	return entity.InboundEvent{
		SenderIdentity: "alice",
		ClientID:       uuid.New(),
		Type:           entity.EventDocument,
		Filename:       "inv.pdf",
		MimeType:       "application/pdf",
		Payload:        []byte("%PDF"),
	}
}

func TestProcessAutoApprovesCleanHighConfidenceInvoice(t *testing.T) {
	f := newFixture(cleanInvoice(0.97))

	outcome, err := f.processor.Process(context.Background(), event(), constants.KindInvoice)
	require.NoError(t, err)
	assert.True(t, outcome.AutoApproved)
	assert.Nil(t, outcome.ReviewItemID)
	assert.Empty(t, f.reviews.items)

	doc := f.docs.docs[outcome.DocumentID]
	assert.Equal(t, constants.DocumentCompleted, doc.Status)
	assert.Equal(t, []constants.DocumentStatus{
		constants.DocumentUploaded, constants.DocumentProcessing, constants.DocumentCompleted,
	}, f.docs.statuses[outcome.DocumentID])

	require.Len(t, f.extractions.created, 1)
	stored := f.extractions.created[0]
	assert.Equal(t, outcome.DocumentID, stored.DocumentID)
	assert.InDelta(t, 0.97, stored.WeightedConfidence, 1e-9)
	assert.InDelta(t, 0.93, stored.OCRConfidence, 1e-9)
}

func TestProcessRoutesLowConfidenceToReview(t *testing.T) {
	f := newFixture(cleanInvoice(0.70))

	outcome, err := f.processor.Process(context.Background(), event(), constants.KindInvoice)
	require.NoError(t, err)
	assert.False(t, outcome.AutoApproved)
	require.NotNil(t, outcome.ReviewItemID)

	require.Len(t, f.reviews.items, 1)
	assert.Equal(t, constants.PriorityHigh, f.reviews.items[0].Priority)
	assert.Equal(t, constants.DocumentCompleted, f.docs.docs[outcome.DocumentID].Status,
		"extraction completed even though review is pending")
}

func TestProcessValidationErrorForcesHighPriorityReview(t *testing.T) {
	extraction := cleanInvoice(0.97)
	extraction.Invoice.TaxSummary.IGST = entity.F(1800) // both tax modes present

	f := newFixture(extraction)
	outcome, err := f.processor.Process(context.Background(), event(), constants.KindInvoice)
	require.NoError(t, err)
	assert.False(t, outcome.AutoApproved)
	require.Len(t, f.reviews.items, 1)
	assert.Equal(t, constants.PriorityHigh, f.reviews.items[0].Priority)
	assert.True(t, entity.HasErrors(f.reviews.items[0].Findings))
}

func TestProcessNormalizationFailureMarksFailed(t *testing.T) {
	f := newFixture(cleanInvoice(0.97))
	f.processor.normalizer = &fakeNormalizer{
		err: common.WrapError(common.ErrNormalization, "decode image", errors.New("bad bytes")),
	}

	_, err := f.processor.Process(context.Background(), event(), constants.KindInvoice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNormalization))

	require.Len(t, f.docs.docs, 1)
	for _, doc := range f.docs.docs {
		assert.Equal(t, constants.DocumentFailed, doc.Status)
		require.NotNil(t, doc.FailureReason)
	}
	assert.Empty(t, f.extractions.created, "no extraction persisted for a failed document")
}

func TestProcessRecognitionExhaustionMarksFailed(t *testing.T) {
	f := newFixture(cleanInvoice(0.97))
	f.processor.recognizer = &fakeRecognizer{
		err: common.WrapError(common.ErrRecognitionExhausted, "recognize page", errors.New("no engines left")),
	}

	_, err := f.processor.Process(context.Background(), event(), constants.KindInvoice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRecognitionExhausted))
}

func TestProcessLinksVendorFromIssuer(t *testing.T) {
	f := newFixture(cleanInvoice(0.97))

	outcome, err := f.processor.Process(context.Background(), event(), constants.KindInvoice)
	require.NoError(t, err)

	require.Len(t, f.resolver.sightings, 1)
	s := f.resolver.sightings[0]
	assert.Equal(t, "Umesh Traders", s.Name)
	assert.Equal(t, "27AAPFU0939F1ZV", s.GSTIN)
	assert.InDelta(t, 11800, s.Amount, 1e-9)
	assert.Equal(t, f.resolver.identity.ID, f.docs.vendors[outcome.DocumentID])
}

func TestProcessKYCSkipsInvoiceValidationAndVendor(t *testing.T) {
	extraction := &extract.Extraction{
		Kind:          constants.KindKYCPAN,
		SchemaVersion: extract.SchemaVersion,
		KYC: &entity.KYCFields{
			DocumentNumber: entity.S("AAPFU0939F"),
			HolderName:     entity.S("Anil Kumar"),
		},
		FieldConfidence: map[string]float64{"document_number": 0.99, "holder_name": 0.98},
		RawJSON:         []byte(`{"fields":{}}`),
	}
	f := newFixture(extraction)

	outcome, err := f.processor.Process(context.Background(), event(), constants.KindKYCPAN)
	require.NoError(t, err)
	assert.True(t, outcome.AutoApproved)
	assert.Empty(t, f.resolver.sightings)
}
