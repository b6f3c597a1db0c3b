package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docproc/constants"
	"docproc/internal/anomaly"
	"docproc/internal/common"
	"docproc/internal/entity"
	"docproc/internal/intake"
	"docproc/internal/metrics"
	"docproc/internal/review"
)

// DocumentGetter looks up document metadata for handler-side joins.
type DocumentGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Document, error)
}

// AnomalySource feeds the on-demand anomaly scan.
type AnomalySource interface {
	ListRecords(ctx context.Context, since time.Time) ([]anomaly.Record, error)
}

// HealthChecker reports backing-store liveness.
type HealthChecker func(ctx context.Context) error

// Server is the HTTP surface: the channel webhook, the reviewer API and the
// anomaly scan trigger.
type Server struct {
	machine  *intake.Machine
	workflow *review.Workflow
	reviews  review.Store
	docs     DocumentGetter
	detector *anomaly.Detector
	source   AnomalySource
	health   HealthChecker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Deps struct {
	Machine  *intake.Machine
	Workflow *review.Workflow
	Reviews  review.Store
	Docs     DocumentGetter
	Detector *anomaly.Detector
	Source   AnomalySource
	Health   HealthChecker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		machine:  d.Machine,
		workflow: d.Workflow,
		reviews:  d.Reviews,
		docs:     d.Docs,
		detector: d.Detector,
		source:   d.Source,
		health:   d.Health,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.handleHealth)
	r.POST("/webhook/events", s.handleInboundEvent)

	api := r.Group("/api")
	{
		api.GET("/documents/:id", s.handleGetDocument)
		api.GET("/review/items", s.handleListReviewItems)
		api.POST("/review/items/:id/assign", s.handleAssign)
		api.POST("/review/items/:id/approve", s.handleApprove)
		api.POST("/review/items/:id/reject", s.handleReject)
		api.POST("/review/items/:id/escalate", s.handleEscalate)
		api.GET("/anomalies", s.handleAnomalyScan)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInboundEvent(c *gin.Context) {
	var ev entity.InboundEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event: " + err.Error()})
		return
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	reply, err := s.machine.Handle(c.Request.Context(), ev)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, gin.H{"error": err.Error(), "reply": reply})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if s.docs == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "document lookup is not configured"})
		return
	}
	doc, err := s.docs.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func (s *Server) handleListReviewItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter := review.ListFilter{
		Status:   constants.ReviewStatus(c.Query("status")),
		Priority: constants.ReviewPriority(c.Query("priority")),
		Limit:    limit,
	}
	items, err := s.reviews.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type assignRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
}

func (s *Server) handleAssign(c *gin.Context) {
	itemID, ok := pathID(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := s.workflow.Assign(c.Request.Context(), itemID, req.Reviewer)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

type approveRequest struct {
	Reviewer      string          `json:"reviewer" binding:"required"`
	CorrectedData json.RawMessage `json:"corrected_data,omitempty"`
	NotifySender  string          `json:"notify_sender,omitempty"`
}

func (s *Server) handleApprove(c *gin.Context) {
	itemID, ok := pathID(c)
	if !ok {
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.ledgerRecord(c.Request.Context(), itemID, req.CorrectedData)
	if err != nil {
		s.logger.Warn("server.ledger_record_skipped", "item_id", itemID, "error", err)
	}

	item, err := s.workflow.Approve(c.Request.Context(), itemID, req.Reviewer, req.CorrectedData, rec)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if req.NotifySender != "" {
		s.machine.ResolvePending(req.NotifySender, true)
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

type rejectRequest struct {
	Reviewer     string `json:"reviewer" binding:"required"`
	Notes        string `json:"notes"`
	NotifySender string `json:"notify_sender,omitempty"`
}

func (s *Server) handleReject(c *gin.Context) {
	itemID, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := s.workflow.Reject(c.Request.Context(), itemID, req.Reviewer, req.Notes)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if req.NotifySender != "" {
		s.machine.ResolvePending(req.NotifySender, false)
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (s *Server) handleEscalate(c *gin.Context) {
	itemID, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := s.workflow.Escalate(c.Request.Context(), itemID, req.Reviewer, req.Notes)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (s *Server) handleAnomalyScan(c *gin.Context) {
	if s.detector == nil || s.source == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "anomaly scan is not configured"})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "365"))
	since := time.Now().AddDate(0, 0, -days)

	records, err := s.source.ListRecords(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report := s.detector.Scan(records)
	if s.metrics != nil {
		for _, a := range report.Anomalies {
			s.metrics.AnomaliesTotal.WithLabelValues(a.Type).Inc()
		}
	}
	c.JSON(http.StatusOK, report)
}

// ledgerRecord builds the bookkeeping handoff from the payload that will be
// approved: the corrected one when supplied, the original otherwise.
func (s *Server) ledgerRecord(ctx context.Context, itemID uuid.UUID, corrected json.RawMessage) (*entity.LedgerRecord, error) {
	item, err := s.reviews.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	payload := item.ExtractedData
	if len(corrected) > 0 {
		payload = corrected
	}

	var envelope struct {
		Fields entity.InvoiceFields `json:"fields"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	inv := envelope.Fields
	if inv.TaxSummary == nil || inv.Issuer == nil {
		return nil, nil // KYC or partial payload: nothing to post
	}

	rec := &entity.LedgerRecord{
		DocumentID:   item.DocumentID,
		VendorName:   entity.DerefS(inv.Issuer.LegalName),
		VendorGSTIN:  inv.Issuer.GSTIN,
		DocumentDate: entity.DerefS(inv.DocumentDate),
		Subtotal:     entity.Deref(inv.TaxSummary.Subtotal),
		TaxTotal: entity.Deref(inv.TaxSummary.CGST) + entity.Deref(inv.TaxSummary.SGST) +
			entity.Deref(inv.TaxSummary.IGST),
		GrandTotal: entity.Deref(inv.TaxSummary.GrandTotal),
		Currency:   "INR",
	}
	return rec, nil
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrAssignmentConflict),
		errors.Is(err, common.ErrInvalidTransition),
		errors.Is(err, common.ErrDuplicateSubmission):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
