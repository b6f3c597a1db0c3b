package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docproc/internal/anomaly"
	"docproc/internal/common"
	"docproc/internal/entity"
	"docproc/internal/extract"
	"docproc/internal/intake"
	"docproc/internal/media"
	"docproc/internal/metrics"
	"docproc/internal/ocr"
	"docproc/internal/pipeline"
	"docproc/internal/queue"
	"docproc/internal/repository"
	"docproc/internal/review"
	"docproc/internal/route"
	"docproc/internal/server"
	"docproc/internal/vendor"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	log := common.NewJSONLogger("docprocd", os.Getenv("LOG_LEVEL"))

	if err := cfg.Validate(); err != nil {
		log.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	nq, err := queue.Connect(cfg.Queue, log)
	if err != nil {
		log.Error("queue connect failed", "error", err)
		os.Exit(1)
	}
	defer nq.Close()

	m := metrics.New()

	// storage
	docs := repository.NewDocumentRepository(pool, cfg.Intake.DuplicateWindow)
	extractions := repository.NewExtractionRepository(pool)
	reviews := repository.NewReviewRepository(pool)
	vendors := repository.NewVendorRepository(pool, docs)

	// recognition chain: local engine first, cloud fallback when configured
	normalizer := media.NewNormalizer(media.Config{
		Pdftoppm: cfg.OCR.Pdftoppm,
		DPI:      cfg.OCR.DPI,
		MaxPages: cfg.OCR.MaxPages,
	}, nil, log)

	engines := []ocr.Engine{
		ocr.NewTesseractEngine(ocr.TesseractConfig{
			Tesseract:   cfg.OCR.Tesseract,
			Lang:        cfg.OCR.TesseractLang,
			TessdataDir: cfg.OCR.TessdataDir,
		}, nil, log),
	}
	if cfg.OCR.CloudURL != "" {
		engines = append(engines, ocr.NewCloudEngine(ocr.CloudConfig{
			URL:    cfg.OCR.CloudURL,
			APIKey: cfg.OCR.CloudAPIKey,
		}, nil, log))
	}
	orchestrator := ocr.NewOrchestrator(ocr.Config{EngineTimeout: cfg.OCR.EngineTimeout}, engines, log)

	extractor := extract.NewOpenAIExtractor(extract.OpenAIConfig{
		Model:       cfg.Extract.Model,
		APIKey:      cfg.Extract.APIKey,
		BaseURL:     cfg.Extract.BaseURL,
		Temperature: cfg.Extract.Temperature,
		Timeout:     cfg.Extract.Timeout,
	}, nil, log)

	resolver := vendor.NewResolver(vendor.Config{
		SimilarityThreshold: cfg.Vendor.SimilarityThreshold,
	}, vendors, log)

	workflow := review.NewWorkflow(reviews, nq, log)

	processor := pipeline.NewProcessor(pipeline.Deps{
		Documents:   docs,
		Extractions: extractions,
		Normalizer:  normalizer,
		Recognizer:  orchestrator,
		Extractor:   extractor,
		Thresholds: route.Thresholds{
			AutoApprove:       cfg.Routing.AutoApproveThreshold,
			HighPriorityBelow: cfg.Routing.HighPriorityBelow,
		},
		Reviews: workflow,
		Vendors: resolver,
		Metrics: m,
		Logger:  log,
	})

	sessions := intake.NewSessionStore(cfg.Intake.SessionTTL)
	machine := intake.NewMachine(sessions, processor, docs, m, log)

	// queued channel events flow through the same machine as webhook ones
	sub, err := nq.SubscribeInbound(ctx, func(ctx context.Context, ev entity.InboundEvent) {
		if _, err := machine.Handle(ctx, ev); err != nil && !intake.IsDuplicate(err) {
			log.Error("inbound event failed", "sender", ev.SenderIdentity, "error", err)
		}
	})
	if err != nil {
		log.Error("queue subscribe failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	srv := server.New(server.Deps{
		Machine:  machine,
		Workflow: workflow,
		Reviews:  reviews,
		Docs:     docs,
		Detector: anomaly.NewDetector(anomaly.Config{}, log),
		Source:   repository.NewAnomalySource(docs, log),
		Health: func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool)
		},
		Metrics: m,
		Logger:  log,
	})

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Router()}
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: m.Handler()}

	go func() {
		log.Info("http listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http serve failed", "error", err)
			stop()
		}
	}()
	go func() {
		log.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics serve failed", "error", err)
		}
	}()

	// periodic session sweep
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Sweep(); n > 0 {
					log.Debug("sessions swept", "removed", n)
				}
			}
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown error", "error", err)
	}
	log.Info("stopped")
}
