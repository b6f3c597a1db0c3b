package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"docproc/internal/common"
	"docproc/internal/media"
)

// PageSeparator joins recognized pages in document order.
const PageSeparator = "\n\f\n"

// Result is the orchestrator output for one document.
type Result struct {
	Text           string
	Confidence     float64 // mean per-page confidence, 0..1
	ProcessingTime time.Duration
	EngineUsed     string
}

// Config holds orchestration knobs.
type Config struct {
	EngineTimeout time.Duration // per engine per page, default 10s
}

// Orchestrator runs the engine chain over normalized pages. Engines are tried
// in order per page; the first one to produce usable text wins that page.
// Exhausting the chain for any page is fatal for the document.
type Orchestrator struct {
	cfg     Config
	engines []Engine
	logger  *slog.Logger
}

func NewOrchestrator(cfg Config, engines []Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 10 * time.Second
	}
	return &Orchestrator{cfg: cfg, engines: engines, logger: logger}
}

// Recognize OCRs every page and concatenates the post-processed text.
func (o *Orchestrator) Recognize(ctx context.Context, pages []media.Page) (Result, error) {
	start := time.Now()

	var parts []string
	var confSum float64
	var engineUsed string

	for _, page := range pages {
		res, engine, err := o.recognizePage(ctx, page)
		if err != nil {
			return Result{ProcessingTime: time.Since(start)}, err
		}
		parts = append(parts, res.Text)
		confSum += res.Confidence
		engineUsed = engine
	}

	text := PostProcess(strings.Join(parts, PageSeparator))
	out := Result{
		Text:           text,
		ProcessingTime: time.Since(start),
		EngineUsed:     engineUsed,
	}
	if len(pages) > 0 {
		out.Confidence = confSum / float64(len(pages))
	}

	o.logger.Info("ocr.recognize.ok",
		"pages", len(pages),
		"engine", engineUsed,
		"confidence", out.Confidence,
		"elapsed_ms", out.ProcessingTime.Milliseconds(),
	)
	return out, nil
}

// recognizePage walks the fallback chain with a fixed timeout budget per engine.
func (o *Orchestrator) recognizePage(ctx context.Context, page media.Page) (EngineResult, string, error) {
	var lastErr error
	for _, engine := range o.engines {
		engCtx, cancel := context.WithTimeout(ctx, o.cfg.EngineTimeout)
		res, err := engine.Recognize(engCtx, page)
		cancel()

		if err != nil {
			lastErr = err
			o.logger.Warn("ocr.engine.failed",
				"engine", engine.Name(), "page", page.Index, "error", err)
			continue
		}
		if strings.TrimSpace(res.Text) == "" {
			lastErr = nil
			o.logger.Warn("ocr.engine.empty", "engine", engine.Name(), "page", page.Index)
			continue
		}
		return res, engine.Name(), nil
	}
	return EngineResult{}, "", common.WrapError(common.ErrRecognitionExhausted,
		"recognize page", nonNil(lastErr))
}

func nonNil(err error) error {
	if err != nil {
		return err
	}
	return errEmptyText
}

var errEmptyText = &emptyTextError{}

type emptyTextError struct{}

func (*emptyTextError) Error() string { return "all engines returned empty text" }
