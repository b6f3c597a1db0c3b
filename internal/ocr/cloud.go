package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"docproc/internal/media"
)

// CloudConfig holds the fallback recognition service settings.
type CloudConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration // per-request budget, default 10s
}

// CloudEngine calls the hosted vision recognition service. All provider error
// shapes are collapsed into a single wrapped error; a circuit breaker keeps a
// flapping provider from stalling every document.
type CloudEngine struct {
	cfg     CloudConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[EngineResult]
	logger  *slog.Logger
}

func NewCloudEngine(cfg CloudConfig, client *http.Client, logger *slog.Logger) *CloudEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	breaker := gobreaker.NewCircuitBreaker[EngineResult](gobreaker.Settings{
		Name:    "cloud-vision",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &CloudEngine{cfg: cfg, client: client, breaker: breaker, logger: logger}
}

func (e *CloudEngine) Name() string { return "cloud-vision" }

type cloudRequest struct {
	ImageBase64 string `json:"image_base64"`
	Language    string `json:"language,omitempty"`
}

// cloudResponse tolerates the provider's two observed shapes: a flat
// {text, confidence} object or an annotations array.
type cloudResponse struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Error       *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Annotations []struct {
		Description string  `json:"description"`
		Score       float64 `json:"score"`
	} `json:"annotations,omitempty"`
}

func (e *CloudEngine) Recognize(ctx context.Context, page media.Page) (EngineResult, error) {
	return e.breaker.Execute(func() (EngineResult, error) {
		return e.recognize(ctx, page)
	})
}

func (e *CloudEngine) recognize(ctx context.Context, page media.Page) (EngineResult, error) {
	png, err := page.EncodePNG()
	if err != nil {
		return EngineResult{}, err
	}

	reqID := uuid.New().String()
	body, err := json.Marshal(cloudRequest{ImageBase64: base64.StdEncoding.EncodeToString(png)})
	if err != nil {
		return EngineResult{}, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return EngineResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	start := time.Now()
	e.logger.Info("ocr.cloud.request", "req_id", reqID, "bytes", len(body))

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("ocr.cloud.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return EngineResult{}, fmt.Errorf("cloud vision: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Warn("ocr.cloud.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	e.logger.Info("ocr.cloud.response", "req_id", reqID, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return EngineResult{}, fmt.Errorf("cloud vision: non-2xx status %d: %s",
			resp.StatusCode, truncate(string(raw), 256))
	}

	var cr cloudResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return EngineResult{}, fmt.Errorf("cloud vision: decode: %w", err)
	}
	if cr.Error != nil {
		return EngineResult{}, fmt.Errorf("cloud vision: provider error %d: %s", cr.Error.Code, cr.Error.Message)
	}

	res := EngineResult{Text: cr.Text, Confidence: cr.Confidence}
	if res.Text == "" && len(cr.Annotations) > 0 {
		// annotation-array shape: first entry is the full-page text
		res.Text = cr.Annotations[0].Description
		res.Confidence = cr.Annotations[0].Score
	}
	if res.Confidence <= 0 && res.Text != "" {
		res.Confidence = 0.5 // provider omitted a score; middle-of-road default
	}
	return res, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
