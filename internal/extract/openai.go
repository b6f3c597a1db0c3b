package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"docproc/constants"
)

// OpenAIConfig holds the structured-output model settings.
type OpenAIConfig struct {
	Model       string
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1
	Temperature float32
	Timeout     time.Duration
}

// OpenAIExtractor implements FieldExtractor against a chat-completions API
// with a JSON-Schema structured output constraint.
type OpenAIExtractor struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

func NewOpenAIExtractor(cfg OpenAIConfig, client *http.Client, logger *slog.Logger) *OpenAIExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIExtractor{cfg: cfg, client: client, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float32       `json:"temperature"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat any           `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ExtractFields sends the per-kind prompt and decodes the structured response
// at the boundary. Schema violations surface as ErrSchemaViolation.
func (e *OpenAIExtractor) ExtractFields(ctx context.Context, req Request) (*Extraction, error) {
	kind := req.Kind
	if kind == "" {
		kind = constants.KindInvoice
	}

	body := chatRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(kind)},
			{Role: "user", Content: BuildUserPrompt(req)},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "document_extraction",
				"strict": true,
				"schema": BuildJSONSchema(kind),
			},
		},
	}

	raw, err := e.sendJSON(ctx, e.cfg.BaseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("model error (%s): %s", cr.Error.Type, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	return DecodePayload(kind, []byte(cr.Choices[0].Message.Content))
}

// sendJSON posts a JSON body and returns the raw response. Caller decides the
// URL; headers are fixed for the provider.
func (e *OpenAIExtractor) sendJSON(ctx context.Context, url string, body any) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	e.logger.Info("extract.http.request", "req_id", reqID, "content_length", len(bs))

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("extract.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Warn("extract.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	e.logger.Info("extract.http.response", "req_id", reqID, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return raw, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, nil
}
