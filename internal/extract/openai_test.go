package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docproc/constants"
)

func TestOpenAIExtractorRoundTrip(t *testing.T) {
	payload := marshal(t, validInvoicePayload())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": string(payload)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := NewOpenAIExtractor(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, srv.Client(), nil)

	ext, err := e.ExtractFields(context.Background(), Request{
		Text: "TAX INVOICE INV-001", Kind: constants.KindInvoice,
	})
	require.NoError(t, err)
	require.NotNil(t, ext.Invoice)
	assert.Equal(t, "INV-001", *ext.Invoice.DocumentNumber)
}

func TestOpenAIExtractorProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIExtractor(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client(), nil)

	_, err := e.ExtractFields(context.Background(), Request{Text: "x", Kind: constants.KindInvoice})
	require.Error(t, err)
}
