package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"docproc/constants"
)

// BuildJSONSchema returns the JSON-Schema (draft 2020-12 subset) for a document
// kind as a generic map. We pass this to the model as a structured output
// constraint and also use it locally to validate what comes back.
func BuildJSONSchema(kind constants.DocumentKind) map[string]any {
	if kind.IsKYC() {
		return kycSchema()
	}
	return invoiceSchema()
}

// CompileSchema compiles the per-kind schema for local boundary validation.
func CompileSchema(kind constants.DocumentKind) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(BuildJSONSchema(kind))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("docproc://schema/%s/%s.json", SchemaVersion, kind)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func invoiceSchema() map[string]any {
	party := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"legal_name": nullableString(),
			"gstin":      nullableString(),
			"pan":        nullableString(),
			"address":    nullableString(),
			"state_code": nullableString(),
		},
	}
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": nullableString(),
			"hsn_code":    nullableString(),
			"quantity":    nullableNumber(),
			"rate":        nullableNumber(),
			"amount":      nullableNumber(),
			"tax_rate":    nullableNumber(),
			"cgst":        nullableNumber(),
			"sgst":        nullableNumber(),
			"igst":        nullableNumber(),
		},
	}
	taxSummary := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"subtotal":    nullableNumber(),
			"cgst":        nullableNumber(),
			"sgst":        nullableNumber(),
			"igst":        nullableNumber(),
			"round_off":   nullableNumber(),
			"grand_total": nullableNumber(),
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"fields": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"document_number": nullableString(),
					"document_date":   nullableDate(),
					"due_date":        nullableDate(),
					"place_of_supply": nullableString(),
					"issuer":          party,
					"recipient":       party,
					"line_items":      map[string]any{"type": "array", "items": lineItem},
					"tax_summary":     taxSummary,
				},
				"required": []string{"issuer", "recipient", "line_items", "tax_summary"},
			},
			"confidence_scores": confidenceScores(),
		},
		"required": []string{"fields", "confidence_scores"},
	}
}

func kycSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"fields": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"document_number": nullableString(),
					"holder_name":     nullableString(),
					"father_name":     nullableString(),
					"date_of_birth":   nullableDate(),
					"address":         nullableString(),
					"issue_date":      nullableDate(),
				},
				"required": []string{"document_number", "holder_name"},
			},
			"confidence_scores": confidenceScores(),
		},
		"required": []string{"fields", "confidence_scores"},
	}
}

func confidenceScores() map[string]any {
	return map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type": "number", "minimum": 0.0, "maximum": 1.0,
		},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nullableNumber() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func nullableDate() map[string]any {
	return map[string]any{
		"type":    []string{"string", "null"},
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}
