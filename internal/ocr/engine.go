package ocr

import (
	"context"

	"docproc/internal/media"
)

// EngineResult is the normalized output of a single recognition call.
type EngineResult struct {
	Text       string
	Confidence float64 // 0..1
}

// Engine is one recognition backend. Implementations must be safe for
// concurrent use; provider-specific error shapes are normalized to a single
// internal error kind before crossing this boundary.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, page media.Page) (EngineResult, error)
}
