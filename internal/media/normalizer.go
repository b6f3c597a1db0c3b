package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"docproc/constants"
	"docproc/internal/common"
)

// Page is one normalized raster, ready for a recognition engine.
type Page struct {
	Index int
	Image *image.Gray
}

// EncodePNG serializes the page for engines that consume encoded buffers.
func (p Page) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", p.Index, err)
	}
	return buf.Bytes(), nil
}

// Config holds normalization knobs.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for PDFs, default 300 (>=3x of 96dpi base)
	MaxPages int    // cap on rendered PDF pages, default 5

	// Target band for the long edge of preprocessed images, in pixels.
	MinLongEdge int // default 1200
	MaxLongEdge int // default 3500
	MaxUpscale  float64 // default 3.5
}

// Normalizer converts raw attachment bytes into recognition-ready rasters.
type Normalizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewNormalizer(cfg Config, runner Runner, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.MinLongEdge <= 0 {
		cfg.MinLongEdge = 1200
	}
	if cfg.MaxLongEdge <= 0 {
		cfg.MaxLongEdge = 3500
	}
	if cfg.MaxUpscale <= 0 {
		cfg.MaxUpscale = 3.5
	}
	return &Normalizer{cfg: cfg, runner: runner, logger: logger}
}

// Normalize picks a strategy based on the declared mime type. Malformed input
// is fatal for the document: no engine can proceed without valid pixels.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, mimeType string) ([]Page, error) {
	switch constants.MapMIMEToFormat(mimeType) {
	case constants.PDF:
		return n.normalizePDF(ctx, data)
	case constants.IMAGE:
		page, err := n.normalizeImage(data)
		if err != nil {
			return nil, err
		}
		return []Page{page}, nil
	default:
		return nil, common.WrapError(common.ErrNormalization, "normalize",
			fmt.Errorf("unsupported mime type: %q", mimeType))
	}
}

func (n *Normalizer) normalizeImage(data []byte) (Page, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Page{}, common.WrapError(common.ErrNormalization, "decode image", err)
	}
	n.logger.Debug("media.image.decoded", "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	gray := n.preprocess(img)
	return Page{Index: 0, Image: gray}, nil
}

// preprocess applies the fixed enhancement chain: percentile contrast stretch,
// grayscale, median denoise, and resize into the engine accuracy band.
func (n *Normalizer) preprocess(img image.Image) *image.Gray {
	gray := toGray(img)
	gray = stretchContrast(gray, 0.01)
	gray = medianFilter3x3(gray)
	return n.resizeToBand(gray)
}
