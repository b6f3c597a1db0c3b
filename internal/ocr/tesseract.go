package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"docproc/internal/media"
)

// Page-segmentation strategies tried in order; the highest-confidence result
// per page wins. 3 = fully automatic, 6 = single uniform block, 4 = single
// column of variable-size text.
var psmStrategies = []int{3, 6, 4}

// TesseractConfig holds on-device engine knobs.
type TesseractConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	OEM         int // 1 = LSTM; leave 0 to use default
}

// TesseractEngine runs the on-device recognizer across PSM strategies.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner media.Runner
	logger *slog.Logger
}

func NewTesseractEngine(cfg TesseractConfig, runner media.Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &TesseractEngine{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize tries each segmentation strategy and keeps the best-scoring one.
func (e *TesseractEngine) Recognize(ctx context.Context, page media.Page) (EngineResult, error) {
	tmpDir, err := os.MkdirTemp("", "docproc-ocr-*")
	if err != nil {
		return EngineResult{}, fmt.Errorf("mkdtemp: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	path := filepath.Join(tmpDir, "page.png")
	data, err := page.EncodePNG()
	if err != nil {
		return EngineResult{}, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return EngineResult{}, fmt.Errorf("write page: %w", err)
	}

	var best EngineResult
	var lastErr error
	for _, psm := range psmStrategies {
		if ctx.Err() != nil {
			return best, ctx.Err()
		}
		res, err := e.recognizeWithPSM(ctx, path, psm)
		if err != nil {
			lastErr = err
			e.logger.Debug("ocr.tesseract.psm_failed", "psm", psm, "error", err)
			continue
		}
		if res.Confidence > best.Confidence {
			best = res
		}
	}
	if best.Text == "" && lastErr != nil {
		return EngineResult{}, fmt.Errorf("tesseract: %w", lastErr)
	}
	return best, nil
}

// recognizeWithPSM runs tesseract in TSV mode so text and word confidences
// come from a single invocation.
func (e *TesseractEngine) recognizeWithPSM(ctx context.Context, path string, psm int) (EngineResult, error) {
	args := []string{path, "stdout", "-l", e.cfg.Lang, "--psm", strconv.Itoa(psm)}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return EngineResult{}, fmt.Errorf("tesseract psm=%d: %s: %w", psm, strings.TrimSpace(string(errb)), err)
	}
	text, conf := parseTSV(string(out))
	return EngineResult{Text: text, Confidence: conf}, nil
}

// parseTSV reassembles line text from tesseract TSV output and returns the
// mean word confidence scaled to 0..1. The conf column is second to last;
// word text is the last column.
func parseTSV(tsv string) (string, float64) {
	var b strings.Builder
	var sum, n float64
	var lastLine string

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue // defensive
		}
		confStr := cols[10]
		word := cols[11]
		if confStr == "" || confStr == "-1" {
			continue // structural rows (page/block/line) carry no word
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
		// new line marker: page_num,block_num,par_num,line_num prefix change
		lineKey := strings.Join(cols[1:5], ":")
		if lineKey != lastLine && b.Len() > 0 {
			b.WriteString("\n")
		} else if b.Len() > 0 {
			b.WriteString(" ")
		}
		lastLine = lineKey
		b.WriteString(word)
	}
	if n == 0 {
		return b.String(), 0
	}
	return b.String(), sum / n / 100.0
}
