package media

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"docproc/internal/common"
)

// normalizePDF renders up to MaxPages pages at the configured DPI via pdftoppm,
// then runs each page through the image preprocessing chain.
func (n *Normalizer) normalizePDF(ctx context.Context, data []byte) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "docproc-pdf-*")
	if err != nil {
		return nil, common.WrapError(common.ErrNormalization, "mkdtemp", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			n.logger.Warn("media.pdf.tmp_cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	in := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, common.WrapError(common.ErrNormalization, "write pdf", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -l <maxpages> -png <in.pdf> <tmp/page>
	_, errb, err := n.runner.Run(ctx, n.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", n.cfg.DPI),
		"-l", fmt.Sprintf("%d", n.cfg.MaxPages),
		"-png", in, prefix)
	if err != nil {
		return nil, common.WrapError(common.ErrNormalization,
			fmt.Sprintf("pdftoppm: %s", truncate(string(errb), 512)), err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > n.cfg.MaxPages {
		matches = matches[:n.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, common.WrapError(common.ErrNormalization, "pdftoppm",
			fmt.Errorf("no pages rendered"))
	}

	pages := make([]Page, 0, len(matches))
	for i, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			return nil, common.WrapError(common.ErrNormalization, "open page", err)
		}
		img, _, err := image.Decode(f)
		_ = f.Close()
		if err != nil {
			return nil, common.WrapError(common.ErrNormalization, "decode page", err)
		}
		pages = append(pages, Page{Index: i, Image: n.preprocess(img)})
	}

	n.logger.Debug("media.pdf.rendered", "pages", len(pages), "dpi", n.cfg.DPI)
	return pages, nil
}
