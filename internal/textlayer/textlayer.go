// Package textlayer turns a stored document file into ordered raw lines:
// text lines for PDFs, cell rows for spreadsheets. It is a pure read with no
// layout reconstruction beyond source order.
package textlayer

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// Options configures spreadsheet extraction.
type Options struct {
	SheetIndex int // which sheet to read; default 0
}

// Extractor reads raw lines from source documents of the supported
// container formats.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Extract reads the document and returns its lines in source order. The
// declared container format is authoritative: a file that cannot be parsed
// as declared fails with ErrFormatMismatch, never a silent fallback to
// content sniffing. Corrupt or encrypted containers fail with
// ErrUnreadableDocument.
func (e *Extractor) Extract(ctx context.Context, doc model.SourceDocument) ([]model.ExtractedLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "textlayer: context done")
	}

	info, err := os.Stat(doc.Path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrUnreadableDocument, "textlayer: stat %s: %v", doc.Path, err)
	}
	if info.Size() == 0 {
		return nil, eris.Wrapf(model.ErrUnreadableDocument, "textlayer: %s is empty", doc.Path)
	}

	var lines []model.ExtractedLine
	switch doc.Format {
	case model.FormatPDF:
		lines, err = extractPDF(doc.Path)
	case model.FormatXLSX:
		lines, err = extractXLSX(doc.Path, e.opts.SheetIndex)
	case model.FormatXLS:
		lines, err = extractXLS(doc.Path, e.opts.SheetIndex)
	default:
		return nil, eris.Errorf("textlayer: unsupported container format %q", doc.Format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("textlayer: extracted",
		zap.String("voucher_id", doc.VoucherID),
		zap.String("format", string(doc.Format)),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}
