// Package engine drives text extraction, format detection, and line-by-line
// grammar matching for one document.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/detect"
	"github.com/sells-group/freight-cli/internal/grammar"
	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/textlayer"
)

// Engine applies the selected company grammar to every extracted line.
type Engine struct {
	textlayer *textlayer.Extractor
	detector  *detect.Detector
	registry  *grammar.Registry
}

// New creates an Engine.
func New(tl *textlayer.Extractor, d *detect.Detector, r *grammar.Registry) *Engine {
	return &Engine{textlayer: tl, detector: d, registry: r}
}

// Result is the raw output of one engine run, before validation.
type Result struct {
	GrammarID   string
	Candidates  []model.CandidateRecord
	Diagnostics []model.Diagnostic
}

// Run extracts the document and matches every line in source order.
// Candidate order follows line order, so source_row_number remains an
// auditable trail through validation into persistence. Individual bad lines
// never fail the run; only an unreadable container or a document that
// yields no lines is fatal.
func (e *Engine) Run(ctx context.Context, doc model.SourceDocument) (*Result, error) {
	lines, err := e.textlayer.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, eris.Wrapf(model.ErrEmptyDocument, "engine: %s", doc.Path)
	}

	grammarID, known := e.detector.Detect(lines)
	var g *grammar.Grammar
	if known {
		g, _ = e.registry.Get(grammarID)
	} else {
		g = grammar.Fallback()
	}

	res := &Result{GrammarID: grammarID}
	for _, line := range lines {
		captures, ok := g.Match(line)
		if !ok {
			if g.IsFurniture(line) {
				continue
			}
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Line:      line.Number,
				Matched:   false,
				GrammarID: grammarID,
				Raw:       model.CapRaw(rawContent(line)),
			})
			continue
		}
		cand := g.ToCandidate(line.Number, captures)
		res.Candidates = append(res.Candidates, cand)
		res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
			Line:      line.Number,
			Matched:   true,
			GrammarID: grammarID,
		})
	}

	zap.L().Info("engine: extraction complete",
		zap.String("voucher_id", doc.VoucherID),
		zap.String("grammar_id", grammarID),
		zap.Int("lines", len(lines)),
		zap.Int("candidates", len(res.Candidates)),
	)
	return res, nil
}

// Unmatched returns the number of unmatched data lines in the diagnostics.
// Furniture lines are filtered out before diagnostics are recorded, so every
// unmatched diagnostic is a data-like line the grammar failed to recognize.
func (r *Result) Unmatched() int {
	n := 0
	for _, d := range r.Diagnostics {
		if !d.Matched {
			n++
		}
	}
	return n
}

func rawContent(line model.ExtractedLine) string {
	if line.IsRow() {
		joined := ""
		for i, c := range line.Cells {
			if i > 0 {
				joined += " | "
			}
			joined += c
		}
		return joined
	}
	return line.Text
}
