// Package detect picks the company grammar for an extracted document by
// matching grammar signatures against the document's header window.
package detect

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/grammar"
	"github.com/sells-group/freight-cli/internal/model"
)

// headerWindow is how many leading lines are inspected for signatures.
// Statement letterheads and sheet headers sit well within this.
const headerWindow = 15

// Detector selects a grammar for a document. Signatures are mutually
// exclusive by construction (enforced at registration), so the first match
// is the only possible match.
type Detector struct {
	registry *grammar.Registry
}

// New creates a Detector over a populated registry.
func New(r *grammar.Registry) *Detector {
	return &Detector{registry: r}
}

// Detect returns the matching grammar id for the extracted lines. The second
// return is false when no known grammar matches; that is not an error — the
// caller falls back to the no-op grammar and keeps the document for manual
// review.
func (d *Detector) Detect(lines []model.ExtractedLine) (string, bool) {
	header := headerText(lines)
	for _, g := range d.registry.All() {
		if g.MatchesSignature(header) {
			zap.L().Debug("detect: grammar matched", zap.String("grammar_id", g.ID))
			return g.ID, true
		}
	}
	zap.L().Debug("detect: no grammar matched", zap.Int("lines", len(lines)))
	return grammar.FallbackID, false
}

// headerText joins the leading lines into one searchable blob. Cell rows are
// flattened with single spaces so row signatures read like text signatures.
func headerText(lines []model.ExtractedLine) string {
	var sb strings.Builder
	for i, line := range lines {
		if i >= headerWindow {
			break
		}
		if line.IsRow() {
			sb.WriteString(strings.Join(line.Cells, " "))
		} else {
			sb.WriteString(line.Text)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
