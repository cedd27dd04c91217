// Package grammar defines the per-company line grammars that map one
// physical document line (or spreadsheet row) to a candidate trip record.
// A grammar never fails on a non-matching line: NoMatch is a normal outcome
// and a document may freely mix matching and non-matching lines.
package grammar

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-cli/internal/model"
)

// Capture field keys shared by all grammars.
const (
	FieldDate        = "date"
	FieldTicket      = "ticket"
	FieldOrigin      = "origin"
	FieldDestination = "destination"
	FieldProduct     = "product"
	FieldWeight      = "weight"
	FieldRate        = "rate"
	FieldSubtotal    = "subtotal"
	FieldPlate       = "plate"
	FieldDriver      = "driver"
)

// requiredFields must parse for a candidate to survive validation downstream.
var requiredFields = []string{FieldDate, FieldWeight, FieldRate, FieldSubtotal}

// optionalFields contribute to capture confidence when present.
var optionalFields = []string{
	FieldTicket, FieldOrigin, FieldDestination,
	FieldProduct, FieldPlate, FieldDriver,
}

// Spec is the YAML-loadable definition of one company grammar.
type Spec struct {
	ID                string         `yaml:"id"`
	Kind              string         `yaml:"kind"` // "text" or "row"
	Signature         []string       `yaml:"signature"`
	Fixtures          []string       `yaml:"fixtures"`
	Pattern           string         `yaml:"pattern,omitempty"`
	Columns           map[string]int `yaml:"columns,omitempty"`
	HeaderRows        int            `yaml:"header_rows,omitempty"`
	DateLayout        string         `yaml:"date_layout"`
	Decimal           string         `yaml:"decimal"`
	Thousands         string         `yaml:"thousands"`
	ParenNegative     bool           `yaml:"paren_negative,omitempty"`
	CorrectionMarkers []string       `yaml:"correction_markers,omitempty"`
	SkipPrefixes      []string       `yaml:"skip_prefixes,omitempty"`
	BaseConfidence    float64        `yaml:"base_confidence"`
}

// Grammar is a compiled Spec: a pure match function plus the field mapping
// that turns named captures into a CandidateRecord.
type Grammar struct {
	Spec
	re *regexp.Regexp
}

// Compile validates a Spec and compiles its pattern.
func Compile(spec Spec) (*Grammar, error) {
	if spec.ID == "" {
		return nil, eris.New("grammar: spec missing id")
	}
	if spec.Kind != "text" && spec.Kind != "row" {
		return nil, eris.Errorf("grammar %s: kind must be text or row, got %q", spec.ID, spec.Kind)
	}
	if spec.DateLayout == "" {
		return nil, eris.Errorf("grammar %s: date_layout is required", spec.ID)
	}
	if spec.BaseConfidence <= 0 || spec.BaseConfidence > 1 {
		return nil, eris.Errorf("grammar %s: base_confidence %.2f out of (0,1]", spec.ID, spec.BaseConfidence)
	}

	g := &Grammar{Spec: spec}
	switch spec.Kind {
	case "text":
		if spec.Pattern == "" {
			return nil, eris.Errorf("grammar %s: text grammar requires pattern", spec.ID)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "grammar %s: compile pattern", spec.ID)
		}
		for _, f := range requiredFields {
			if re.SubexpIndex(f) < 0 {
				return nil, eris.Errorf("grammar %s: pattern missing required capture %q", spec.ID, f)
			}
		}
		g.re = re
	case "row":
		if len(spec.Columns) == 0 {
			return nil, eris.Errorf("grammar %s: row grammar requires columns", spec.ID)
		}
		for _, f := range requiredFields {
			if _, ok := spec.Columns[f]; !ok {
				return nil, eris.Errorf("grammar %s: columns missing required field %q", spec.ID, f)
			}
		}
	}
	return g, nil
}

// MatchesSignature reports whether every signature substring appears in the
// given header window. Used by the format detector.
func (g *Grammar) MatchesSignature(header string) bool {
	if len(g.Signature) == 0 {
		return false
	}
	upper := strings.ToUpper(header)
	for _, sig := range g.Signature {
		if !strings.Contains(upper, strings.ToUpper(sig)) {
			return false
		}
	}
	return true
}

// IsFurniture reports whether a line is recognizable layout furniture
// (headers, footers, page markers) rather than a data line. Furniture does
// not count against extraction coverage.
func (g *Grammar) IsFurniture(line model.ExtractedLine) bool {
	text := line.Text
	if line.IsRow() {
		text = strings.Join(line.Cells, " ")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	upper := strings.ToUpper(text)
	for _, p := range g.SkipPrefixes {
		if strings.HasPrefix(upper, strings.ToUpper(p)) {
			return true
		}
	}
	if line.IsRow() && line.Number <= g.HeaderRows {
		return true
	}
	return false
}

// Match applies the grammar to one extracted line. The second return is
// false for a non-matching line; that is a normal outcome, never an error.
// The returned captures include the detected sign under a "sign" pseudo-key
// of "-1" for correction rows.
func (g *Grammar) Match(line model.ExtractedLine) (map[string]string, bool) {
	switch g.Kind {
	case "text":
		if line.IsRow() {
			return nil, false
		}
		return g.matchText(line.Text)
	case "row":
		if !line.IsRow() || line.Number <= g.HeaderRows {
			return nil, false
		}
		return g.matchRow(line.Cells)
	}
	return nil, false
}

func (g *Grammar) matchText(text string) (map[string]string, bool) {
	if g.re == nil {
		// Fallback grammar: extracts nothing.
		return nil, false
	}
	text = strings.TrimSpace(text)
	sign := 1
	for _, marker := range g.CorrectionMarkers {
		if strings.HasPrefix(strings.ToUpper(text), strings.ToUpper(marker)) {
			sign = -1
			text = strings.TrimSpace(text[len(marker):])
			break
		}
	}

	m := g.re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	captures := make(map[string]string)
	for i, name := range g.re.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		if v := strings.TrimSpace(m[i]); v != "" {
			captures[name] = v
		}
	}
	if sign < 0 {
		captures["sign"] = "-1"
	}
	return captures, true
}

func (g *Grammar) matchRow(cells []string) (map[string]string, bool) {
	captures := make(map[string]string)
	sign := 1
	for _, cell := range cells {
		for _, marker := range g.CorrectionMarkers {
			if strings.EqualFold(strings.TrimSpace(cell), marker) {
				sign = -1
			}
		}
	}
	for field, idx := range g.Columns {
		if idx < 0 || idx >= len(cells) {
			continue
		}
		if v := strings.TrimSpace(cells[idx]); v != "" {
			captures[field] = v
		}
	}
	// A row with no required capture at all is not a data row.
	found := 0
	for _, f := range requiredFields {
		if _, ok := captures[f]; ok {
			found++
		}
	}
	if found == 0 {
		return nil, false
	}
	if sign < 0 {
		captures["sign"] = "-1"
	}
	return captures, true
}

// ToCandidate maps captures into a CandidateRecord, applying the grammar's
// locale numeric parsing, date layout, and sign convention. Parse failures on
// required fields leave the zero value in place for the validator to reject;
// they are never papered over here.
func (g *Grammar) ToCandidate(lineNumber int, captures map[string]string) model.CandidateRecord {
	cand := model.CandidateRecord{
		Line:     lineNumber,
		Sign:     model.SignBillable,
		Captures: captures,
	}
	if captures["sign"] == "-1" {
		cand.Sign = model.SignCorrection
	}

	parseFailures := 0
	if raw, ok := captures[FieldDate]; ok {
		if ts, err := time.Parse(g.DateLayout, raw); err == nil {
			cand.TripDate = ts
		} else {
			parseFailures++
		}
	}

	num := func(field string) float64 {
		raw, ok := captures[field]
		if !ok {
			return 0
		}
		v, err := ParseAmount(raw, g.Decimal, g.Thousands, g.ParenNegative)
		if err != nil {
			parseFailures++
			return 0
		}
		return v
	}

	cand.WeightTons = num(FieldWeight)
	cand.UnitRate = num(FieldRate)
	cand.Subtotal = num(FieldSubtotal)

	// A parenthesized or negative subtotal marks a correction row even
	// without an explicit marker.
	if cand.Subtotal < 0 || cand.WeightTons < 0 {
		cand.Sign = model.SignCorrection
	}
	if cand.Sign == model.SignCorrection {
		// Correction rows carry negative weight and subtotal; the unit rate
		// stays positive.
		if cand.WeightTons > 0 {
			cand.WeightTons = -cand.WeightTons
		}
		if cand.Subtotal > 0 {
			cand.Subtotal = -cand.Subtotal
		}
	}

	cand.Origin = captures[FieldOrigin]
	cand.Destination = captures[FieldDestination]
	cand.ProductType = captures[FieldProduct]
	cand.VehiclePlate = captures[FieldPlate]
	cand.DriverName = captures[FieldDriver]
	cand.TicketNumber = captures[FieldTicket]

	cand.Confidence = g.captureConfidence(captures, parseFailures)
	return cand
}

// captureConfidence scales the grammar's base confidence by capture
// completeness. Each absent optional field costs a small fraction; each
// required-field parse failure costs substantially more.
func (g *Grammar) captureConfidence(captures map[string]string, parseFailures int) float64 {
	conf := g.BaseConfidence
	for _, f := range optionalFields {
		if _, ok := captures[f]; !ok {
			conf -= 0.03
		}
	}
	conf -= 0.25 * float64(parseFailures)
	if conf < 0.05 {
		conf = 0.05
	}
	return conf
}
