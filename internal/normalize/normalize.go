// Package normalize validates candidate records, applies company deduction
// rules, and produces persisted-ready trip records.
package normalize

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

// Options tunes validation behavior.
type Options struct {
	// SubtotalTolerance is the maximum allowed absolute difference between
	// the stated subtotal and weight*rate before a record takes the
	// consistency penalty.
	SubtotalTolerance float64

	// ConsistencyPenalty multiplies a record's confidence when the subtotal
	// disagrees with weight*rate. The stated subtotal stands: mismatches are
	// penalized, never silently corrected.
	ConsistencyPenalty float64
}

// Normalizer validates and completes candidate records for one company.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer. Zero option values fall back to the defaults
// (tolerance 0.01, penalty 0.5).
func New(opts Options) *Normalizer {
	if opts.SubtotalTolerance <= 0 {
		opts.SubtotalTolerance = 0.01
	}
	if opts.ConsistencyPenalty <= 0 || opts.ConsistencyPenalty > 1 {
		opts.ConsistencyPenalty = 0.5
	}
	return &Normalizer{opts: opts}
}

// Normalize turns one candidate into a trip record, or a rejection when the
// required fields are missing. The required set is trip date, weight, unit
// rate, and subtotal, with a non-zero weight. A rejection is a normal,
// visible outcome — it is counted, never dropped.
func (n *Normalizer) Normalize(cand model.CandidateRecord, company model.Company, voucherID string, sourceType string) (model.TripRecord, *model.RejectedRecord) {
	if reason := n.requiredFields(cand); reason != "" {
		zap.L().Debug("normalize: rejected",
			zap.String("voucher_id", voucherID),
			zap.Int("line", cand.Line),
			zap.String("reason", reason),
		)
		return model.TripRecord{}, &model.RejectedRecord{
			Line:   cand.Line,
			Reason: reason,
			Raw:    model.CapRaw(capturesSummary(cand)),
		}
	}

	confidence := cand.Confidence
	if !n.consistent(cand) {
		confidence *= n.opts.ConsistencyPenalty
	}

	deduction := n.deduction(cand, company.Deduction)

	// total = subtotal - sign*deduction keeps deductions sign-consistent:
	// a correction row's total offsets exactly what the original row
	// over-billed, deduction included.
	total := round2(cand.Subtotal - float64(cand.Sign)*deduction)

	return model.TripRecord{
		CandidateRecord:      cand,
		VoucherID:            voucherID,
		CompanyID:            company.ID,
		DeductionAmount:      round2(deduction),
		TotalAmount:          total,
		ExtractionConfidence: confidence,
		DataSourceType:       sourceType,
	}, nil
}

func (n *Normalizer) requiredFields(cand model.CandidateRecord) string {
	switch {
	case cand.TripDate.IsZero():
		return "missing or unparseable trip date"
	case cand.WeightTons == 0:
		return "missing or zero weight"
	case cand.Sign == model.SignBillable && cand.WeightTons < 0:
		return "negative weight on billable row"
	case cand.UnitRate <= 0:
		return "missing or non-positive unit rate"
	case cand.Subtotal == 0:
		return "missing subtotal"
	}
	return ""
}

// consistent checks the subtotal against weight*rate within tolerance.
func (n *Normalizer) consistent(cand model.CandidateRecord) bool {
	expected := cand.WeightTons * cand.UnitRate
	return math.Abs(cand.Subtotal-expected) <= n.opts.SubtotalTolerance
}

// deduction computes the unsigned deduction for one row. A flat deduction is
// capped at the row's absolute subtotal so it can reduce a line to zero but
// never flip its sign.
func (n *Normalizer) deduction(cand model.CandidateRecord, rule model.DeductionRule) float64 {
	switch rule.Type {
	case model.DeductionPercentage:
		return round2(math.Abs(cand.Subtotal) * rule.Value / 100)
	case model.DeductionFlat:
		return math.Min(rule.Value, math.Abs(cand.Subtotal))
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func capturesSummary(cand model.CandidateRecord) string {
	raw, ok := cand.Captures["_raw"]
	if ok {
		return raw
	}
	s := ""
	for k, v := range cand.Captures {
		if s != "" {
			s += " "
		}
		s += k + "=" + v
	}
	return s
}
