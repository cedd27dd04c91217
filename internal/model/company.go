package model

import "github.com/rotisserie/eris"

// DeductionType distinguishes the two supported deduction schemes.
type DeductionType string

const (
	DeductionPercentage DeductionType = "percentage"
	DeductionFlat       DeductionType = "flat"
)

// DeductionRule is a company's active deduction: either a percentage of the
// line subtotal or a flat amount per trip.
type DeductionRule struct {
	Type  DeductionType `json:"type"`
	Value float64       `json:"value"`
}

// Validate checks the rule's value range for its type.
func (r DeductionRule) Validate() error {
	switch r.Type {
	case DeductionPercentage:
		if r.Value < 0 || r.Value > 100 {
			return eris.Errorf("model: percentage deduction %.2f out of range [0,100]", r.Value)
		}
	case DeductionFlat:
		if r.Value < 0 {
			return eris.Errorf("model: flat deduction %.2f must be >= 0", r.Value)
		}
	default:
		return eris.Errorf("model: unknown deduction type %q", r.Type)
	}
	return nil
}

// Company is a transport company whose billing documents the pipeline
// understands. Owned by the admin subsystem; the pipeline only reads it.
type Company struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Deduction DeductionRule `json:"deduction"`
}
