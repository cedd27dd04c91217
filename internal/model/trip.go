package model

import "time"

// Sign conventions for extracted rows.
const (
	SignBillable   = 1  // normal billable trip line
	SignCorrection = -1 // correction row offsetting a previous billing
)

// CandidateRecord is the result of matching one extracted line against a
// company grammar, before validation and deduction. Amounts carry the sign
// of the source row: a correction row has negative WeightTons and Subtotal.
type CandidateRecord struct {
	Line         int               `json:"line"`
	TripDate     time.Time         `json:"trip_date"`
	Origin       string            `json:"origin,omitempty"`
	Destination  string            `json:"destination,omitempty"`
	WeightTons   float64           `json:"weight_tons"`
	UnitRate     float64           `json:"unit_rate"`
	Subtotal     float64           `json:"subtotal"`
	VehiclePlate string            `json:"vehicle_plate,omitempty"`
	DriverName   string            `json:"driver_name,omitempty"`
	TicketNumber string            `json:"ticket_number,omitempty"`
	ProductType  string            `json:"product_type,omitempty"`
	Sign         int               `json:"sign"`
	Captures     map[string]string `json:"captures,omitempty"`
	Confidence   float64           `json:"confidence"`
}

// TripRecord is a validated, normalized trip ready for persistence.
// Created only by the normalizer; a trip either satisfies every required
// field constraint or is rejected, never partially written.
type TripRecord struct {
	CandidateRecord
	VoucherID            string  `json:"voucher_id"`
	CompanyID            string  `json:"company_id"`
	DeductionAmount      float64 `json:"deduction_amount"`
	TotalAmount          float64 `json:"total_amount"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
	DataSourceType       string  `json:"data_source_type"`
}

// RejectedRecord captures a candidate that failed validation. Rejections are
// counted and surfaced in the ExtractionResult, never silently dropped.
type RejectedRecord struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Raw    string `json:"raw,omitempty"`
}

// Diagnostic records the per-line outcome of grammar matching.
type Diagnostic struct {
	Line      int    `json:"line"`
	Matched   bool   `json:"matched"`
	GrammarID string `json:"grammar_id,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

// ExtractionResult is the ephemeral aggregate of one process() run. It is
// produced fresh on every run; only its TripRecords are persisted.
type ExtractionResult struct {
	VoucherID       string           `json:"voucher_id"`
	GrammarID       string           `json:"grammar_id"`
	Trips           []TripRecord     `json:"trips"`
	Rejected        []RejectedRecord `json:"rejected,omitempty"`
	TripsProcessed  int              `json:"trips_processed"`
	TripsRejected   int              `json:"trips_rejected"`
	QualityScore    float64          `json:"quality_score"`
	TotalWeightTons float64          `json:"total_weight_tons"`
	TotalAmount     float64          `json:"total_amount"`
	Diagnostics     []Diagnostic     `json:"diagnostics,omitempty"`
}

// maxRawLen caps raw line content carried in diagnostics and rejections.
const maxRawLen = 160

// CapRaw truncates raw line content for diagnostics.
func CapRaw(s string) string {
	if len(s) <= maxRawLen {
		return s
	}
	return s[:maxRawLen]
}
