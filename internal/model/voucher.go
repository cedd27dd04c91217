package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ContainerFormat is the declared file container of an uploaded document.
type ContainerFormat string

const (
	FormatPDF  ContainerFormat = "pdf"
	FormatXLSX ContainerFormat = "xlsx"
	FormatXLS  ContainerFormat = "xls"
)

// ParseContainerFormat validates a declared container format string.
func ParseContainerFormat(s string) (ContainerFormat, error) {
	switch ContainerFormat(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatXLS:
		return FormatXLS, nil
	default:
		return "", eris.Errorf("model: unsupported container format %q", s)
	}
}

// SourceDocument is the immutable input to one extraction run: a stored file
// plus the voucher/company identity declared at upload time.
type SourceDocument struct {
	VoucherID string          `json:"voucher_id"`
	CompanyID string          `json:"company_id"`
	Path      string          `json:"path"`
	Format    ContainerFormat `json:"format"`
}

// VoucherStatus represents the processing state of an uploaded voucher.
type VoucherStatus string

const (
	VoucherPending    VoucherStatus = "pending"
	VoucherExtracting VoucherStatus = "extracting"
	VoucherValidating VoucherStatus = "validating"
	VoucherPersisting VoucherStatus = "persisting"
	VoucherCompleted  VoucherStatus = "completed"
	VoucherFailed     VoucherStatus = "failed"
)

// voucherTransitions lists the allowed status progressions. Failed is
// reachable from every non-terminal state; a failed voucher may be retried
// from pending via re-processing.
var voucherTransitions = map[VoucherStatus][]VoucherStatus{
	VoucherPending:    {VoucherExtracting, VoucherFailed},
	VoucherExtracting: {VoucherValidating, VoucherFailed},
	VoucherValidating: {VoucherPersisting, VoucherFailed},
	VoucherPersisting: {VoucherCompleted, VoucherFailed},
	VoucherCompleted:  {VoucherPending},
	VoucherFailed:     {VoucherPending},
}

// CanTransition reports whether a voucher may move from one status to another.
func CanTransition(from, to VoucherStatus) bool {
	for _, next := range voucherTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Voucher is the persisted processing record for one uploaded document.
type Voucher struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	FilePath       string          `json:"file_path"`
	Format         ContainerFormat `json:"format"`
	Status         VoucherStatus   `json:"status"`
	Error          string          `json:"error,omitempty"`
	FailedStage    string          `json:"failed_stage,omitempty"`
	TripsProcessed int             `json:"trips_processed"`
	QualityScore   float64         `json:"quality_score"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ExtractedLine is one unit of raw content from the TextLayer: a text line
// for PDFs, or a row of cells for spreadsheets. Number is the 1-based
// ordinal position in the source, kept for traceability.
type ExtractedLine struct {
	Number int      `json:"number"`
	Text   string   `json:"text"`
	Cells  []string `json:"cells,omitempty"`
}

// IsRow reports whether the line came from a cell-based source.
func (l ExtractedLine) IsRow() bool {
	return l.Cells != nil
}
