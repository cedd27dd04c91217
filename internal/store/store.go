package store

import (
	"context"

	"github.com/sells-group/freight-cli/internal/model"
)

// VoucherFilter specifies criteria for listing vouchers.
type VoucherFilter struct {
	Status    model.VoucherStatus `json:"status,omitempty"`
	CompanyID string              `json:"company_id,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Offset    int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the extraction pipeline.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	UpsertCompany(ctx context.Context, company model.Company) error

	// Vouchers
	CreateVoucher(ctx context.Context, doc model.SourceDocument) (*model.Voucher, error)
	GetVoucher(ctx context.Context, voucherID string) (*model.Voucher, error)
	ListVouchers(ctx context.Context, filter VoucherFilter) ([]model.Voucher, error)
	SetVoucherStatus(ctx context.Context, voucherID string, status model.VoucherStatus) error
	CompleteVoucher(ctx context.Context, voucherID string, tripsProcessed int, qualityScore float64) error
	FailVoucher(ctx context.Context, voucherID string, stage, reason string) error

	// Trips
	// ReplaceTrips atomically clears any previously persisted trips for the
	// voucher and inserts the new batch, so re-processing never duplicates.
	ReplaceTrips(ctx context.Context, voucherID, companyID string, trips []model.TripRecord) error
	TripsForVoucher(ctx context.Context, voucherID string) ([]model.TripRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
