package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedVoucher(t *testing.T, st *SQLiteStore) *model.Voucher {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.UpsertCompany(ctx, model.Company{
		ID:        "c1",
		Name:      "Translog Transportes",
		Deduction: model.DeductionRule{Type: model.DeductionPercentage, Value: 5},
	}))

	v, err := st.CreateVoucher(ctx, model.SourceDocument{
		CompanyID: "c1",
		Path:      "/data/may.pdf",
		Format:    model.FormatPDF,
	})
	require.NoError(t, err)
	return v
}

// --- Companies ---

func TestSQLite_Company_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.UpsertCompany(ctx, model.Company{
		ID:        "c1",
		Name:      "Translog Transportes",
		Deduction: model.DeductionRule{Type: model.DeductionPercentage, Value: 5},
	})
	require.NoError(t, err)

	c, err := st.GetCompany(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Translog Transportes", c.Name)
	assert.Equal(t, model.DeductionPercentage, c.Deduction.Type)
	assert.Equal(t, 5.0, c.Deduction.Value)
}

func TestSQLite_Company_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertCompany(ctx, model.Company{
		ID: "c1", Name: "Old Name",
		Deduction: model.DeductionRule{Type: model.DeductionFlat, Value: 100},
	}))
	require.NoError(t, st.UpsertCompany(ctx, model.Company{
		ID: "c1", Name: "New Name",
		Deduction: model.DeductionRule{Type: model.DeductionPercentage, Value: 3},
	}))

	c, err := st.GetCompany(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "New Name", c.Name)
	assert.Equal(t, model.DeductionPercentage, c.Deduction.Type)
}

func TestSQLite_Company_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCompany(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
}

// --- Vouchers ---

func TestSQLite_Voucher_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	v := seedVoucher(t, st)

	got, err := st.GetVoucher(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.CompanyID)
	assert.Equal(t, model.FormatPDF, got.Format)
	assert.Equal(t, model.VoucherPending, got.Status)
	assert.Empty(t, got.Error)
}

func TestSQLite_Voucher_StatusLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	v := seedVoucher(t, st)
	ctx := context.Background()

	for _, status := range []model.VoucherStatus{
		model.VoucherExtracting, model.VoucherValidating, model.VoucherPersisting,
	} {
		require.NoError(t, st.SetVoucherStatus(ctx, v.ID, status))
	}

	require.NoError(t, st.CompleteVoucher(ctx, v.ID, 2, 0.6133))

	got, err := st.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherCompleted, got.Status)
	assert.Equal(t, 2, got.TripsProcessed)
	assert.InDelta(t, 0.6133, got.QualityScore, 0.0001)
}

func TestSQLite_Voucher_FailRecordsStageAndReason(t *testing.T) {
	st := newTestSQLiteStore(t)
	v := seedVoucher(t, st)
	ctx := context.Background()

	require.NoError(t, st.FailVoucher(ctx, v.ID, "extracting", "document is empty"))

	got, err := st.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherFailed, got.Status)
	assert.Equal(t, "extracting", got.FailedStage)
	assert.Equal(t, "document is empty", got.Error)

	// Completing afterwards clears the failure fields.
	require.NoError(t, st.CompleteVoucher(ctx, v.ID, 1, 0.9))
	got, err = st.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Error)
	assert.Empty(t, got.FailedStage)
}

func TestSQLite_Voucher_List(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedVoucher(t, st)
	ctx := context.Background()

	v2, err := st.CreateVoucher(ctx, model.SourceDocument{
		CompanyID: "c1", Path: "/data/june.xlsx", Format: model.FormatXLSX,
	})
	require.NoError(t, err)
	require.NoError(t, st.FailVoucher(ctx, v2.ID, "extracting", "boom"))

	all, err := st.ListVouchers(ctx, VoucherFilter{CompanyID: "c1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := st.ListVouchers(ctx, VoucherFilter{Status: model.VoucherFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, v2.ID, failed[0].ID)
}

func TestSQLite_Voucher_SetStatusMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SetVoucherStatus(context.Background(), "ghost", model.VoucherExtracting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voucher not found")
}

// --- Trips ---

func TestSQLite_ReplaceTrips_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	v := seedVoucher(t, st)
	ctx := context.Background()

	trips := sampleTrips(v.ID, "c1")
	require.NoError(t, st.ReplaceTrips(ctx, v.ID, "c1", trips))

	got, err := st.TripsForVoucher(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Line)
	assert.InDelta(t, 190.0, got[0].TotalAmount, 0.0001)
	assert.InDelta(t, -38.0, got[1].TotalAmount, 0.0001)
	assert.Equal(t, "pdf", got[0].DataSourceType)
	assert.True(t, got[0].TripDate.Equal(time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)))
}

func TestSQLite_ReplaceTrips_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	v := seedVoucher(t, st)
	ctx := context.Background()

	trips := sampleTrips(v.ID, "c1")
	require.NoError(t, st.ReplaceTrips(ctx, v.ID, "c1", trips))
	require.NoError(t, st.ReplaceTrips(ctx, v.ID, "c1", trips))

	got, err := st.TripsForVoucher(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2, "re-running a voucher must not duplicate trips")
}

func TestSQLite_ReplaceTrips_EmptyClearsExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	v := seedVoucher(t, st)
	ctx := context.Background()

	require.NoError(t, st.ReplaceTrips(ctx, v.ID, "c1", sampleTrips(v.ID, "c1")))
	require.NoError(t, st.ReplaceTrips(ctx, v.ID, "c1", nil))

	got, err := st.TripsForVoucher(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
