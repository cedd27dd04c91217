// Package pipeline orchestrates the extract-validate-persist lifecycle of a
// voucher and owns its status transitions.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/engine"
	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/normalize"
	"github.com/sells-group/freight-cli/internal/quality"
	"github.com/sells-group/freight-cli/internal/store"
)

// Stage names recorded on voucher failure.
const (
	StageExtracting = "extracting"
	StageValidating = "validating"
	StagePersisting = "persisting"
)

// Processor runs the full pipeline for one voucher at a time.
type Processor struct {
	engine     *engine.Engine
	normalizer *normalize.Normalizer
	store      store.Store
}

// New creates a Processor with all dependencies.
func New(eng *engine.Engine, n *normalize.Normalizer, st store.Store) *Processor {
	return &Processor{engine: eng, normalizer: n, store: st}
}

// Process drives one voucher through extraction, validation, and persistence.
// Re-processing a completed or failed voucher is allowed and replaces its
// trips wholesale; a voucher stuck in an intermediate status is not
// reprocessed. The returned result is ephemeral; only trips and the voucher
// summary fields are persisted.
func (p *Processor) Process(ctx context.Context, doc model.SourceDocument) (*model.ExtractionResult, error) {
	log := zap.L().With(
		zap.String("voucher_id", doc.VoucherID),
		zap.String("company_id", doc.CompanyID),
	)

	voucher, err := p.store.GetVoucher(ctx, doc.VoucherID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load voucher")
	}

	// A failed or completed voucher re-enters the state machine at pending.
	status := voucher.Status
	if status != model.VoucherPending {
		if !model.CanTransition(status, model.VoucherPending) {
			return nil, eris.Errorf("pipeline: voucher %s is %s, cannot reprocess", doc.VoucherID, status)
		}
		if err := p.store.SetVoucherStatus(ctx, doc.VoucherID, model.VoucherPending); err != nil {
			return nil, eris.Wrap(err, "pipeline: reset voucher")
		}
		status = model.VoucherPending
	}

	company, err := p.store.GetCompany(ctx, doc.CompanyID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load company")
	}

	advance := func(to model.VoucherStatus) error {
		if !model.CanTransition(status, to) {
			return eris.Errorf("pipeline: illegal transition %s -> %s", status, to)
		}
		if err := p.store.SetVoucherStatus(ctx, doc.VoucherID, to); err != nil {
			return eris.Wrapf(err, "pipeline: set status %s", to)
		}
		status = to
		return nil
	}

	// ===== Extracting =====
	if err := advance(model.VoucherExtracting); err != nil {
		return nil, err
	}
	engRes, err := p.engine.Run(ctx, doc)
	if err != nil {
		return nil, p.fail(ctx, doc.VoucherID, StageExtracting, err, log)
	}

	// ===== Validating =====
	if err := advance(model.VoucherValidating); err != nil {
		return nil, p.fail(ctx, doc.VoucherID, StageValidating, err, log)
	}
	result := &model.ExtractionResult{
		VoucherID:   doc.VoucherID,
		GrammarID:   engRes.GrammarID,
		Diagnostics: engRes.Diagnostics,
	}
	for _, cand := range engRes.Candidates {
		trip, rejected := p.normalizer.Normalize(cand, *company, doc.VoucherID, string(doc.Format))
		if rejected != nil {
			result.Rejected = append(result.Rejected, *rejected)
			continue
		}
		result.Trips = append(result.Trips, trip)
		result.TotalWeightTons += trip.WeightTons
		result.TotalAmount += trip.TotalAmount
	}
	result.TripsProcessed = len(result.Trips)
	result.TripsRejected = len(result.Rejected)
	result.QualityScore = quality.Score(result.Trips, result.TripsRejected, engRes.Unmatched())

	// Persistence is all-or-nothing; do not start it with a dead context.
	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, doc.VoucherID, StageValidating, err, log)
	}

	// ===== Persisting =====
	if err := advance(model.VoucherPersisting); err != nil {
		return nil, p.fail(ctx, doc.VoucherID, StagePersisting, err, log)
	}
	if err := p.store.ReplaceTrips(ctx, doc.VoucherID, doc.CompanyID, result.Trips); err != nil {
		return nil, p.fail(ctx, doc.VoucherID, StagePersisting, err, log)
	}
	if err := p.store.CompleteVoucher(ctx, doc.VoucherID, result.TripsProcessed, result.QualityScore); err != nil {
		return nil, p.fail(ctx, doc.VoucherID, StagePersisting, err, log)
	}

	log.Info("pipeline: voucher complete",
		zap.String("grammar_id", result.GrammarID),
		zap.Int("trips", result.TripsProcessed),
		zap.Int("rejected", result.TripsRejected),
		zap.Float64("quality_score", result.QualityScore),
	)
	return result, nil
}

// fail marks the voucher failed with the stage that broke and returns the
// stage-wrapped error. The failure write is best-effort: the original error
// wins even if the store update also fails. The cause may be the context's
// own cancellation, so the write runs detached from ctx; a voucher left in
// an intermediate status would otherwise never be retryable.
func (p *Processor) fail(ctx context.Context, voucherID, stage string, cause error, log *zap.Logger) error {
	if err := p.store.FailVoucher(context.WithoutCancel(ctx), voucherID, stage, cause.Error()); err != nil {
		log.Warn("pipeline: failed to record voucher failure", zap.Error(err))
	}
	log.Error("pipeline: stage failed", zap.String("stage", stage), zap.Error(cause))
	return eris.Wrapf(cause, "pipeline: %s", stage)
}
