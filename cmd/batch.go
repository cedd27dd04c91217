package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/pipeline"
	"github.com/sells-group/freight-cli/internal/store"
)

var (
	batchLimit  int
	batchStatus string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process queued vouchers concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := initProcessor(st)
		if err != nil {
			return err
		}

		status := model.VoucherStatus(batchStatus)
		vouchers, err := st.ListVouchers(ctx, store.VoucherFilter{
			Status: status,
			Limit:  batchLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list vouchers")
		}

		return processBatch(ctx, vouchers, cfg.Batch.MaxConcurrentVouchers, p)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of vouchers to process")
	batchCmd.Flags().StringVar(&batchStatus, "status", string(model.VoucherPending), "voucher status to pick up (pending or failed)")
	rootCmd.AddCommand(batchCmd)
}

// processBatch runs the pipeline over vouchers with bounded concurrency.
// Individual voucher failures are recorded on the voucher and do not abort
// the batch.
func processBatch(ctx context.Context, vouchers []model.Voucher, concurrency int, p *pipeline.Processor) error {
	if len(vouchers) == 0 {
		zap.L().Info("no queued vouchers found")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("vouchers", len(vouchers)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, v := range vouchers {
		doc := model.SourceDocument{
			VoucherID: v.ID,
			CompanyID: v.CompanyID,
			Path:      v.FilePath,
			Format:    v.Format,
		}
		g.Go(func() error {
			log := zap.L().With(zap.String("voucher_id", doc.VoucherID))

			result, err := p.Process(gctx, doc)
			if err != nil {
				failed.Add(1)
				log.Error("voucher processing failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("voucher processed",
				zap.Int("trips", result.TripsProcessed),
				zap.Float64("quality_score", result.QualityScore),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
