package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/freight-cli/internal/model"
	"github.com/sells-group/freight-cli/internal/store"
)

var (
	vouchersStatus  string
	vouchersCompany string
	vouchersLimit   int
)

var vouchersCmd = &cobra.Command{
	Use:   "vouchers",
	Short: "List vouchers and inspect their trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		vouchers, err := st.ListVouchers(ctx, store.VoucherFilter{
			Status:    model.VoucherStatus(vouchersStatus),
			CompanyID: vouchersCompany,
			Limit:     vouchersLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list vouchers")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(vouchers)
	},
}

var vouchersShowCmd = &cobra.Command{
	Use:   "show <voucher-id>",
	Short: "Show one voucher with its persisted trips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		voucher, err := st.GetVoucher(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get voucher")
		}
		trips, err := st.TripsForVoucher(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load trips")
		}

		out := struct {
			Voucher *model.Voucher     `json:"voucher"`
			Trips   []model.TripRecord `json:"trips"`
		}{voucher, trips}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	vouchersCmd.Flags().StringVar(&vouchersStatus, "status", "", "filter by status")
	vouchersCmd.Flags().StringVar(&vouchersCompany, "company", "", "filter by company ID")
	vouchersCmd.Flags().IntVar(&vouchersLimit, "limit", 100, "max vouchers to list")
	vouchersCmd.AddCommand(vouchersShowCmd)
	rootCmd.AddCommand(vouchersCmd)
}
