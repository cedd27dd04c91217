package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/model"
)

var (
	companyID       string
	companyName     string
	companyDedType  string
	companyDedValue float64
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage companies and their deduction rules",
}

var companyUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create or update a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		company := model.Company{
			ID:   companyID,
			Name: companyName,
			Deduction: model.DeductionRule{
				Type:  model.DeductionType(companyDedType),
				Value: companyDedValue,
			},
		}
		if err := company.Deduction.Validate(); err != nil {
			return err
		}

		if err := st.UpsertCompany(ctx, company); err != nil {
			return eris.Wrap(err, "upsert company")
		}

		zap.L().Info("company saved",
			zap.String("id", company.ID),
			zap.String("deduction_type", string(company.Deduction.Type)),
			zap.Float64("deduction_value", company.Deduction.Value),
		)
		return nil
	},
}

func init() {
	companyUpsertCmd.Flags().StringVar(&companyID, "id", "", "company ID (required)")
	companyUpsertCmd.Flags().StringVar(&companyName, "name", "", "company display name (required)")
	companyUpsertCmd.Flags().StringVar(&companyDedType, "deduction-type", "percentage", "deduction type (percentage or flat)")
	companyUpsertCmd.Flags().Float64Var(&companyDedValue, "deduction-value", 0, "deduction value: percent of subtotal, or flat amount per trip")
	_ = companyUpsertCmd.MarkFlagRequired("id")
	_ = companyUpsertCmd.MarkFlagRequired("name")
	companyCmd.AddCommand(companyUpsertCmd)
	rootCmd.AddCommand(companyCmd)
}
