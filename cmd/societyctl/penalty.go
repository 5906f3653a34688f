package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/config"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// PenaltyCmd previews the late fee for a payment without touching the database.
func PenaltyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "penalty",
		Short: "Calculate the late payment penalty for a payment date",
		RunE: func(cmd *cobra.Command, args []string) error {
			paidOn, _ := cmd.Flags().GetString("payment-date")
			month, _ := cmd.Flags().GetString("payment-month")
			dueDay, _ := cmd.Flags().GetInt("due-day")
			amount, _ := cmd.Flags().GetString("penalty")

			paymentDate, err := clock.ParseDate(paidOn)
			if err != nil {
				return fmt.Errorf("payment-date: %w", err)
			}
			paymentMonth, err := clock.ParseMonth(month)
			if err != nil {
				return fmt.Errorf("payment-month: %w", err)
			}

			defaults, err := config.NewMaintenanceDefaultsHolder(zap.NewNop())
			if err != nil {
				return fmt.Errorf("load maintenance defaults: %w", err)
			}
			current := defaults.Get()
			if dueDay <= 0 {
				dueDay = current.PenaltyDueDay
			}
			penalty := current.Penalty()
			if amount != "" {
				penalty, err = decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("penalty: %w", err)
				}
			}

			result := maintenancedomain.CalculatePenalty(paymentDate, paymentMonth, dueDay, penalty)
			due := maintenancedomain.DueDate(paymentMonth, dueDay)
			fmt.Fprintf(cmd.OutOrStdout(), "due date:  %s\ndays late: %d\npenalty:   %s\n",
				due.Format(clock.DateLayout), result.DaysLate, result.Penalty.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().String("payment-date", "", "Date the payment was received (YYYY-MM-DD)")
	cmd.Flags().String("payment-month", "", "Billing month (YYYY-MM)")
	cmd.Flags().Int("due-day", 0, "Penalty due day; defaults to society.yml")
	cmd.Flags().String("penalty", "", "Flat penalty amount; defaults to society.yml")
	_ = cmd.MarkFlagRequired("payment-date")
	_ = cmd.MarkFlagRequired("payment-month")
	return cmd
}
