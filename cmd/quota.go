package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's metrics API quota consumption",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status := newQuotaTracker(st).Status()
		fmt.Printf("Quota for %s\n", status.Date)
		fmt.Printf("  operations: %d / %d (%.0f%%), %d remaining\n",
			status.Operations, status.OperationsLimit, status.OperationsPercent, status.OperationsRemaining)
		fmt.Printf("  reads:      %d / %d (%.0f%%), %d remaining\n",
			status.Reads, status.ReadsLimit, status.ReadsPercent, status.ReadsRemaining)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}
