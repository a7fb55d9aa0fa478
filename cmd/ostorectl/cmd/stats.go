package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print object and resource counts",
	Long: `stats reports the total number of rows in the objects table,
how many are flagged as resources, and the current pool saturation.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	txn, err := e.NewTxn(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer txn.Release()

	if err := e.StartTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to begin backend transaction: %w", err)
	}
	defer e.Abort(ctx, txn)

	total, err := e.GetTotalNumberOfObjects(ctx, txn)
	if err != nil {
		return fmt.Errorf("failed to count objects: %w", err)
	}
	resources, err := e.GetTotalNumberOfResources(ctx, txn)
	if err != nil {
		return fmt.Errorf("failed to count resources: %w", err)
	}

	stats := e.PoolStats()

	fmt.Printf("objects:    %d\n", total)
	fmt.Printf("resources:  %d\n", resources)
	fmt.Printf("pool:       %d/%d connections (%d idle)\n", stats.AcquiredConns, stats.MaxConns, stats.IdleConns)
	return nil
}
