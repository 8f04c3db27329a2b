/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
)

// benchCmd drives synthetic insert throughput against a freshly
// constructed tree, bypassing the monitoring server and sink so it
// measures only Insert/flush/ForceFlush cost.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark synthetic insert throughput",
	Long: `Insert a configurable number of random-key update records into a
fresh tree, then force a full flush, reporting throughput.

Example:
  buffertreed bench --count 1000000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}
		cfg.Tree.Reset = true

		count, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetInt64("seed")

		t, err := newTree(cfg)
		if err != nil {
			return fmt.Errorf("failed to start tree: %w", err)
		}
		defer t.Close()

		rng := rand.New(rand.NewSource(seed))

		start := time.Now()
		for i := 0; i < count; i++ {
			key := rng.Uint64() % cfg.Tree.N
			if err := t.Insert(key, uint64(i)); err != nil {
				return fmt.Errorf("insert failed after %d records: %w", i, err)
			}
		}
		insertElapsed := time.Since(start)

		flushStart := time.Now()
		if err := t.ForceFlush(); err != nil {
			return fmt.Errorf("force flush failed: %w", err)
		}
		flushElapsed := time.Since(flushStart)

		cmd.Printf("inserted %d records in %s (%.0f records/sec)\n",
			count, insertElapsed, float64(count)/insertElapsed.Seconds())
		cmd.Printf("drained all levels in %s\n", flushElapsed)

		t.SetNonBlock(true)
		drained := 0
		for {
			data, ok, err := t.GetData()
			if err != nil {
				return fmt.Errorf("drain failed: %w", err)
			}
			if !ok {
				break
			}
			drained += len(data)
		}
		cmd.Printf("handoff queue yielded %d bytes across all leaves\n", drained)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().Int("count", 100000, "Number of update records to insert")
	benchCmd.Flags().Int64("seed", 1, "Random seed for synthetic keys")
}
