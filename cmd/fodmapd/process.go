package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fodmapworks/fodmap-flow/internal/common"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a single classification pass now",
		Long: `Triggers one classification pass over the pending queue, draining it in
batches. Equivalent to what the scheduler does on every tick.`,
		RunE: runProcess,
	}
	cmd.Flags().Bool("clear-cache", false, "drop cached classification results before the pass")
	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if clear, _ := cmd.Flags().GetBool("clear-cache"); clear {
		a.engine.InvalidateCache()
		fmt.Println("Classification cache cleared.")
	}

	report, err := a.engine.RunPendingClassificationPass(ctx)
	if errors.Is(err, common.ErrJobOverlap) {
		fmt.Println("A classification pass is already running, nothing to do.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Pass %s: %d batches, %d classified (%d unknown), %d still pending\n",
		report.RunID, report.Batches, report.Handled, report.Failed, report.Remaining)
	return nil
}
