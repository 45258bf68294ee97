package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// seedChunk bounds how many rows go into one insert transaction.
const seedChunk = 500

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.csv>",
		Short: "Bulk-seed products from a CSV catalog",
		Long: `Reads a CSV file of "name,category" rows and creates a PENDING record
for every product not already known. Existing records are left untouched,
so re-seeding the same catalog is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	submissions, err := readSubmissions(args[0])
	if err != nil {
		return err
	}
	if len(submissions) == 0 {
		return fmt.Errorf("no products found in %s", args[0])
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(submissions),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Seeding products..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	var created int
	for start := 0; start < len(submissions); start += seedChunk {
		end := min(start+seedChunk, len(submissions))
		chunk := submissions[start:end]

		report, submitErr := a.engine.Submit(ctx, chunk)
		if submitErr != nil {
			return fmt.Errorf("seeding failed at row %d: %w", start, submitErr)
		}
		created += report.Created
		_ = bar.Add(len(chunk))
	}

	fmt.Printf("Seeded %d products: %d new, %d already known\n",
		len(submissions), created, len(submissions)-created)
	return nil
}
