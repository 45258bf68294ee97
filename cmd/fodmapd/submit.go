package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fodmapworks/fodmap-flow/internal/engine"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [product name]...",
		Short: "Submit products for classification",
		Long: `Creates a PENDING record for each product not already known. Submission
is idempotent: a product whose identity hash already exists is left
untouched, whatever its current status.

Products are given as arguments (with an optional shared --category) or
read from a CSV file of "name,category" rows.`,
		RunE: runSubmit,
	}
	cmd.Flags().String("category", "", "category applied to all submitted names")
	cmd.Flags().String("file", "", "CSV file with name,category rows")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	category, _ := cmd.Flags().GetString("category")
	file, _ := cmd.Flags().GetString("file")

	var submissions []engine.Submission
	for _, name := range args {
		submissions = append(submissions, engine.Submission{Name: name, Category: category})
	}
	if file != "" {
		fromFile, err := readSubmissions(file)
		if err != nil {
			return err
		}
		submissions = append(submissions, fromFile...)
	}
	if len(submissions) == 0 {
		return fmt.Errorf("nothing to submit: pass product names or --file")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Submit(ctx, submissions)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted %d products (%d new, %d already known)\n",
		report.Submitted, report.Created, report.Submitted-report.Created)
	for i, s := range submissions {
		fmt.Printf("  %s  %s\n", report.Identities[i], s.Name)
	}
	return nil
}

// readSubmissions parses a CSV file of "name" or "name,category" rows.
func readSubmissions(path string) ([]engine.Submission, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied CLI path
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var submissions []engine.Submission
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		s := engine.Submission{Name: row[0]}
		if len(row) > 1 {
			s.Category = row[1]
		}
		submissions = append(submissions, s)
	}
	return submissions, nil
}
