package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <product name>",
		Short: "Classify one product without storing it",
		Long: `Runs the configured classifier against a single product and prints the
result. Nothing is written to the database.`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}
	cmd.Flags().String("category", "", "product category")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	category, _ := cmd.Flags().GetString("category")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.engine.Preview(ctx, args[0], category)
	fmt.Printf("Status:      %s\n", result.Status)
	fmt.Printf("Is food:     %s\n", formatIsFood(result.IsFood))
	if result.Explanation != "" {
		fmt.Printf("Explanation: %s\n", result.Explanation)
	}
	return nil
}
