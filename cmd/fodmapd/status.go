package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [identity or product name]...",
		Short: "Query classification status",
		Long: `Looks up the current classification for each argument. Arguments
starting with "name_" are treated as identity hashes; anything else is
treated as a product name and hashed first. With no arguments, prints
per-status record counts for the whole catalog. Use --runs to list
recent classification passes instead.`,
		RunE: runStatus,
	}
	cmd.Flags().Int("runs", 0, "list the N most recent classification passes")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if runs, _ := cmd.Flags().GetInt("runs"); runs > 0 {
		return runRecentRuns(cmd, runs)
	}
	if len(args) == 0 {
		return runOverview(cmd)
	}

	identities := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "name_") {
			identities[i] = arg
		} else {
			identities[i] = model.IdentityHash(arg)
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Status(ctx, identities)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tNAME\tSTATUS\tIS_FOOD\tEXPLANATION")
	for _, p := range report.Found {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.IdentityHash, p.Name, p.Status, formatIsFood(p.IsFood), p.Explanation)
	}
	for _, id := range report.Missing {
		fmt.Fprintf(w, "%s\t-\tnot found\t-\t-\n", id)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d found, %d missing\n", report.FoundCount(), report.MissingCount())
	return nil
}

func runOverview(cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.engine.Overview(ctx)
	if err != nil {
		return err
	}

	order := []model.FodmapStatus{
		model.StatusPending, model.StatusLow, model.StatusModerate,
		model.StatusHigh, model.StatusNA, model.StatusUnknown,
	}
	total := 0
	for _, status := range order {
		fmt.Printf("%-10s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Printf("%-10s %d\n", "TOTAL", total)
	return nil
}

func runRecentRuns(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.RecentJobRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No classification passes recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tFINISHED\tPROCESSED\tUNKNOWN\tERROR")
	for _, run := range runs {
		finished := "running"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Local().Format(time.DateTime)
		}
		errText := run.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID, run.StartedAt.Local().Format(time.DateTime), finished,
			run.Processed, run.Failed, errText)
	}
	return w.Flush()
}

func formatIsFood(b *bool) string {
	switch {
	case b == nil:
		return "?"
	case *b:
		return "yes"
	default:
		return "no"
	}
}
