package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fodmapworks/fodmap-flow/internal/engine"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic classification scheduler",
		Long: `Runs the classification scheduler until interrupted. Every interval the
scheduler triggers a classification pass over the pending queue; a trigger
arriving while a pass is still running is skipped.`,
		RunE: runServe,
	}
	cmd.Flags().Duration("interval", 0, "time between scheduled passes (default 2m)")
	_ = viper.BindPFlag("scheduler.interval", cmd.Flags().Lookup("interval"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := engine.NewScheduler(a.engine, a.cfg.SchedulerInterval, slog.Default())
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
