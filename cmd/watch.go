package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the end-stores and keep analyses and alerts current",
	Long: `Start the change watcher. Store changes trigger targeted rebuilds; a
scheduler runs a full reconciliation and retries pending ingress rows.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if err := app.rebuilder.Reconcile(ctx); err != nil {
		log.Error().Err(err).Msg("Initial reconciliation failed")
	}

	w := app.newWatcher()
	g.Go(func() error {
		return w.Run(ctx)
	})

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Watcher.ReconcileInterval),
			gocron.NewTask(func() {
				log.Debug().Msg("Running reconciliation job")
				if err := app.rebuilder.Reconcile(ctx); err != nil {
					log.Error().Err(err).Msg("Reconciliation job failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Watcher.ReprocessInterval),
			gocron.NewTask(func() {
				reprocessPending(ctx)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Watcher error")
		return err
	}

	log.Info().Msg("Watcher shutting down gracefully")
	return nil
}

func reprocessPending(ctx context.Context) {
	summary, err := app.ingest.Reprocess(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Pending rows not reprocessed")
		return
	}
	if summary.Pending > 0 {
		log.Info().
			Int("pending", summary.Pending).
			Int("processed", summary.Processed).
			Int("failed", summary.Failed).
			Msg("Pending rows reprocessed")
	}
}
