package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/youssefsiam38/ctxoffload/maintenance"
	"github.com/youssefsiam38/ctxoffload/storage"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete offloaded payloads older than a retention period",
	Long: `Delete objects from the blob backend whose last write is older than the
retention period. With --watch, keep pruning at an interval until
interrupted.

File storage is never pruned.

Examples:
  ctxoffload prune --older-than 72h
  ctxoffload prune --watch --interval 30m`,
	Args: cobra.NoArgs,
	RunE: prune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().Duration("older-than", maintenance.DefaultRetention, "retention period")
	pruneCmd.Flags().Bool("watch", false, "keep pruning until interrupted")
	pruneCmd.Flags().Duration("interval", maintenance.DefaultPruneInterval, "prune interval with --watch")
}

func prune(cmd *cobra.Command, args []string) error {
	retention, _ := cmd.Flags().GetDuration("older-than")
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		expirer, ok := a.backend.(storage.Expirer)
		if !ok {
			return fmt.Errorf("backend %s does not support pruning", a.cfg.Storage.Backend)
		}

		pruner, err := maintenance.NewPruner(expirer, &maintenance.PrunerConfig{
			Interval:  interval,
			Retention: retention,
			OnPrune: func(count int) {
				a.logger.Info("pruned expired objects", "count", count)
			},
			OnError: func(err error) {
				a.logger.Error("prune failed", "error", err)
			},
		})
		if err != nil {
			return err
		}

		if !watch {
			return runPrune(ctx, pruner, os.Stdout)
		}

		if err := pruner.Start(ctx); err != nil {
			return err
		}
		a.logger.Info("pruning", "retention", retention, "interval", interval)
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return pruner.Stop(stopCtx)
	})
}

func runPrune(ctx context.Context, pruner *maintenance.Pruner, w io.Writer) error {
	result := pruner.RunOnce(ctx)
	fmt.Fprintf(w, "Deleted %d objects last written before %s\n", result.Deleted, result.Horizon.Format(time.RFC3339))
	return result.Err
}
