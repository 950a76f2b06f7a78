package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"example.com/portaria/internal/models"
)

var (
	reprocessEntry   int
	reprocessDestino string
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Retry ingress rows left with processado=false",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if reprocessEntry > 0 {
			res, err := app.ingest.ReprocessEntry(ctx, models.Destination(reprocessDestino), reprocessEntry)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t#%d\tadded=%t\n", res.Destination, res.Entry.ID, res.Added)
			return nil
		}

		summary, err := app.ingest.Reprocess(ctx)
		fmt.Fprintf(out, "recovered=%d pending=%d processed=%d failed=%d\n",
			summary.Recovered, summary.Pending, summary.Processed, summary.Failed)
		return errors.Wrap(err, "reprocess stopped")
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)
	reprocessCmd.Flags().IntVar(&reprocessEntry, "entry", 0, "replay one ingress row by id")
	reprocessCmd.Flags().StringVar(&reprocessDestino, "destino", string(models.DestinationAccess), "init-store of --entry (acesso, encomendas)")
}
