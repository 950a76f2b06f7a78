package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/portaria/internal/models"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List ingress rows not yet committed to their end-store",
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := app.ingest.Pending()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DESTINO\tID\tDATA_HORA\tTEXTO")
		for _, dest := range []models.Destination{models.DestinationAccess, models.DestinationParcel} {
			for _, row := range pending[dest] {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", dest, row.ID, row.DataHora, row.Texto)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}
