package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var alertsAll bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and close alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active alerts (all with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := app.alerts.List(!alertsAll)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIPO\tNIVEL\tSTATUS\tMENSAGEM")
		for _, a := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.IDAviso, a.Tipo, a.Nivel, a.Status, a.Mensagem)
		}
		return tw.Flush()
	},
}

var alertsCloseCmd = &cobra.Command{
	Use:   "close ID",
	Short: "Close an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.alerts.Close(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s closed at %s\n", a.IDAviso, *a.FechadoEm)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsCloseCmd)
	alertsListCmd.Flags().BoolVar(&alertsAll, "all", false, "include closed alerts")
}
