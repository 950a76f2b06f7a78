package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last runtime status event",
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := app.reporter.LastStatus()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(event)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
