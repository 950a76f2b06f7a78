package cmd

import (
	"github.com/spf13/cobra"
)

var (
	rebuildIdentity string
	rebuildParcels  bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild analises.json and avisos.json",
	Long: `Rebuild the derived files from the end-stores: everything by default,
one identity with --identity, or only the parcel layer with --parcels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		switch {
		case rebuildParcels:
			return app.rebuilder.RebuildParcels(ctx)
		case rebuildIdentity != "":
			return app.rebuilder.RebuildForIdentity(ctx, rebuildIdentity)
		default:
			return app.rebuilder.RebuildAll(ctx)
		}
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().StringVar(&rebuildIdentity, "identity", "", "NOME|SOBRENOME|BLOCO|APARTAMENTO to rebuild")
	rebuildCmd.Flags().BoolVar(&rebuildParcels, "parcels", false, "rebuild only the parcel layer")
	rebuildCmd.MarkFlagsMutuallyExclusive("identity", "parcels")
}
