package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/export"
)

var geoOpts requestFlags

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Resolve a request to boundaries joined with statistics",
	Long:  "Reads a request as JSON and prints a GeoJSON FeatureCollection of the matching TIGERweb boundaries, each carrying its statistics, plus totals across features.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initCensus("resolve")
		if err != nil {
			return err
		}
		raw, err := geoOpts.raw(cmd)
		if err != nil {
			return err
		}
		req, err := env.Resolver.NewRequest(raw)
		if err != nil {
			return err
		}

		fc, err := env.Resolver.ResolveGeometry(cmd.Context(), req)
		if err != nil {
			return err
		}
		if len(fc.Ambiguous) > 0 {
			zap.L().Warn("features matched several statistics rows and were left unmerged",
				zap.Ints("features", fc.Ambiguous),
			)
		}

		if geoOpts.out != "" {
			if err := export.Features(geoOpts.out, fc); err != nil {
				return err
			}
			zap.L().Info("wrote features",
				zap.String("path", geoOpts.out),
				zap.Int("features", len(fc.Features)),
			)
			return nil
		}
		return printJSON(cmd.OutOrStdout(), fc)
	},
}

func init() {
	geoOpts.register(geoCmd)
	rootCmd.AddCommand(geoCmd)
}
