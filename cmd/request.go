package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/export"
)

var requestOpts requestFlags

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Resolve a request to FIPS identifiers and statistics",
	Long:  "Reads a request as JSON and prints the completed request: FIPS identifiers, the geocoded point and any requested statistics. With --out only the statistics rows are written.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initCensus("resolve")
		if err != nil {
			return err
		}
		raw, err := requestOpts.raw(cmd)
		if err != nil {
			return err
		}
		req, err := env.Resolver.NewRequest(raw)
		if err != nil {
			return err
		}

		out, err := env.Resolver.Resolve(cmd.Context(), req)
		if err != nil {
			return err
		}

		if requestOpts.out != "" {
			if err := export.Records(requestOpts.out, out.Data); err != nil {
				return err
			}
			zap.L().Info("wrote statistics",
				zap.String("path", requestOpts.out),
				zap.Int("rows", len(out.Data)),
			)
			return nil
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	requestOpts.register(requestCmd)
	rootCmd.AddCommand(requestCmd)
}
