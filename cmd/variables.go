package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quietcreep/citysdk/internal/census"
	"github.com/quietcreep/citysdk/internal/variables"
	"github.com/quietcreep/citysdk/pkg/censusapi"
)

var (
	variablesYear int
	variablesAPI  string
	variablesJSON bool
)

var variablesCmd = &cobra.Command{
	Use:   "variables",
	Short: "List variable aliases or a dataset's variable dictionary",
	Long:  "Without --year, lists the aliases requests may use in place of variable codes. With --year, fetches the variable dictionary of the dataset named by --api for that year.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initCensus("resolve")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if variablesYear == 0 {
			aliases := env.Resolver.Catalog().Aliases()
			if variablesJSON {
				return printJSON(out, aliases)
			}
			formatAliases(out, aliases)
			return nil
		}

		api := variablesAPI
		if api == "" {
			api = env.Resolver.Defaults().API
		}
		env.Resolver.Catalog().CheckSupport(variablesYear, api)
		vars, err := env.Stats.Variables(cmd.Context(), variablesYear, census.DatasetPath(variablesYear, api))
		if err != nil {
			return err
		}
		if variablesJSON {
			return printJSON(out, vars)
		}
		formatDictionary(out, vars)
		return nil
	},
}

func init() {
	variablesCmd.Flags().IntVar(&variablesYear, "year", 0, "fetch the dictionary for this year")
	variablesCmd.Flags().StringVar(&variablesAPI, "api", "", "dataset for --year (default from config)")
	variablesCmd.Flags().BoolVar(&variablesJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(variablesCmd)
}

// formatAliases writes a tabular listing of aliases to w.
func formatAliases(out io.Writer, aliases []variables.Alias) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ALIAS\tVARIABLE\tNORMALIZABLE\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "-----\t--------\t------------\t-----------")
	for _, a := range aliases {
		norm := "no"
		if a.Normalizable {
			norm = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Variable, norm, a.Description)
	}
	_ = w.Flush()
}

// formatDictionary writes a tabular listing of dictionary entries to w.
func formatDictionary(out io.Writer, vars []censusapi.Variable) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tLABEL\tCONCEPT")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------")
	for _, v := range vars {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, truncate(v.Label, 60), truncate(v.Concept, 60))
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
