package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/quietcreep/citysdk/internal/census"
)

// requestFlags are shared by the request and geo commands.
type requestFlags struct {
	body string
	file string
	out  string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.body, "request", "", "request as inline JSON")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the request from a JSON file (- for stdin)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the result to a .json, .geojson, .xlsx or .shp file instead of stdout")
}

// raw decodes the request from --request, --file, or stdin when neither is
// set.
func (f *requestFlags) raw(cmd *cobra.Command) (census.RawRequest, error) {
	var r io.Reader
	switch {
	case f.body != "":
		r = strings.NewReader(f.body)
	case f.file != "" && f.file != "-":
		fh, err := os.Open(f.file)
		if err != nil {
			return census.RawRequest{}, eris.Wrapf(err, "open request %s", f.file)
		}
		defer fh.Close() //nolint:errcheck
		r = fh
	default:
		r = cmd.InOrStdin()
	}

	var raw census.RawRequest
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return census.RawRequest{}, eris.Wrap(err, "decode request")
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
