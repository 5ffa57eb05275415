// Package export writes resolution results to files: GeoJSON, ESRI
// shapefiles and XLSX workbooks.
package export

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quietcreep/citysdk/internal/census"
)

// Format is an output file format.
type Format string

const (
	GeoJSON   Format = "geojson"
	Shapefile Format = "shp"
	XLSX      Format = "xlsx"
	JSON      Format = "json"
)

// ErrUnsupportedFormat is returned for extensions with no writer, or a
// format that cannot hold the given result.
var ErrUnsupportedFormat = eris.New("export: unsupported format")

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson":
		return GeoJSON, nil
	case ".json":
		return JSON, nil
	case ".shp":
		return Shapefile, nil
	case ".xlsx":
		return XLSX, nil
	}
	return "", eris.Wrapf(ErrUnsupportedFormat, "export: %q", filepath.Ext(path))
}

// Features writes a feature collection to path in the format its
// extension names. XLSX gets one row per feature's properties.
func Features(path string, fc *census.FeatureCollection) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	switch format {
	case Shapefile:
		return WriteShapefile(path, fc)
	case XLSX:
		rows := make([]map[string]any, len(fc.Features))
		for i, f := range fc.Features {
			rows[i] = f.Properties
		}
		return writeFile(path, func(w io.Writer) error { return WriteXLSX(w, rows) })
	}
	return writeFile(path, func(w io.Writer) error { return writeJSON(w, fc) })
}

// Records writes statistics records to path as JSON or XLSX.
func Records(path string, recs []census.Record) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	switch format {
	case XLSX:
		rows := make([]map[string]any, len(recs))
		for i, r := range recs {
			rows[i] = r
		}
		return writeFile(path, func(w io.Writer) error { return WriteXLSX(w, rows) })
	case JSON, GeoJSON:
		return writeFile(path, func(w io.Writer) error { return writeJSON(w, recs) })
	}
	return eris.Wrapf(ErrUnsupportedFormat, "export: records cannot be written as %s", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// columns returns the keys across rows: name first, the rest sorted.
func columns(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.SortFunc(cols, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case strings.EqualFold(a, "name"):
			return -1
		case strings.EqualFold(b, "name"):
			return 1
		}
		return strings.Compare(a, b)
	})
	return cols
}

// numeric returns v as a finite float when it is a number.
func numeric(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case census.Ratio:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
