package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/census"
	"github.com/quietcreep/citysdk/pkg/tigerweb"
)

// dbfNameLen is the longest field name a DBF header holds.
const dbfNameLen = 10

// WriteShapefile writes fc as a shapefile at path (.shp, with .shx and
// .dbf alongside). The first feature's geometry picks the shape type;
// features of another type or without geometry are skipped. Properties
// become DBF fields, numeric when every value of the property is a number.
func WriteShapefile(path string, fc *census.FeatureCollection) error {
	shapeType, ok := shapeTypeOf(fc)
	if !ok {
		return eris.Wrap(ErrUnsupportedFormat, "export: no point or polygon features for a shapefile")
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	w, err := shp.Create(base+".shp", shapeType)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	err = writeShapes(w, path, fc, shapeType)
	w.Close()
	if err != nil {
		return err
	}
	// go-shp names the table <base>dbf.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrap(err, "export: rename dbf")
	}
	return nil
}

func writeShapes(w *shp.Writer, path string, fc *census.FeatureCollection, shapeType shp.ShapeType) error {
	rows := make([]map[string]any, 0, len(fc.Features))
	shapes := make([]shp.Shape, 0, len(fc.Features))
	var skipped int
	for _, f := range fc.Features {
		s, err := toShape(f.Geometry)
		if err != nil || s == nil || typeOf(s) != shapeType {
			skipped++
			continue
		}
		shapes = append(shapes, s)
		rows = append(rows, f.Properties)
	}
	if skipped > 0 {
		zap.L().Debug("export: skipped features", zap.String("path", path), zap.Int("skipped", skipped))
	}

	cols := columns(rows)
	fields, numericCols := dbfFields(cols, rows)
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "export: dbf fields")
	}

	for i, s := range shapes {
		row := int(w.Write(s))
		for j, col := range cols {
			v, present := rows[i][col]
			if !present || v == nil {
				continue
			}
			var val any
			if numericCols[j] {
				f, ok := numeric(v)
				if !ok {
					continue
				}
				val = f
			} else {
				val = truncate(fmt.Sprint(v), 254)
			}
			if err := w.WriteAttribute(row, j, val); err != nil {
				return eris.Wrapf(err, "export: feature %d field %s", i, col)
			}
		}
	}
	return nil
}

func shapeTypeOf(fc *census.FeatureCollection) (shp.ShapeType, bool) {
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case *geom.Point:
			return shp.POINT, true
		case *geom.Polygon, *geom.MultiPolygon:
			return shp.POLYGON, true
		}
	}
	return shp.NULL, false
}

func typeOf(s shp.Shape) shp.ShapeType {
	if _, ok := s.(*shp.Point); ok {
		return shp.POINT
	}
	return shp.POLYGON
}

// toShape converts a geometry. Polygon rings come out clockwise with
// counter-clockwise holes, as shapefiles require.
func toShape(g geom.T) (shp.Shape, error) {
	if g == nil {
		return nil, nil
	}
	eg, err := tigerweb.FromGeom(g)
	if err != nil {
		return nil, err
	}
	if eg.X != nil && eg.Y != nil {
		return &shp.Point{X: *eg.X, Y: *eg.Y}, nil
	}
	parts := make([][]shp.Point, len(eg.Rings))
	for i, ring := range eg.Rings {
		parts[i] = make([]shp.Point, len(ring))
		for j, c := range ring {
			parts[i][j] = shp.Point{X: c[0], Y: c[1]}
		}
	}
	return (*shp.Polygon)(shp.NewPolyLine(parts)), nil
}

// dbfFields builds one field per column with unique names of at most ten
// bytes. A column is numeric when every present value is a number.
func dbfFields(cols []string, rows []map[string]any) ([]shp.Field, []bool) {
	fields := make([]shp.Field, len(cols))
	numericCols := make([]bool, len(cols))
	used := map[string]bool{}
	for i, col := range cols {
		name := fieldName(col, i, used)
		numericCols[i] = allNumeric(col, rows)
		if numericCols[i] {
			fields[i] = shp.FloatField(name, 24, 6)
		} else {
			fields[i] = shp.StringField(name, 254)
		}
	}
	return fields, numericCols
}

func fieldName(col string, i int, used map[string]bool) string {
	name := truncate(strings.ReplaceAll(col, " ", "_"), dbfNameLen)
	if used[name] {
		suffix := fmt.Sprintf("_%d", i)
		name = truncate(name, dbfNameLen-len(suffix)) + suffix
	}
	used[name] = true
	return name
}

func allNumeric(col string, rows []map[string]any) bool {
	seen := false
	for _, r := range rows {
		v, ok := r[col]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case float64, census.Ratio, int, int64:
			seen = true
		default:
			return false
		}
	}
	return seen
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
