package tigerweb

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// SpatialReference identifies a coordinate system by well-known id.
type SpatialReference struct {
	WKID int `json:"wkid,omitempty"`
}

// Geometry is an ArcGIS REST geometry. Exactly one of the point, paths or
// rings members is set.
type Geometry struct {
	X                *float64          `json:"x,omitempty"`
	Y                *float64          `json:"y,omitempty"`
	Paths            [][][2]float64    `json:"paths,omitempty"`
	Rings            [][][2]float64    `json:"rings,omitempty"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// Feature is one ArcGIS query result.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry"`
}

// ToGeom converts an ArcGIS geometry to go-geom with SRID 4326. Clockwise
// rings are exteriors; counter-clockwise rings are holes of the exterior
// that contains them.
func ToGeom(g *Geometry) (geom.T, error) {
	if g == nil {
		return nil, nil
	}
	switch {
	case g.X != nil && g.Y != nil:
		return geom.NewPointFlat(geom.XY, []float64{*g.X, *g.Y}).SetSRID(4326), nil
	case len(g.Rings) > 0:
		return ringsToGeom(g.Rings)
	case len(g.Paths) > 0:
		mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)
		for _, p := range g.Paths {
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, flatten(p))); err != nil {
				return nil, eris.Wrap(err, "tigerweb: build linestring")
			}
		}
		if mls.NumLineStrings() == 1 {
			return mls.LineString(0).SetSRID(4326), nil
		}
		return mls, nil
	}
	return nil, eris.New("tigerweb: empty geometry")
}

func ringsToGeom(rings [][][2]float64) (geom.T, error) {
	var outers [][][][2]float64
	var holes [][][2]float64
	for _, r := range rings {
		r = closeRing(r)
		if len(r) < 4 {
			continue
		}
		if clockwise(r) {
			outers = append(outers, [][][2]float64{r})
		} else {
			holes = append(holes, r)
		}
	}

	for _, h := range holes {
		placed := false
		for i := len(outers) - 1; i >= 0; i-- {
			if ringContains(outers[i][0], h[0]) {
				outers[i] = append(outers[i], h)
				placed = true
				break
			}
		}
		if !placed {
			// An orphan counter-clockwise ring is an exterior wound the
			// other way.
			outers = append(outers, [][][2]float64{reversed(h)})
		}
	}

	if len(outers) == 0 {
		return nil, eris.New("tigerweb: polygon has no valid rings")
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, poly := range outers {
		var flat []float64
		var ends []int
		for _, r := range poly {
			flat = append(flat, flatten(r)...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			zap.L().Debug("tigerweb: skipping malformed polygon", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 1 {
		return mp.Polygon(0).SetSRID(4326), nil
	}
	return mp, nil
}

// FromGeom converts a go-geom Point, Polygon or MultiPolygon to an ArcGIS
// geometry in WGS84. Exteriors are wound clockwise and holes
// counter-clockwise.
func FromGeom(g geom.T) (*Geometry, error) {
	sr := &SpatialReference{WKID: 4326}
	switch t := g.(type) {
	case *geom.Point:
		x, y := t.X(), t.Y()
		return &Geometry{X: &x, Y: &y, SpatialReference: sr}, nil
	case *geom.Polygon:
		return &Geometry{Rings: polygonRings(t), SpatialReference: sr}, nil
	case *geom.MultiPolygon:
		var rings [][][2]float64
		for i := 0; i < t.NumPolygons(); i++ {
			rings = append(rings, polygonRings(t.Polygon(i))...)
		}
		return &Geometry{Rings: rings, SpatialReference: sr}, nil
	case nil:
		return nil, eris.New("tigerweb: nil geometry")
	}
	return nil, eris.Errorf("tigerweb: unsupported geometry %T", g)
}

func polygonRings(p *geom.Polygon) [][][2]float64 {
	out := make([][][2]float64, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		r := closeRing(toPairs(p.LinearRing(i).FlatCoords(), p.Stride()))
		if cw := clockwise(r); (i == 0) != cw {
			r = reversed(r)
		}
		out = append(out, r)
	}
	return out
}

// Marshal encodes a go-geom geometry as ArcGIS JSON for a query's
// geometry parameter.
func Marshal(g geom.T) (string, error) {
	eg, err := FromGeom(g)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(eg)
	if err != nil {
		return "", eris.Wrap(err, "tigerweb: encode geometry")
	}
	return string(b), nil
}

// clockwise uses the shoelace sum; ties count as clockwise.
func clockwise(r [][2]float64) bool {
	sum := 0.0
	for i := 0; i < len(r)-1; i++ {
		sum += (r[i+1][0] - r[i][0]) * (r[i+1][1] + r[i][1])
	}
	return sum >= 0
}

// ringContains is an even-odd point-in-ring test.
func ringContains(r [][2]float64, pt [2]float64) bool {
	in := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > pt[1]) != (yj > pt[1]) && pt[0] < (xj-xi)*(pt[1]-yi)/(yj-yi)+xi {
			in = !in
		}
	}
	return in
}

func closeRing(r [][2]float64) [][2]float64 {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	out := make([][2]float64, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}

func reversed(r [][2]float64) [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

func flatten(r [][2]float64) []float64 {
	flat := make([]float64, 0, 2*len(r))
	for _, p := range r {
		flat = append(flat, p[0], p[1])
	}
	return flat
}

func toPairs(flat []float64, stride int) [][2]float64 {
	out := make([][2]float64, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, [2]float64{flat[i], flat[i+1]})
	}
	return out
}
