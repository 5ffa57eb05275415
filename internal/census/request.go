// Package census resolves locations against the Census geographic
// hierarchy, fetches statistics and boundaries for the resolved units, and
// reconciles the two onto one feature collection.
package census

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/pkg/geocode"
	"github.com/quietcreep/citysdk/pkg/tigerweb"
)

// ContainerArea is the container of a query bounded by a caller-supplied
// polygon rather than a Census unit.
const ContainerArea geography.Level = "geometry"

// Request is one resolution. The resolver fills it in step by step.
type Request struct {
	Year      int             `json:"year"`
	API       string          `json:"api"`
	Level     geography.Level `json:"level"`
	Sublevel  bool            `json:"sublevel"`
	Container geography.Level `json:"container,omitempty"`
	Variables []string        `json:"variables,omitempty"`
	Vintage   string          `json:"mapServer,omitempty"`

	Location Location `json:"location,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	geography.FIPS

	// AddressMatch is the geocoder candidate an Address location resolved to.
	AddressMatch *geocode.AddressMatch `json:"addressMatch,omitempty"`

	// ContainerGeometry bounds the second phase of a contained sublevel
	// geometry query.
	ContainerGeometry geom.T `json:"-"`

	Data     []Record `json:"data,omitempty"`
	Geocoded bool     `json:"geocoded,omitempty"`
}

// Defaults fill fields a request leaves empty.
type Defaults struct {
	Year    int
	API     string
	Level   geography.Level
	Vintage string
}

// NewRequest validates raw and builds a Request from it.
func NewRequest(raw RawRequest, d Defaults) (*Request, error) {
	req := &Request{
		Year:      d.Year,
		API:       d.API,
		Level:     d.Level,
		Vintage:   d.Vintage,
		Variables: append([]string(nil), raw.Variables...),
	}
	if raw.Year != nil && *raw.Year != 0 {
		req.Year = int(*raw.Year)
	}
	if raw.API != "" {
		req.API = raw.API
	}
	if raw.MapServer != "" {
		req.Vintage = raw.MapServer
	}
	if raw.Level != "" {
		l, err := geography.ParseLevel(raw.Level)
		if err != nil {
			return nil, err
		}
		req.Level = l
	}
	if req.Level == "" {
		req.Level = geography.BlockGroup
	}
	if raw.Sublevel != nil {
		req.Sublevel = bool(*raw.Sublevel)
	}
	if raw.Container != "" {
		c, err := parseContainer(raw.Container)
		if err != nil {
			return nil, err
		}
		req.Container = c
	}
	if _, err := geography.LookupVintage(req.Vintage); err != nil {
		return nil, err
	}

	if len(raw.ContainerGeometry) > 0 {
		area, err := decodeArea(raw.ContainerGeometry)
		if err != nil {
			return nil, err
		}
		req.ContainerGeometry = area
		req.Container = ContainerArea
		req.Sublevel = true
	}

	loc, fips, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	req.Location, req.FIPS = loc, fips
	if c, ok := loc.(Coordinate); ok {
		lat, lng := c.Lat, c.Lng
		req.Lat, req.Lng = &lat, &lng
	}
	if loc == nil && req.Level != geography.Nation && req.ContainerGeometry == nil {
		return nil, eris.Wrap(ErrMissingLocation, "census: request needs a coordinate, address, zip, state or identifiers")
	}

	if err := req.validateContainer(); err != nil {
		return nil, err
	}
	req.coerceSublevel()
	return req, nil
}

func parseContainer(s string) (geography.Level, error) {
	if s == string(ContainerArea) {
		return ContainerArea, nil
	}
	return geography.ParseLevel(s)
}

// validateContainer requires the container to be broader than the level.
// Places may contain tracts and block groups even though they share a rank
// with tracts.
func (r *Request) validateContainer() error {
	c := r.Container
	if c == "" || c == ContainerArea {
		return nil
	}
	if c.Rank() < r.Level.Rank() {
		return nil
	}
	if c == geography.Place && (r.Level == geography.Tract || r.Level == geography.BlockGroup) {
		return nil
	}
	return eris.Wrapf(ErrInvalidLevel, "census: container %s cannot hold level %s", c, r.Level)
}

// coerceSublevel clears a sublevel flag that has nothing to expand into.
func (r *Request) coerceSublevel() {
	if !r.Sublevel {
		return
	}
	parent := r.Level
	if r.Container != "" {
		if r.Container == ContainerArea {
			return
		}
		parent = r.Container
	}
	if parent.Child() != "" {
		return
	}
	zap.L().Debug("census: clearing sublevel",
		zap.String("level", string(parent)),
		zap.Error(ErrUnsupportedSublevel),
	)
	r.Sublevel = false
}

// decodeArea accepts a GeoJSON or ArcGIS JSON polygon.
func decodeArea(raw json.RawMessage) (geom.T, error) {
	var probe struct {
		Type  string          `json:"type"`
		Rings json.RawMessage `json:"rings"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, eris.Wrap(err, "census: containerGeometry")
	}

	var g geom.T
	switch {
	case probe.Type != "":
		if err := geojson.Unmarshal(raw, &g); err != nil {
			return nil, eris.Wrap(err, "census: containerGeometry geojson")
		}
	case len(probe.Rings) > 0:
		var eg tigerweb.Geometry
		if err := json.Unmarshal(raw, &eg); err != nil {
			return nil, eris.Wrap(err, "census: containerGeometry arcgis json")
		}
		var err error
		if g, err = tigerweb.ToGeom(&eg); err != nil {
			return nil, err
		}
	default:
		return nil, eris.New("census: containerGeometry is neither geojson nor arcgis json")
	}

	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, nil
	}
	return nil, eris.Errorf("census: containerGeometry must be a polygon, got %T", g)
}
