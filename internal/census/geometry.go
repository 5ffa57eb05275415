package census

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/pkg/tigerweb"
)

// VintageSource returns the boundary client for a map service vintage.
// *tigerweb.Pool implements it.
type VintageSource interface {
	Vintage(name string) (tigerweb.Querier, error)
}

// maxGeometrySteps bounds the engine loop: locate, drop or demote, fetch
// container, fetch units.
const maxGeometrySteps = 6

// GeometryEngine fetches boundaries for a request: the unit at a point, or
// every unit of a level inside a container.
type GeometryEngine struct {
	vintages VintageSource
	locate   func(ctx context.Context, req *Request) error
}

// NewGeometryEngine returns an engine that resolves addresses, ZIPs and
// state codes with locate before any point query.
func NewGeometryEngine(vintages VintageSource, locate func(ctx context.Context, req *Request) error) *GeometryEngine {
	return &GeometryEngine{vintages: vintages, locate: locate}
}

// Fetch runs the request to a feature collection. Each step settles one
// precondition: location known, container dropped or demoted, container
// boundary cached. The request is updated in place, so after a sublevel
// query without container req.Level is the level the features are at.
func (e *GeometryEngine) Fetch(ctx context.Context, req *Request) (*FeatureCollection, error) {
	q, err := e.vintages.Vintage(req.Vintage)
	if err != nil {
		return nil, err
	}
	log := logger(ctx).With(zap.String("vintage", req.Vintage))

	for range maxGeometrySteps {
		switch {
		case e.needsLocation(req):
			log.Debug("geometry: locating", zap.String("location", req.Location.Kind()))
			if err := e.locate(ctx, req); err != nil {
				return nil, err
			}

		case req.Container != "" && !req.Sublevel:
			log.Debug("geometry: dropping container without sublevel", zap.String("container", string(req.Container)))
			req.Container = ""
			req.ContainerGeometry = nil

		case req.Container != "" && req.ContainerGeometry == nil:
			if err := e.fetchContainer(ctx, q, req); err != nil {
				return nil, err
			}
			log.Debug("geometry: container cached", zap.String("container", string(req.Container)))

		case req.Container != "":
			rel := tigerweb.Contains
			if req.Container == geography.Place || req.Container == ContainerArea {
				rel = tigerweb.Intersects
			}
			area := req.ContainerGeometry
			req.ContainerGeometry = nil
			feats, err := q.QueryPolygon(ctx, req.Level, area, rel)
			if err != nil {
				return nil, eris.Wrapf(err, "census: %s units in %s", req.Level, req.Container)
			}
			log.Debug("geometry: contained units",
				zap.String("level", string(req.Level)),
				zap.String("container", string(req.Container)),
				zap.Int("features", len(feats)),
			)
			return newFeatureCollection(feats), nil

		case req.Sublevel:
			child := req.Level.Child()
			if child == "" {
				req.Sublevel = false
				continue
			}
			log.Debug("geometry: demoting level", zap.String("from", string(req.Level)), zap.String("to", string(child)))
			req.Container, req.Level = req.Level, child

		default:
			if req.Level == geography.Nation {
				return newFeatureCollection([]*geojson.Feature{nationFeature()}), nil
			}
			feats, err := e.lookup(ctx, q, req, req.Level)
			if err != nil {
				return nil, err
			}
			return newFeatureCollection(feats), nil
		}
	}
	return nil, eris.Errorf("census: geometry did not settle in %d steps", maxGeometrySteps)
}

// needsLocation reports whether a point is still to be derived from an
// address, ZIP or state code and the next step will need it.
func (e *GeometryEngine) needsLocation(req *Request) bool {
	if req.Lat != nil && req.Lng != nil {
		return false
	}
	switch req.Location.(type) {
	case Address, ZIP, StateCode, Coordinate:
	default:
		return false
	}
	if req.Container != "" && req.Sublevel && req.ContainerGeometry != nil {
		return false
	}
	if req.Container == geography.Nation || (req.Container == "" && req.Sublevel && req.Level == geography.Nation) {
		return false
	}
	return !(req.Container == "" && !req.Sublevel && req.Level == geography.Nation)
}

func (e *GeometryEngine) fetchContainer(ctx context.Context, q tigerweb.Querier, req *Request) error {
	switch req.Container {
	case geography.Nation:
		req.ContainerGeometry = geography.USBoundingPolygon()
		return nil
	case ContainerArea:
		return eris.Wrap(ErrMissingLocation, "census: geometry container without containerGeometry")
	}

	feats, err := e.lookup(ctx, q, req, req.Container)
	if err != nil {
		return err
	}
	if len(feats) == 0 || feats[0].Geometry == nil {
		return eris.Wrapf(ErrGeocodeNoMatch, "census: no %s boundary for the location", req.Container)
	}
	req.ContainerGeometry = feats[0].Geometry
	return nil
}

// lookup fetches the level's unit at the request's point, or by its
// identifiers when the request has no point.
func (e *GeometryEngine) lookup(ctx context.Context, q tigerweb.Querier, req *Request, level geography.Level) ([]*geojson.Feature, error) {
	if req.Lat != nil && req.Lng != nil {
		feats, err := q.QueryPoint(ctx, level, geography.Point{Lat: *req.Lat, Lng: *req.Lng})
		if err != nil {
			return nil, eris.Wrapf(err, "census: %s at point", level)
		}
		return feats, nil
	}
	where, err := whereClause(level, req.FIPS)
	if err != nil {
		return nil, err
	}
	feats, err := q.QueryWhere(ctx, level, where)
	if err != nil {
		return nil, eris.Wrapf(err, "census: %s by identifiers", level)
	}
	return feats, nil
}

// whereClause filters a map service layer to one unit by its identifier
// and its ancestors' identifiers.
func whereClause(level geography.Level, fips geography.FIPS) (string, error) {
	id := fips.ID(level)
	if id == "" || !geography.IsNumeric(id) {
		return "", eris.Wrapf(ErrMissingLocation, "census: no %s identifier", level)
	}
	var parts []string
	for _, l := range append([]geography.Level{level}, level.Ancestors()...) {
		if v := fips.ID(l); geography.IsNumeric(v) {
			parts = append(parts, fmt.Sprintf("%s='%s'", l.PropertyKey(), v))
		}
	}
	// Ancestors first reads naturally: STATE='11' AND COUNTY='001'.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " AND "), nil
}

func nationFeature() *geojson.Feature {
	return &geojson.Feature{
		ID:         "us",
		Geometry:   geography.USBoundingPolygon(),
		Properties: map[string]any{"NAME": "United States"},
	}
}
