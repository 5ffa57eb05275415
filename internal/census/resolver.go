package census

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/internal/metrics"
	"github.com/quietcreep/citysdk/internal/variables"
	"github.com/quietcreep/citysdk/pkg/geocode"
)

// Options configure a Resolver.
type Options struct {
	Defaults                Defaults
	SupplementalConcurrency int
	Metrics                 *metrics.Metrics
}

// Resolver drives a request from whatever the caller supplied to
// statistics and boundaries.
type Resolver struct {
	geocoder   geocode.Resolver
	stats      *StatisticsBuilder
	geometry   *GeometryEngine
	reconciler *Reconciler
	catalog    *variables.Catalog
	defaults   Defaults
	metrics    *metrics.Metrics
}

// NewResolver wires the collaborators. A nil catalog uses the embedded
// alias catalog.
func NewResolver(gc geocode.Resolver, stats StatisticsSource, vintages VintageSource, catalog *variables.Catalog, opts Options) *Resolver {
	if catalog == nil {
		catalog = variables.Default()
	}
	d := opts.Defaults
	if d.Year == 0 {
		d.Year = catalog.LatestYear()
	}
	if d.API == "" {
		d.API = "acs5"
	}
	if d.Level == "" {
		d.Level = geography.BlockGroup
	}
	if d.Vintage == "" {
		d.Vintage = geography.DefaultVintage
	}

	r := &Resolver{
		geocoder: gc,
		stats:    NewStatisticsBuilder(stats, catalog),
		catalog:  catalog,
		defaults: d,
		metrics:  opts.Metrics,
	}
	r.geometry = NewGeometryEngine(vintages, r.locate)
	r.reconciler = NewReconciler(r.Resolve, opts.SupplementalConcurrency, opts.Metrics)
	return r
}

// Defaults returns the values applied to fields a request leaves empty.
func (r *Resolver) Defaults() Defaults {
	return r.defaults
}

// Catalog returns the variable alias catalog.
func (r *Resolver) Catalog() *variables.Catalog {
	return r.catalog
}

// NewRequest validates raw against the resolver's defaults.
func (r *Resolver) NewRequest(raw RawRequest) (*Request, error) {
	return NewRequest(raw, r.defaults)
}

type resolveState int

const (
	stateStart resolveState = iota
	stateNeedsLocation
	stateNeedsGeocode
	stateHasFIPS
	stateHasStatistics
	stateAreaOnly
	stateDone
)

var stateNames = [...]string{"start", "needs_location", "needs_geocode", "has_fips", "has_statistics", "area_only", "done"}

func (s resolveState) String() string {
	return stateNames[s]
}

// maxResolveSteps covers the longest path: locate, geocode, statistics.
const maxResolveSteps = 6

// Resolve fills in req until it carries statistics, or until nothing more
// can be resolved. A request that already carries data is returned as is.
func (r *Resolver) Resolve(ctx context.Context, req *Request) (out *Request, err error) {
	ctx, res, top := withResolution(ctx)
	if top {
		start := time.Now()
		defer func() { r.metrics.ObserveResolution("request", err, time.Since(start)) }()
	}
	if err := r.prepare(req); err != nil {
		return nil, err
	}
	log := logger(ctx).With(zap.String("level", string(req.Level)))

	prev := stateStart
	for range maxResolveSteps {
		state := classify(req)
		log.Debug("census: resolve step",
			zap.Stringer("from", prev),
			zap.Stringer("to", state),
			zap.Int64("supplemental_in_flight", res.inFlight.Load()),
		)
		prev = state

		switch state {
		case stateHasStatistics, stateDone:
			return req, nil

		case stateNeedsLocation:
			if err := r.locate(ctx, req); err != nil {
				return nil, err
			}

		case stateNeedsGeocode:
			geos, err := r.geocoder.Coordinates(ctx, *req.Lat, *req.Lng)
			if err != nil {
				return nil, eris.Wrap(err, "census: geocode coordinate")
			}
			req.FIPS = mergeFIPS(req.FIPS, geos.FIPS)
			req.Geocoded = true

		case stateHasFIPS:
			if len(req.Variables) == 0 {
				return req, nil
			}
			data, err := r.stats.Fetch(ctx, req)
			if err != nil {
				return nil, err
			}
			req.Data = data

		case stateAreaOnly:
			req.Data = []Record{}
			return req, nil

		default:
			return nil, eris.Wrap(ErrMissingLocation, "census: nothing to resolve")
		}
	}
	return nil, eris.Errorf("census: resolution did not settle in %d steps", maxResolveSteps)
}

// ResolveGeometry returns the boundaries for req with statistics merged
// into their properties. Statistics are resolved first when variables are
// requested and req carries no data yet.
func (r *Resolver) ResolveGeometry(ctx context.Context, req *Request) (fc *FeatureCollection, err error) {
	ctx, _, top := withResolution(ctx)
	if top {
		start := time.Now()
		defer func() { r.metrics.ObserveResolution("geo", err, time.Since(start)) }()
	}
	if err := r.prepare(req); err != nil {
		return nil, err
	}

	if len(req.Variables) > 0 && req.Data == nil {
		if _, err := r.Resolve(ctx, req); err != nil {
			return nil, err
		}
	}
	fc, err = r.geometry.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.reconciler.Reconcile(ctx, req, fc); err != nil {
		return nil, err
	}
	logger(ctx).Debug("census: geometry resolved",
		zap.String("level", string(req.Level)),
		zap.Int("features", len(fc.Features)),
		zap.Int("ambiguous", len(fc.Ambiguous)),
	)
	return fc, nil
}

// prepare fills defaults and rejects levels outside the hierarchy.
func (r *Resolver) prepare(req *Request) error {
	if req == nil {
		return eris.Wrap(ErrMissingLocation, "census: nil request")
	}
	if req.Year == 0 {
		req.Year = r.defaults.Year
	}
	if req.API == "" {
		req.API = r.defaults.API
	}
	if req.Level == "" {
		req.Level = r.defaults.Level
	}
	if req.Vintage == "" {
		req.Vintage = r.defaults.Vintage
	}
	if !req.Level.Valid() {
		return eris.Wrapf(ErrInvalidLevel, "census: %q", req.Level)
	}
	if err := req.validateContainer(); err != nil {
		return err
	}
	req.coerceSublevel()
	return nil
}

func classify(req *Request) resolveState {
	switch {
	case req.Data != nil:
		return stateHasStatistics
	case req.Container == ContainerArea:
		return stateAreaOnly
	case req.Lat == nil && needsPoint(req):
		return stateNeedsLocation
	case req.Lat != nil && !req.Geocoded:
		return stateNeedsGeocode
	case req.Geocoded || req.FIPS.Complete():
		return stateHasFIPS
	}
	if _, ok := req.Location.(Identifiers); ok {
		return stateHasFIPS
	}
	return stateStart
}

func needsPoint(req *Request) bool {
	switch req.Location.(type) {
	case Address, ZIP, StateCode, Coordinate:
		return true
	case nil:
		return req.Level == geography.Nation
	}
	return false
}

// locate sets req's point from its location. A nation request without a
// location is located at the seat of government.
func (r *Resolver) locate(ctx context.Context, req *Request) error {
	if req.Location == nil && req.Level == geography.Nation {
		req.Location = StateCode{Code: geography.NationSeat}
	}

	switch loc := req.Location.(type) {
	case Coordinate:
		lat, lng := loc.Lat, loc.Lng
		req.Lat, req.Lng = &lat, &lng

	case ZIP:
		c, err := r.geocoder.ZipCentroid(ctx, loc.Code)
		if err != nil {
			return eris.Wrapf(err, "census: zip %s", loc.Code)
		}
		if !c.Matched() {
			return eris.Wrapf(ErrGeocodeNoMatch, "census: zip %s has no tabulation area", loc.Code)
		}
		lat, lng := *c.Lat, *c.Lng
		req.Lat, req.Lng = &lat, &lng

	case Address:
		matches, err := r.geocoder.Address(ctx, loc.AddressInput)
		if err != nil {
			return eris.Wrap(err, "census: geocode address")
		}
		if len(matches) == 0 {
			return eris.Wrap(ErrGeocodeNoMatch, "census: geocode address")
		}
		m := matches[0]
		req.AddressMatch = &m
		lat, lng := m.Lat, m.Lng
		req.Lat, req.Lng = &lat, &lng

	case StateCode:
		p, ok := geography.Capital(loc.Code)
		if !ok {
			return eris.Wrapf(ErrMissingLocation, "census: unknown state code %q", loc.Code)
		}
		lat, lng := p.Lat, p.Lng
		req.Lat, req.Lng = &lat, &lng

	default:
		return eris.Wrap(ErrMissingLocation, "census: no location to locate")
	}

	logger(ctx).Debug("census: located",
		zap.String("location", req.Location.Kind()),
		zap.Float64("lat", *req.Lat),
		zap.Float64("lng", *req.Lng),
	)
	return nil
}

// mergeFIPS takes the geocoder's identifiers, keeping the caller's where
// the geocoder has none.
func mergeFIPS(caller, geocoded geography.FIPS) geography.FIPS {
	out := geocoded
	for _, l := range identifierColumns {
		if out.ID(l) == "" {
			out.Set(l, caller.ID(l))
		}
	}
	if out.PlaceName == "" {
		out.PlaceName = caller.PlaceName
	}
	return out
}
