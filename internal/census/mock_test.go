package census

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/pkg/censusapi"
	"github.com/quietcreep/citysdk/pkg/geocode"
	"github.com/quietcreep/citysdk/pkg/tigerweb"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Coordinates(ctx context.Context, lat, lng float64) (*geocode.Geographies, error) {
	args := m.Called(ctx, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Geographies), args.Error(1)
}

func (m *mockGeocoder) Address(ctx context.Context, addr geocode.AddressInput) ([]geocode.AddressMatch, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geocode.AddressMatch), args.Error(1)
}

func (m *mockGeocoder) ZipCentroid(ctx context.Context, zip string) (*geocode.Centroid, error) {
	args := m.Called(ctx, zip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Centroid), args.Error(1)
}

// --- Statistics Mock ---

type mockStats struct {
	mock.Mock
}

func (m *mockStats) Query(ctx context.Context, q censusapi.Query) (*censusapi.Table, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*censusapi.Table), args.Error(1)
}

// --- Map Service Mocks ---

type mockVintages struct {
	mock.Mock
}

func (m *mockVintages) Vintage(name string) (tigerweb.Querier, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tigerweb.Querier), args.Error(1)
}

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) QueryPoint(ctx context.Context, level geography.Level, pt geography.Point) ([]*geojson.Feature, error) {
	args := m.Called(ctx, level, pt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*geojson.Feature), args.Error(1)
}

func (m *mockQuerier) QueryPolygon(ctx context.Context, level geography.Level, area geom.T, rel tigerweb.SpatialRel) ([]*geojson.Feature, error) {
	args := m.Called(ctx, level, area, rel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*geojson.Feature), args.Error(1)
}

func (m *mockQuerier) QueryWhere(ctx context.Context, level geography.Level, where string) ([]*geojson.Feature, error) {
	args := m.Called(ctx, level, where)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*geojson.Feature), args.Error(1)
}

// --- helpers ---

func square(x, y, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x, y, x, y + size, x + size, y + size, x + size, y, x, y,
	}, []int{10}).SetSRID(4326)
}

func feature(props map[string]any) *geojson.Feature {
	return &geojson.Feature{Geometry: square(-77.1, 38.8, 0.1), Properties: props}
}

func table(header []string, rows ...[]string) *censusapi.Table {
	return &censusapi.Table{Header: header, Rows: rows}
}

func ptr(f float64) *float64 { return &f }
