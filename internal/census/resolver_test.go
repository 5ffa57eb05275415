package census

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/pkg/censusapi"
	"github.com/quietcreep/citysdk/pkg/geocode"
	"github.com/quietcreep/citysdk/pkg/tigerweb"
)

type fixture struct {
	geocoder *mockGeocoder
	stats    *mockStats
	vintages *mockVintages
	querier  *mockQuerier
	resolver *Resolver
}

func newFixture() *fixture {
	f := &fixture{
		geocoder: new(mockGeocoder),
		stats:    new(mockStats),
		vintages: new(mockVintages),
		querier:  new(mockQuerier),
	}
	f.vintages.On("Vintage", mock.Anything).Return(f.querier, nil).Maybe()
	f.resolver = NewResolver(f.geocoder, f.stats, f.vintages, nil, Options{Defaults: testDefaults, SupplementalConcurrency: 2})
	return f
}

var dcBlockGroup = geography.FIPS{State: "11", County: "001", Tract: "004701", BlockGroup: "2"}

func TestResolve_EndToEndBlockGroup(t *testing.T) {
	f := newFixture()
	f.geocoder.On("Coordinates", mock.Anything, 38.9047, -77.0164).
		Return(&geocode.Geographies{FIPS: dcBlockGroup}, nil)
	f.stats.On("Query", mock.Anything, censusapi.Query{
		Year:      2014,
		Dataset:   "acs5",
		Variables: []string{"B19013_001E"},
		Qualifier: "for=block+group:2&in=tract:004701+county:001+state:11",
	}).Return(table(
		[]string{"NAME", "B19013_001E", "state", "county", "tract", "block group"},
		[]string{"Block Group 2", "33210", "11", "001", "004701", "2"},
	), nil)

	raw := decodeRaw(t, `{"lat": 38.9047, "lng": -77.0164, "level": "blockGroup", "variables": ["income"]}`)
	req, err := f.resolver.NewRequest(raw)
	require.NoError(t, err)

	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "11", out.State)
	assert.Equal(t, "001", out.County)
	assert.Equal(t, "004701", out.Tract)
	assert.Equal(t, "2", out.BlockGroup)
	assert.True(t, out.Geocoded)
	require.Len(t, out.Data, 1)
	assert.Equal(t, 33210.0, out.Data[0]["income"])
	f.geocoder.AssertExpectations(t)
	f.stats.AssertExpectations(t)
}

func TestResolve_Idempotent(t *testing.T) {
	f := newFixture()
	req := &Request{
		Year:      2014,
		API:       "acs5",
		Level:     geography.BlockGroup,
		Variables: []string{"income"},
		Location:  Coordinate{Lat: 38.9047, Lng: -77.0164},
		Lat:       ptr(38.9047),
		Lng:       ptr(-77.0164),
		FIPS:      dcBlockGroup,
		Geocoded:  true,
		Data:      []Record{{"income": 33210.0}},
	}

	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, req, out)
	assert.Equal(t, []Record{{"income": 33210.0}}, out.Data)
	f.geocoder.AssertNotCalled(t, "Coordinates", mock.Anything, mock.Anything, mock.Anything)
	f.stats.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestResolve_ZipUsesCentroid(t *testing.T) {
	f := newFixture()
	f.geocoder.On("ZipCentroid", mock.Anything, "20001").
		Return(&geocode.Centroid{Zip: "20001", Lat: ptr(38.9109), Lng: ptr(-77.0163)}, nil)
	f.geocoder.On("Coordinates", mock.Anything, 38.9109, -77.0163).
		Return(&geocode.Geographies{FIPS: dcBlockGroup}, nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"zip": "20001"}`))
	require.NoError(t, err)
	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, out.Lat)
	assert.Equal(t, 38.9109, *out.Lat)
	assert.Equal(t, -77.0163, *out.Lng)
	assert.Nil(t, out.Data)
	f.geocoder.AssertExpectations(t)
}

func TestResolve_ZipNoMatch(t *testing.T) {
	f := newFixture()
	f.geocoder.On("ZipCentroid", mock.Anything, "00000").Return(&geocode.Centroid{Zip: "00000"}, nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"zip": "00000"}`))
	require.NoError(t, err)
	_, err = f.resolver.Resolve(context.Background(), req)
	assert.ErrorIs(t, err, ErrGeocodeNoMatch)
}

func TestResolve_AddressAttachesMatch(t *testing.T) {
	f := newFixture()
	match := geocode.AddressMatch{MatchedAddress: "1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500", Lat: 38.8987, Lng: -77.0352, Source: "census"}
	f.geocoder.On("Address", mock.Anything, geocode.AddressInput{Street: "1600 Pennsylvania Ave NW", City: "Washington", State: "DC"}).
		Return([]geocode.AddressMatch{match, {MatchedAddress: "other"}}, nil)
	f.geocoder.On("Coordinates", mock.Anything, 38.8987, -77.0352).
		Return(&geocode.Geographies{FIPS: geography.FIPS{State: "11", County: "001", Tract: "006202", BlockGroup: "1"}}, nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"address": {"street": "1600 Pennsylvania Ave NW", "city": "Washington", "state": "DC"}}`))
	require.NoError(t, err)
	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, out.AddressMatch)
	assert.Equal(t, match, *out.AddressMatch)
	assert.Equal(t, "006202", out.Tract)
}

func TestResolve_NationDefaultsToSeat(t *testing.T) {
	f := newFixture()
	dc, _ := geography.Capital(geography.NationSeat)
	f.geocoder.On("Coordinates", mock.Anything, dc.Lat, dc.Lng).
		Return(&geocode.Geographies{FIPS: dcBlockGroup}, nil)
	f.stats.On("Query", mock.Anything, mock.MatchedBy(func(q censusapi.Query) bool {
		return q.Qualifier == "for=us:1"
	})).Return(table([]string{"NAME", "B01003_001E", "us"}, []string{"United States", "318857056", "1"}), nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"level": "us", "variables": ["population"]}`))
	require.NoError(t, err)
	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StateCode{Code: "DC"}, out.Location)
	require.Len(t, out.Data, 1)
	assert.Equal(t, 318857056.0, out.Data[0]["population"])
}

func TestResolve_IdentifiersSkipGeocoding(t *testing.T) {
	f := newFixture()
	f.stats.On("Query", mock.Anything, mock.MatchedBy(func(q censusapi.Query) bool {
		return q.Qualifier == "for=county:001&in=state:11"
	})).Return(table([]string{"NAME", "B19013_001E", "state", "county"}, []string{"District of Columbia", "69235", "11", "001"}), nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"level": "county", "state": "11", "county": "001", "variables": ["income"]}`))
	require.NoError(t, err)
	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Equal(t, 69235.0, out.Data[0]["income"])
	f.geocoder.AssertNotCalled(t, "Coordinates", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_AreaOnlyReturnsEmptyData(t *testing.T) {
	f := newFixture()
	req, err := f.resolver.NewRequest(decodeRaw(t, `{"level": "tract", "variables": ["income"], "containerGeometry": {"type": "Polygon", "coordinates": [[[-77.1,38.8],[-77.0,38.8],[-77.0,38.9],[-77.1,38.9],[-77.1,38.8]]]}}`))
	require.NoError(t, err)

	out, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, out.Data)
	assert.Empty(t, out.Data)
	f.stats.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestResolve_InvalidLevel(t *testing.T) {
	f := newFixture()
	_, err := f.resolver.Resolve(context.Background(), &Request{Level: "zip", Location: Identifiers{}})
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestResolve_MissingLocation(t *testing.T) {
	f := newFixture()
	_, err := f.resolver.Resolve(context.Background(), &Request{Level: geography.Tract})
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestResolve_UpstreamFailure(t *testing.T) {
	f := newFixture()
	f.geocoder.On("Coordinates", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, ErrUpstreamFailure)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"lat": 38.9, "lng": -77.0}`))
	require.NoError(t, err)
	_, err = f.resolver.Resolve(context.Background(), req)
	assert.ErrorIs(t, err, ErrUpstreamFailure)
}

func TestResolveGeometry_AreaWithSupplementals(t *testing.T) {
	f := newFixture()
	tracts := []*geojson.Feature{
		feature(map[string]any{"STATE": "11", "COUNTY": "001", "TRACT": "004701"}),
		feature(map[string]any{"STATE": "11", "COUNTY": "001", "TRACT": "004702"}),
	}
	f.querier.On("QueryPolygon", mock.Anything, geography.Tract, mock.Anything, tigerweb.Intersects).Return(tracts, nil)
	for tract, income := range map[string]string{"004701": "33210", "004702": "41000"} {
		f.stats.On("Query", mock.Anything, censusapi.Query{
			Year:      2014,
			Dataset:   "acs5",
			Variables: []string{"B19013_001E"},
			Qualifier: "for=tract:" + tract + "&in=county:001+state:11",
		}).Return(table(
			[]string{"NAME", "B19013_001E", "state", "county", "tract"},
			[]string{"Census Tract", income, "11", "001", tract},
		), nil).Once()
	}

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"level": "tract", "variables": ["income"], "containerGeometry": {"type": "Polygon", "coordinates": [[[-77.1,38.8],[-77.0,38.8],[-77.0,38.9],[-77.1,38.9],[-77.1,38.8]]]}}`))
	require.NoError(t, err)

	fc, err := f.resolver.ResolveGeometry(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 33210.0, fc.Features[0].Properties["income"])
	assert.Equal(t, 41000.0, fc.Features[1].Properties["income"])
	assert.Equal(t, 74210.0, fc.Totals["income"])
	f.stats.AssertExpectations(t)
}

func TestResolveGeometry_SupplementalWithoutRows(t *testing.T) {
	f := newFixture()
	tracts := []*geojson.Feature{
		feature(map[string]any{"STATE": "11", "COUNTY": "001", "TRACT": "004701"}),
		feature(map[string]any{"STATE": "11", "COUNTY": "001", "TRACT": "010100"}),
	}
	f.querier.On("QueryPolygon", mock.Anything, geography.Tract, mock.Anything, tigerweb.Intersects).Return(tracts, nil)
	f.stats.On("Query", mock.Anything, mock.MatchedBy(func(q censusapi.Query) bool {
		return q.Qualifier == "for=tract:004701&in=county:001+state:11"
	})).Return(table(
		[]string{"NAME", "B19013_001E", "state", "county", "tract"},
		[]string{"Census Tract 47.01", "33210", "11", "001", "004701"},
	), nil).Once()
	// A tract drawn after the statistics year has no row.
	f.stats.On("Query", mock.Anything, mock.MatchedBy(func(q censusapi.Query) bool {
		return q.Qualifier == "for=tract:010100&in=county:001+state:11"
	})).Return(&censusapi.Table{}, nil).Once()

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"level": "tract", "variables": ["income"], "containerGeometry": {"type": "Polygon", "coordinates": [[[-77.1,38.8],[-77.0,38.8],[-77.0,38.9],[-77.1,38.9],[-77.1,38.8]]]}}`))
	require.NoError(t, err)

	fc, err := f.resolver.ResolveGeometry(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 33210.0, fc.Features[0].Properties["income"])
	assert.NotContains(t, fc.Features[1].Properties, "income")
	assert.Equal(t, 33210.0, fc.Totals["income"])
	f.stats.AssertExpectations(t)
}

func TestResolveGeometry_SublevelMergesRows(t *testing.T) {
	f := newFixture()
	f.geocoder.On("Coordinates", mock.Anything, 38.9047, -77.0164).
		Return(&geocode.Geographies{FIPS: dcBlockGroup}, nil)
	f.stats.On("Query", mock.Anything, mock.MatchedBy(func(q censusapi.Query) bool {
		return q.Qualifier == "for=block+group:*&in=tract:004701+county:001+state:11"
	})).Return(table(
		[]string{"NAME", "B19013_001E", "state", "county", "tract", "block group"},
		[]string{"Block Group 1", "41250", "11", "001", "004701", "1"},
		[]string{"Block Group 2", "33210", "11", "001", "004701", "2"},
	), nil).Once()

	tract := square(-77.02, 38.90, 0.01)
	f.querier.On("QueryPoint", mock.Anything, geography.Tract, geography.Point{Lat: 38.9047, Lng: -77.0164}).
		Return([]*geojson.Feature{{Geometry: tract}}, nil)
	f.querier.On("QueryPolygon", mock.Anything, geography.BlockGroup, mock.Anything, tigerweb.Contains).
		Return([]*geojson.Feature{blockGroupFeature("1"), blockGroupFeature("2")}, nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"lat": 38.9047, "lng": -77.0164, "level": "tract", "sublevel": true, "variables": ["income"]}`))
	require.NoError(t, err)

	fc, err := f.resolver.ResolveGeometry(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 41250.0, fc.Features[0].Properties["income"])
	assert.Equal(t, 33210.0, fc.Features[1].Properties["income"])
	assert.Equal(t, 74460.0, fc.Totals["income"])
	f.stats.AssertExpectations(t)
}

func TestResolveGeometry_NoVariablesSkipsStatistics(t *testing.T) {
	f := newFixture()
	f.querier.On("QueryPoint", mock.Anything, geography.County, mock.Anything).
		Return([]*geojson.Feature{feature(map[string]any{"STATE": "11", "COUNTY": "001"})}, nil)

	req, err := f.resolver.NewRequest(decodeRaw(t, `{"lat": 38.9, "lng": -77.0, "level": "county"}`))
	require.NoError(t, err)
	fc, err := f.resolver.ResolveGeometry(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
	assert.Empty(t, fc.Totals)
	f.stats.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	f.geocoder.AssertNotCalled(t, "Coordinates", mock.Anything, mock.Anything, mock.Anything)
}
