// Package geocode turns coordinates, street addresses and ZIP codes into
// Census geographic identifiers via the Census Geocoder and TIGERweb, with
// Google as an optional address fallback.
package geocode

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/geography"
)

// ErrNoMatch is returned when the geocoder has no candidate for the input.
var ErrNoMatch = eris.New("geocode: no match")

// Resolver resolves locations to Census geographies.
type Resolver interface {
	// Coordinates returns the identifiers of every level containing the point.
	Coordinates(ctx context.Context, lat, lng float64) (*Geographies, error)

	// Address returns candidate matches for a street address, best first.
	// It never returns an empty slice without ErrNoMatch.
	Address(ctx context.Context, addr AddressInput) ([]AddressMatch, error)

	// ZipCentroid returns the ZCTA centroid. Lat and Lng are nil when the
	// ZIP has no tabulation area.
	ZipCentroid(ctx context.Context, zip string) (*Centroid, error)
}

// AddressInput is a street address to geocode.
type AddressInput struct {
	Street string `json:"street"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// AddressMatch is one geocoder candidate.
type AddressMatch struct {
	MatchedAddress string          `json:"matchedAddress"`
	Lat            float64         `json:"lat"`
	Lng            float64         `json:"lng"`
	Source         string          `json:"source"`
	FIPS           *geography.FIPS `json:"fips,omitempty"`
}

// Geographies is the geocoder's answer for a point.
type Geographies struct {
	geography.FIPS
	// Layers holds the raw layer attributes keyed by layer name.
	Layers map[string][]map[string]any `json:"-"`
}

// Centroid is a ZCTA internal point.
type Centroid struct {
	Zip string   `json:"zip"`
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Matched reports whether both coordinates are present.
func (c *Centroid) Matched() bool {
	return c != nil && c.Lat != nil && c.Lng != nil
}

// JSONGetter is the transport the geocoder needs. *fetcher.Client
// implements it.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, query url.Values, v any) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables the Google Geocoding API as an address fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithFetcher sets the transport used for every upstream call. Rate
// limiting is the transport's; fetcher.Client limits per host.
func WithFetcher(f JSONGetter) Option {
	return func(g *geocoder) {
		g.http = f
	}
}

// WithBaseURLs overrides the Census Geocoder and TIGERweb roots. Empty
// values keep the defaults.
func WithBaseURLs(geocoderBase, tigerwebBase string) Option {
	return func(g *geocoder) {
		if geocoderBase != "" {
			g.geocoderBase = geocoderBase
		}
		if tigerwebBase != "" {
			g.tigerwebBase = tigerwebBase
		}
	}
}

// WithBenchmark selects the geocoder benchmark and vintage.
func WithBenchmark(benchmark, vintage string) Option {
	return func(g *geocoder) {
		if benchmark != "" {
			g.benchmark = benchmark
		}
		if vintage != "" {
			g.vintage = vintage
		}
	}
}

const (
	defaultGeocoderBase = "https://geocoding.geo.census.gov/geocoder"
	defaultTigerwebBase = "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb"
	googleGeocodeURL    = "https://maps.googleapis.com/maps/api/geocode/json"
)

type geocoder struct {
	http         JSONGetter
	googleKey    string
	geocoderBase string
	tigerwebBase string
	benchmark    string
	vintage      string
}

// NewClient creates a Resolver with the given options.
func NewClient(opts ...Option) Resolver {
	g := &geocoder{
		geocoderBase: defaultGeocoderBase,
		tigerwebBase: defaultTigerwebBase,
		benchmark:    "Public_AR_Current",
		vintage:      "Current_Current",
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.http == nil {
		g.http = fetcher.New(fetcher.Options{})
	}
	return g
}

// Address tries the Census Geocoder, then Google when configured.
func (g *geocoder) Address(ctx context.Context, addr AddressInput) ([]AddressMatch, error) {
	matches, err := g.addressCensus(ctx, addr)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}

	if g.googleKey != "" {
		m, err := g.addressGoogle(ctx, addr)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return []AddressMatch{*m}, nil
		}
	}
	return nil, eris.Wrapf(ErrNoMatch, "geocode: address %q", formatOneLine(addr))
}
