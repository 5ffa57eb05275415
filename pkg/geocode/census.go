package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quietcreep/citysdk/internal/geography"
)

// layers requests tracts, blocks, places, counties and states.
const layers = "8,12,28,86,84"

const placesLayer = "Incorporated Places"

type geographiesResponse struct {
	Result struct {
		Geographies map[string][]map[string]any `json:"geographies"`
	} `json:"result"`
}

type addressResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	MatchedAddress string `json:"matchedAddress"`
	Coordinates    struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	Geographies map[string][]map[string]any `json:"geographies"`
}

func (g *geocoder) params() url.Values {
	return url.Values{
		"benchmark": {g.benchmark},
		"vintage":   {g.vintage},
		"layers":    {layers},
		"format":    {"json"},
	}
}

// Coordinates looks up the geographies containing a point.
func (g *geocoder) Coordinates(ctx context.Context, lat, lng float64) (*Geographies, error) {
	q := g.params()
	q.Set("x", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))

	var resp geographiesResponse
	if err := g.http.GetJSON(ctx, g.geocoderBase+"/geographies/coordinates", q, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: census coordinates")
	}

	fips, ok := fipsFromLayers(resp.Result.Geographies)
	if !ok {
		return nil, eris.Wrapf(ErrNoMatch, "geocode: no census block at %v,%v", lat, lng)
	}
	return &Geographies{FIPS: fips, Layers: resp.Result.Geographies}, nil
}

func (g *geocoder) addressCensus(ctx context.Context, addr AddressInput) ([]AddressMatch, error) {
	q := g.params()
	q.Set("street", addr.Street)
	if addr.City != "" {
		q.Set("city", addr.City)
	}
	if addr.State != "" {
		q.Set("state", addr.State)
	}
	if addr.Zip != "" {
		q.Set("zip", addr.Zip)
	}

	var resp addressResponse
	if err := g.http.GetJSON(ctx, g.geocoderBase+"/geographies/address", q, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: census address")
	}

	out := make([]AddressMatch, 0, len(resp.Result.AddressMatches))
	for _, m := range resp.Result.AddressMatches {
		am := AddressMatch{
			MatchedAddress: m.MatchedAddress,
			Lat:            m.Coordinates.Y,
			Lng:            m.Coordinates.X,
			Source:         "census",
		}
		if fips, ok := fipsFromLayers(m.Geographies); ok {
			am.FIPS = &fips
		}
		out = append(out, am)
	}
	return out, nil
}

// fipsFromLayers reads the block layer (named "<year> Census Blocks") and
// the incorporated places layer.
func fipsFromLayers(geos map[string][]map[string]any) (geography.FIPS, bool) {
	var fips geography.FIPS
	var block map[string]any
	for name, features := range geos {
		if strings.HasSuffix(name, "Census Blocks") && len(features) > 0 {
			block = features[0]
			break
		}
	}
	if block == nil {
		return fips, false
	}

	fips.Set(geography.State, attr(block, "STATE"))
	fips.Set(geography.County, attr(block, "COUNTY"))
	fips.Set(geography.Tract, attr(block, "TRACT"))
	fips.Set(geography.BlockGroup, attr(block, "BLKGRP"))

	if places := geos[placesLayer]; len(places) > 0 {
		fips.Place = attr(places[0], "PLACE")
		fips.PlaceName = attr(places[0], "NAME")
	}
	return fips, true
}

// attr returns an attribute as a string whether it arrived as a JSON string
// or number.
func attr(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func formatOneLine(addr AddressInput) string {
	parts := []string{addr.Street}
	if addr.City != "" {
		parts = append(parts, addr.City)
	}
	if addr.State != "" || addr.Zip != "" {
		parts = append(parts, strings.TrimSpace(addr.State+" "+addr.Zip))
	}
	return strings.Join(parts, ", ")
}
