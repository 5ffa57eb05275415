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

type zctaResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"features"`
}

// ZipCentroid queries the ZCTA layer for a ZIP's internal point.
func (g *geocoder) ZipCentroid(ctx context.Context, zip string) (*Centroid, error) {
	zip = strings.TrimSpace(zip)
	if !geography.IsNumeric(zip) || len(zip) != 5 {
		return nil, eris.Errorf("geocode: invalid zip %q", zip)
	}

	v, err := geography.LookupVintage("current")
	if err != nil {
		return nil, err
	}
	q := url.Values{
		"where":          {fmt.Sprintf("ZCTA5='%s'", zip)},
		"outFields":      {"CENTLAT,CENTLON"},
		"returnGeometry": {"false"},
		"f":              {"json"},
	}

	var resp zctaResponse
	if err := g.http.GetJSON(ctx, v.QueryURL(g.tigerwebBase, geography.ZCTALayer), q, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: zcta centroid")
	}

	c := &Centroid{Zip: zip}
	if len(resp.Features) == 0 {
		return c, nil
	}
	attrs := resp.Features[0].Attributes
	lat, latOK := parseCoord(attrs["CENTLAT"])
	lng, lngOK := parseCoord(attrs["CENTLON"])
	if latOK && lngOK {
		c.Lat, c.Lng = &lat, &lng
	}
	return c, nil
}

// parseCoord accepts TIGERweb's signed string coordinates ("+38.9") as well
// as plain numbers.
func parseCoord(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
