package geocode

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
)

type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// addressGoogle returns the first Google match, or nil when there is none.
// Google matches carry no FIPS; the caller geocodes the coordinate.
func (g *geocoder) addressGoogle(ctx context.Context, addr AddressInput) (*AddressMatch, error) {
	q := url.Values{
		"address": {formatOneLine(addr)},
		"key":     {g.googleKey},
	}
	var resp googleGeocodeResponse
	if err := g.http.GetJSON(ctx, googleGeocodeURL, q, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: google")
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, eris.Errorf("geocode: google returned status %s", resp.Status)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	r := resp.Results[0]
	return &AddressMatch{
		MatchedAddress: r.FormattedAddress,
		Lat:            r.Geometry.Location.Lat,
		Lng:            r.Geometry.Location.Lng,
		Source:         "google",
	}, nil
}
