package census

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/pkg/geocode"
)

// Normalize picks the request's location variant and collects any FIPS
// identifiers it carries. It never touches the network.
//
// Coordinates may be spelled lat/lng, latitude/longitude or y/x. A
// non-numeric state is a postal code: it locates the request at the state
// capital unless a coordinate is also present, in which case it is
// dropped. A numeric state is a FIPS identifier; lower identifiers are
// only usable under one.
func Normalize(raw RawRequest) (Location, geography.FIPS, error) {
	var fips geography.FIPS
	fips.Set(geography.County, string(raw.County))
	fips.Set(geography.Tract, string(raw.Tract))
	fips.Set(geography.BlockGroup, string(raw.BlockGroup))
	fips.Set(geography.Place, string(raw.Place))

	lat := firstFloat(raw.Lat, raw.Latitude, raw.Y)
	lng := firstFloat(raw.Lng, raw.Longitude, raw.X)
	hasCoord := lat != nil && lng != nil

	var stateCode string
	if s := strings.TrimSpace(string(raw.State)); s != "" {
		if geography.IsNumeric(s) {
			fips.Set(geography.State, s)
		} else if !hasCoord {
			stateCode = cases.Upper(language.Und).String(s)
		}
	}

	switch {
	case hasCoord:
		return Coordinate{Lat: *lat, Lng: *lng}, fips, nil
	case strings.TrimSpace(string(raw.Zip)) != "":
		return ZIP{Code: strings.TrimSpace(string(raw.Zip))}, fips, nil
	case raw.Address != nil:
		if strings.TrimSpace(raw.Address.Street) == "" {
			return nil, fips, eris.Wrap(ErrMissingLocation, "census: address needs a street")
		}
		return Address{AddressInput: geocode.AddressInput{
			Street: raw.Address.Street,
			City:   raw.Address.City,
			State:  raw.Address.State,
			Zip:    raw.Address.Zip,
		}}, fips, nil
	case stateCode != "":
		if _, ok := geography.Capital(stateCode); !ok {
			return nil, fips, eris.Wrapf(ErrMissingLocation, "census: unknown state code %q", stateCode)
		}
		return StateCode{Code: stateCode}, fips, nil
	case !fips.Empty():
		if fips.State == "" {
			return nil, fips, eris.Wrap(ErrMissingLocation, "census: identifiers need a state")
		}
		return Identifiers{}, fips, nil
	}
	return nil, fips, nil
}

func firstFloat(vals ...*FlexFloat) *float64 {
	for _, v := range vals {
		if v != nil {
			f := float64(*v)
			return &f
		}
	}
	return nil
}
