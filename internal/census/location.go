package census

import "github.com/quietcreep/citysdk/pkg/geocode"

// Location is how the caller identified the place to resolve. Exactly one
// variant is carried by a Request.
type Location interface {
	Kind() string
}

// Coordinate is an explicit point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Address is a street address resolved through the geocoder.
type Address struct {
	geocode.AddressInput
}

// ZIP is a five-digit ZIP code resolved to its ZCTA centroid.
type ZIP struct {
	Code string `json:"zip"`
}

// StateCode is a two-letter postal code resolved to the state capital.
type StateCode struct {
	Code string `json:"state"`
}

// Identifiers means the caller supplied FIPS codes directly; no geocoding
// is needed.
type Identifiers struct{}

func (Coordinate) Kind() string  { return "coordinate" }
func (Address) Kind() string     { return "address" }
func (ZIP) Kind() string         { return "zip" }
func (StateCode) Kind() string   { return "state" }
func (Identifiers) Kind() string { return "identifiers" }
