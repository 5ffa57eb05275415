package census

import (
	"github.com/rotisserie/eris"

	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/pkg/geocode"
)

var (
	// ErrInvalidLevel is returned for a level or container outside the
	// hierarchy.
	ErrInvalidLevel = geography.ErrInvalidLevel

	// ErrMissingLocation is returned when a request carries nothing to
	// resolve: no coordinate, address, ZIP, state or identifiers.
	ErrMissingLocation = eris.New("census: missing location")

	// ErrGeocodeNoMatch is returned when an address, coordinate or ZIP has
	// no geocoder match.
	ErrGeocodeNoMatch = geocode.ErrNoMatch

	// ErrAmbiguousReconciliation marks features that matched more than one
	// statistics record. It is reported, never returned.
	ErrAmbiguousReconciliation = eris.New("census: ambiguous reconciliation")

	// ErrUnsupportedSublevel marks a sublevel flag on a level with nothing
	// beneath it. The flag is cleared; the error is only logged.
	ErrUnsupportedSublevel = eris.New("census: sublevel unsupported")

	// ErrUpstreamFailure matches any failed or malformed upstream response.
	ErrUpstreamFailure = fetcher.ErrUpstream
)
