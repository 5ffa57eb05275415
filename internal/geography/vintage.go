package geography

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnknownVintage is returned for map service names not in Vintages.
var ErrUnknownVintage = eris.New("unknown map service vintage")

// Vintage is one TIGERweb map service release and its layer ids.
type Vintage struct {
	Name    string
	Service string
	Layers  map[Level]int
}

// Vintages are alternative geometry sources. Nation has no layer in any of
// them; callers substitute USBoundingPolygon.
var Vintages = map[string]Vintage{
	"current": {
		Name:    "current",
		Service: "tigerWMS_Current",
		Layers:  map[Level]int{State: 84, County: 86, Tract: 8, BlockGroup: 10, Place: 28},
	},
	"acs2014": {
		Name:    "acs2014",
		Service: "tigerWMS_ACS2014",
		Layers:  map[Level]int{State: 82, County: 84, Tract: 8, BlockGroup: 10, Place: 26},
	},
	"acs2013": {
		Name:    "acs2013",
		Service: "tigerWMS_ACS2013",
		Layers:  map[Level]int{State: 82, County: 84, Tract: 8, BlockGroup: 10, Place: 26},
	},
	"census2010": {
		Name:    "census2010",
		Service: "tigerWMS_Census2010",
		Layers:  map[Level]int{State: 98, County: 100, Tract: 14, BlockGroup: 16, Place: 34},
	},
}

// DefaultVintage is used when a request names no map service.
const DefaultVintage = "current"

// ZCTALayer is the ZIP code tabulation area layer of tigerWMS_Current.
const ZCTALayer = 2

// LookupVintage returns the named vintage. An empty name means "current".
func LookupVintage(name string) (Vintage, error) {
	if name == "" {
		name = DefaultVintage
	}
	v, ok := Vintages[name]
	if !ok {
		return Vintage{}, eris.Wrapf(ErrUnknownVintage, "geography: %q (known: %s)", name, strings.Join(VintageNames(), ", "))
	}
	return v, nil
}

// VintageNames returns the known vintage names, sorted.
func VintageNames() []string {
	names := make([]string, 0, len(Vintages))
	for n := range Vintages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Layer returns the layer id for l.
func (v Vintage) Layer(l Level) (int, bool) {
	id, ok := v.Layers[l]
	return id, ok
}

// QueryURL returns the MapServer query endpoint for a layer under base,
// e.g. https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb.
func (v Vintage) QueryURL(base string, layer int) string {
	return fmt.Sprintf("%s/%s/MapServer/%d/query", strings.TrimRight(base, "/"), v.Service, layer)
}
