package geography

import (
	"github.com/twpayne/go-geom"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NationSeat is the state code a nation-level request without a location
// falls back to.
const NationSeat = "DC"

// capitals maps USPS state codes to their capital's coordinate.
var capitals = map[string]Point{
	"AL": {32.3617, -86.2792},
	"AK": {58.3, -134.4167},
	"AZ": {33.45, -112.0667},
	"AR": {34.6361, -92.3311},
	"CA": {38.5766, -121.4934},
	"CO": {39.7391, -104.9849},
	"CT": {41.7641, -72.6828},
	"DE": {39.1619, -75.5267},
	"DC": {38.9047, -77.0164},
	"FL": {30.4381, -84.2816},
	"GA": {33.7493, -84.3883},
	"HI": {21.3073, -157.8573},
	"ID": {43.6177, -116.1996},
	"IL": {39.7983, -89.6544},
	"IN": {39.7686, -86.1625},
	"IA": {41.5912, -93.6039},
	"KS": {39.0481, -95.6781},
	"KY": {38.1867, -84.8753},
	"LA": {30.4571, -91.1874},
	"ME": {44.3235, -69.7653},
	"MD": {38.9786, -76.4911},
	"MA": {42.3582, -71.0637},
	"MI": {42.7337, -84.5556},
	"MN": {44.9553, -93.1022},
	"MS": {32.2992, -90.1800},
	"MO": {38.5791, -92.1730},
	"MT": {46.5958, -112.0270},
	"NE": {40.8106, -96.6803},
	"NV": {39.1608, -119.7539},
	"NH": {43.2067, -71.5381},
	"NJ": {40.2237, -74.7640},
	"NM": {35.6672, -105.9644},
	"NY": {42.6525, -73.7572},
	"NC": {35.7806, -78.6389},
	"ND": {46.8133, -100.7790},
	"OH": {39.9833, -82.9833},
	"OK": {35.4822, -97.5350},
	"OR": {44.9308, -123.0289},
	"PA": {40.2697, -76.8756},
	"RI": {41.8236, -71.4222},
	"SC": {34.0298, -80.8966},
	"SD": {44.3680, -100.3364},
	"TN": {36.1667, -86.7833},
	"TX": {30.2500, -97.7500},
	"UT": {40.7500, -111.8833},
	"VT": {44.2500, -72.5667},
	"VA": {37.5333, -77.4667},
	"WA": {47.0425, -122.8931},
	"WV": {38.3472, -81.6333},
	"WI": {43.0667, -89.4000},
	"WY": {41.1456, -104.8019},
}

// Capital returns the capital coordinate for a two-letter state code.
func Capital(code string) (Point, bool) {
	p, ok := capitals[code]
	return p, ok
}

// usBounds is a coarse quadrilateral around the 50 states. No map service
// publishes a national boundary.
var usBounds = []float64{
	-49.5703125, 41.77131167976407,
	-152.2265625, 77.23507365492472,
	-221.1328125, 19.973348786110602,
	-135.703125, -16.97274101999901,
	-49.5703125, 41.77131167976407,
}

// USBoundingPolygon returns a fresh copy of the national bounding polygon.
func USBoundingPolygon() *geom.Polygon {
	flat := make([]float64, len(usBounds))
	copy(flat, usBounds)
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}
