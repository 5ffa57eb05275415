package census

import (
	"encoding/json"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection is the result of a geometry query: boundaries in
// upstream order, with statistics merged into their properties.
type FeatureCollection struct {
	Features []*geojson.Feature
	// Totals sums each requested variable across merged features.
	Totals map[string]float64
	// Ambiguous lists the indices of features that matched more than one
	// statistics record and were left unmerged.
	Ambiguous []int
}

func newFeatureCollection(features []*geojson.Feature) *FeatureCollection {
	if features == nil {
		features = []*geojson.Feature{}
	}
	return &FeatureCollection{Features: features, Totals: map[string]float64{}}
}

// MarshalJSON encodes a GeoJSON FeatureCollection with extra totals and
// ambiguous members.
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	features := fc.Features
	if features == nil {
		features = []*geojson.Feature{}
	}
	totals := fc.Totals
	if totals == nil {
		totals = map[string]float64{}
	}
	return json.Marshal(struct {
		Type      string             `json:"type"`
		Features  []*geojson.Feature `json:"features"`
		Totals    map[string]float64 `json:"totals"`
		Ambiguous []int              `json:"ambiguous,omitempty"`
	}{"FeatureCollection", features, totals, fc.Ambiguous})
}
