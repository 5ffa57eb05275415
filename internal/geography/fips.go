package geography

import "strings"

// FIPS holds the resolved identifiers of a location at every level.
// Empty fields are unknown.
type FIPS struct {
	State      string `json:"state,omitempty"`
	County     string `json:"county,omitempty"`
	Tract      string `json:"tract,omitempty"`
	BlockGroup string `json:"blockGroup,omitempty"`
	Place      string `json:"place,omitempty"`
	PlaceName  string `json:"place_name,omitempty"`
}

// ID returns the identifier at level l. The nation's is always "1".
func (f FIPS) ID(l Level) string {
	switch l {
	case Nation:
		return "1"
	case State:
		return f.State
	case County:
		return f.County
	case Tract:
		return f.Tract
	case Place:
		return f.Place
	case BlockGroup:
		return f.BlockGroup
	}
	return ""
}

// Set stores id at level l.
func (f *FIPS) Set(l Level, id string) {
	switch l {
	case State:
		f.State = NormalizeState(id)
	case County:
		f.County = NormalizeCounty(id)
	case Tract:
		f.Tract = NormalizeTract(id)
	case Place:
		f.Place = id
	case BlockGroup:
		f.BlockGroup = id
	}
}

// Complete reports whether the state through block group chain is known.
func (f FIPS) Complete() bool {
	return f.State != "" && f.County != "" && f.Tract != "" && f.BlockGroup != ""
}

// Empty reports whether no identifier is known.
func (f FIPS) Empty() bool {
	return f.State == "" && f.County == "" && f.Tract == "" && f.BlockGroup == "" && f.Place == ""
}

// NormalizeState zero-pads a state FIPS code to 2 digits.
func NormalizeState(code string) string {
	return pad(code, 2)
}

// NormalizeCounty zero-pads a county FIPS code to 3 digits.
func NormalizeCounty(code string) string {
	return pad(code, 3)
}

// NormalizeTract zero-pads a tract code to 6 digits.
func NormalizeTract(code string) string {
	return pad(code, 6)
}

func pad(code string, digits int) string {
	code = strings.TrimSpace(code)
	if code == "" || !IsNumeric(code) {
		return code
	}
	for len(code) < digits {
		code = "0" + code
	}
	return code
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
