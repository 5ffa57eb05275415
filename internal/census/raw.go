package census

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// RawRequest is the loosely typed request accepted over HTTP and from the
// command line. Numbers may arrive as strings and booleans as "true".
type RawRequest struct {
	Year      *FlexInt  `json:"year,omitempty"`
	API       string    `json:"api,omitempty"`
	Level     string    `json:"level,omitempty"`
	Sublevel  *FlexBool `json:"sublevel,omitempty"`
	Container string    `json:"container,omitempty"`
	Variables []string  `json:"variables,omitempty"`
	MapServer string    `json:"mapServer,omitempty"`

	Lat       *FlexFloat `json:"lat,omitempty"`
	Lng       *FlexFloat `json:"lng,omitempty"`
	Latitude  *FlexFloat `json:"latitude,omitempty"`
	Longitude *FlexFloat `json:"longitude,omitempty"`
	X         *FlexFloat `json:"x,omitempty"`
	Y         *FlexFloat `json:"y,omitempty"`

	Zip     FlexString  `json:"zip,omitempty"`
	Address *RawAddress `json:"address,omitempty"`

	State      FlexString `json:"state,omitempty"`
	County     FlexString `json:"county,omitempty"`
	Tract      FlexString `json:"tract,omitempty"`
	BlockGroup FlexString `json:"blockGroup,omitempty"`
	Place      FlexString `json:"place,omitempty"`

	// ContainerGeometry is a GeoJSON or ArcGIS JSON polygon bounding a
	// sublevel query.
	ContainerGeometry json.RawMessage `json:"containerGeometry,omitempty"`
}

// RawAddress is the address member of a RawRequest.
type RawAddress struct {
	Street string `json:"street"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// FlexInt accepts 2014 or "2014".
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return eris.Wrapf(err, "census: integer %s", b)
	}
	*f = FlexInt(n)
	return nil
}

// FlexFloat accepts 38.9 or "38.9".
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Wrapf(err, "census: number %s", b)
	}
	*f = FlexFloat(n)
	return nil
}

// FlexBool accepts booleans and strings. Only true and "true" are true.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	*f = FlexBool(strings.EqualFold(unquote(b), "true"))
	return nil
}

// FlexString accepts "11" or 11.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	*f = FlexString(unquote(b))
	return nil
}

func unquote(b []byte) string {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return ""
	}
	if len(b) >= 2 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(b)
}

// Float returns a FlexFloat pointer, for building requests in code.
func Float(v float64) *FlexFloat {
	f := FlexFloat(v)
	return &f
}

// Int returns a FlexInt pointer.
func Int(v int) *FlexInt {
	f := FlexInt(v)
	return &f
}

// Bool returns a FlexBool pointer.
func Bool(v bool) *FlexBool {
	f := FlexBool(v)
	return &f
}
