// Package geography models the Census geographic hierarchy: levels, their
// containment relations, FIPS identifiers and map service vintages.
package geography

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Level is a unit of the Census geographic hierarchy.
type Level string

// Geography levels, from the whole country down to block groups.
const (
	Nation     Level = "us"
	State      Level = "state"
	County     Level = "county"
	Tract      Level = "tract"
	Place      Level = "place"
	BlockGroup Level = "blockGroup"
)

// ErrInvalidLevel is returned for level names outside the hierarchy.
var ErrInvalidLevel = eris.New("invalid geography level")

// Levels lists every level from broadest to narrowest.
var Levels = []Level{Nation, State, County, Tract, Place, BlockGroup}

// ParseLevel maps a level name to a Level. It accepts the request spellings
// plus the statistics API's own names ("block group", "nation").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "us", "nation":
		return Nation, nil
	case "state":
		return State, nil
	case "county":
		return County, nil
	case "tract":
		return Tract, nil
	case "place":
		return Place, nil
	case "blockgroup", "block group", "block+group", "block_group":
		return BlockGroup, nil
	}
	return "", eris.Wrapf(ErrInvalidLevel, "geography: %q", s)
}

// Valid reports whether l is one of the six levels.
func (l Level) Valid() bool {
	switch l {
	case Nation, State, County, Tract, Place, BlockGroup:
		return true
	}
	return false
}

// Rank orders levels by depth. Tract and place share a rank.
func (l Level) Rank() int {
	switch l {
	case Nation:
		return 0
	case State:
		return 1
	case County:
		return 2
	case Tract, Place:
		return 3
	case BlockGroup:
		return 4
	}
	return -1
}

// Parent returns the level used to qualify l in a statistics query, or ""
// for the nation. Places cross county lines, so their parent is the state.
func (l Level) Parent() Level {
	switch l {
	case State:
		return Nation
	case County:
		return State
	case Tract:
		return County
	case Place:
		return State
	case BlockGroup:
		return Tract
	}
	return ""
}

// Child returns the level a sublevel expansion of l produces, or "" when l
// has nothing beneath it.
func (l Level) Child() Level {
	switch l {
	case Nation:
		return State
	case State:
		return County
	case County, Place:
		return Tract
	case Tract:
		return BlockGroup
	}
	return ""
}

// Ancestors returns the strict ancestors of l below the nation, innermost
// first. A blockGroup yields [tract county state].
func (l Level) Ancestors() []Level {
	var out []Level
	for p := l.Parent(); p != "" && p != Nation; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// QueryName is the level's name in the statistics API's for/in predicates.
func (l Level) QueryName() string {
	if l == BlockGroup {
		return "block group"
	}
	return string(l)
}

// PropertyKey is the attribute that carries l's identifier on map service
// features, or "" for the nation.
func (l Level) PropertyKey() string {
	switch l {
	case State:
		return "STATE"
	case County:
		return "COUNTY"
	case Tract:
		return "TRACT"
	case Place:
		return "PLACE"
	case BlockGroup:
		return "BLKGRP"
	}
	return ""
}

// LevelForColumn maps a statistics response header to its level.
func LevelForColumn(col string) (Level, bool) {
	switch col {
	case "us":
		return Nation, true
	case "state":
		return State, true
	case "county":
		return County, true
	case "tract":
		return Tract, true
	case "place":
		return Place, true
	case "block group":
		return BlockGroup, true
	}
	return "", false
}

func (l Level) String() string {
	return string(l)
}
