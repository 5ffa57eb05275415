package census

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quietcreep/citysdk/internal/geography"
)

// Qualifier is the for/in predicate of a statistics query: which units, and
// within which containing units (innermost first).
type Qualifier struct {
	For string
	In  []string
}

// Encode renders the predicate as the statistics API expects it, e.g.
// for=tract:004701&in=county:001+state:11. Spaces in level names become '+'.
func (q Qualifier) Encode() string {
	var b strings.Builder
	b.WriteString("for=")
	b.WriteString(plus(q.For))
	opened := false
	for _, p := range q.In {
		if !opened {
			b.WriteString("&in=")
			opened = true
		} else {
			b.WriteByte('+')
		}
		b.WriteString(plus(p))
	}
	return b.String()
}

func plus(s string) string {
	return strings.ReplaceAll(s, " ", "+")
}

// BuildQualifier builds the statistics predicate for a level.
//
// Without sublevel the level's own unit is selected within its strict
// ancestors. With sublevel and no container every unit of the level's
// child is selected within the level and its ancestors. With sublevel and a
// container every unit of the level is selected within the container.
// Unknown ancestor identifiers become wildcards; an unknown target
// identifier is ErrMissingLocation.
func BuildQualifier(level, container geography.Level, sublevel bool, fips geography.FIPS) (Qualifier, error) {
	if !level.Valid() {
		return Qualifier{}, eris.Wrapf(ErrInvalidLevel, "census: %q", level)
	}
	if sublevel && container != "" && container != ContainerArea {
		return containedQualifier(level, container, fips), nil
	}

	if level == geography.Nation {
		if sublevel {
			return Qualifier{For: "state:*"}, nil
		}
		return Qualifier{For: "us:1"}, nil
	}

	target, id, scope := level, fips.ID(level), level.Ancestors()
	if sublevel {
		if child := level.Child(); child != "" {
			target, id = child, "*"
			scope = append([]geography.Level{level}, level.Ancestors()...)
			// Places sit outside the tract chain, so their tracts are
			// selected state-wide.
			if level == geography.Place {
				scope = []geography.Level{geography.State}
			}
		}
	}
	if id == "" {
		return Qualifier{}, eris.Wrapf(ErrMissingLocation, "census: no %s identifier", target)
	}
	return Qualifier{For: target.QueryName() + ":" + id, In: bind(scope, fips)}, nil
}

func containedQualifier(level, container geography.Level, fips geography.FIPS) Qualifier {
	var scope []geography.Level
	switch container {
	case geography.Nation:
	case geography.Place, geography.State:
		scope = []geography.Level{geography.State}
	default:
		scope = append([]geography.Level{container}, container.Ancestors()...)
	}
	// Block groups are only published within a county.
	if level == geography.BlockGroup && len(scope) > 0 && !slices.Contains(scope, geography.County) {
		scope = append([]geography.Level{geography.County}, scope...)
	}
	return Qualifier{For: level.QueryName() + ":*", In: bind(scope, fips)}
}

func bind(levels []geography.Level, fips geography.FIPS) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		id := fips.ID(l)
		if id == "" {
			id = "*"
		}
		out = append(out, l.QueryName()+":"+id)
	}
	return out
}
