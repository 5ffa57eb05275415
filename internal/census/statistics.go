package census

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/internal/variables"
	"github.com/quietcreep/citysdk/pkg/censusapi"
)

// StatisticsSource runs statistics queries. *censusapi.Client implements it.
type StatisticsSource interface {
	Query(ctx context.Context, q censusapi.Query) (*censusapi.Table, error)
}

// Record is one statistics result: identifiers, variable values keyed by
// the requested name, and <name>_normalized ratios.
type Record map[string]any

// Ratio is a per-capita value. Division is unguarded, so NaN and ±Inf are
// possible; they encode as the strings "NaN", "+Inf" and "-Inf".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// identifierColumns are echoed from the response into every record.
var identifierColumns = []geography.Level{
	geography.State, geography.County, geography.Tract, geography.BlockGroup, geography.Place,
}

// StatisticsBuilder turns a resolved request into one statistics query and
// its records.
type StatisticsBuilder struct {
	src     StatisticsSource
	catalog *variables.Catalog
}

// NewStatisticsBuilder returns a builder over src.
func NewStatisticsBuilder(src StatisticsSource, catalog *variables.Catalog) *StatisticsBuilder {
	return &StatisticsBuilder{src: src, catalog: catalog}
}

// Fetch queries the request's variables and returns its records: one for a
// single unit, one per row for a sublevel query. Population is added to
// req.Variables when a normalizable variable needs it.
func (b *StatisticsBuilder) Fetch(ctx context.Context, req *Request) ([]Record, error) {
	q, err := BuildQualifier(req.Level, req.Container, req.Sublevel, req.FIPS)
	if err != nil {
		return nil, err
	}
	req.Variables = b.catalog.WithPopulation(req.Variables)
	codes := make([]string, len(req.Variables))
	for i, v := range req.Variables {
		codes[i] = b.catalog.Resolve(v)
	}
	b.catalog.CheckSupport(req.Year, req.API)

	tbl, err := b.src.Query(ctx, censusapi.Query{
		Year:      req.Year,
		Dataset:   DatasetPath(req.Year, req.API),
		Variables: codes,
		Qualifier: q.Encode(),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "census: statistics for %s", req.Level)
	}

	if !req.Sublevel {
		if len(tbl.Rows) == 0 {
			return []Record{}, nil
		}
		return []Record{b.record(tbl, 0, req.Variables)}, nil
	}
	out := make([]Record, 0, len(tbl.Rows))
	for i := range tbl.Rows {
		out = append(out, b.record(tbl, i, req.Variables))
	}
	return out, nil
}

func (b *StatisticsBuilder) record(tbl *censusapi.Table, row int, vars []string) Record {
	rec := Record{}
	if name, ok := tbl.Value(row, "NAME"); ok {
		rec["name"] = name
	}
	for _, l := range identifierColumns {
		if v, ok := tbl.Value(row, l.QueryName()); ok {
			rec[string(l)] = v
		}
	}

	pop, _ := tbl.Value(row, b.catalog.Resolve(variables.Population))
	for _, v := range vars {
		raw, _ := tbl.Value(row, b.catalog.Resolve(v))
		rec[v] = value(raw)
		if b.catalog.IsNormalizable(v) {
			rec[v+"_normalized"] = Ratio(parseOrNaN(raw) / parseOrNaN(pop))
		}
	}
	return rec
}

// DatasetPath maps a dataset name to its URL path. ACS datasets moved
// under acs/ in 2015.
func DatasetPath(year int, api string) string {
	if year >= 2015 && strings.HasPrefix(api, "acs") && !strings.Contains(api, "/") {
		return "acs/" + api
	}
	return api
}

// value returns a finite number when raw parses as one, nil when raw is
// empty, and raw otherwise.
func value(raw string) any {
	if raw == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return raw
}

func parseOrNaN(raw string) float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// number coerces a record value for totals. Anything non-numeric is 0.
func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case int:
		return float64(x)
	case string:
		if f, ok := value(x).(float64); ok {
			return f
		}
	}
	return 0
}
