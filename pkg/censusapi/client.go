// Package censusapi is a client for the Census Bureau statistics API
// (api.census.gov/data).
package censusapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public statistics API root.
const DefaultBaseURL = "https://api.census.gov/data"

// RawGetter fetches a URL whose query string is sent verbatim. The
// statistics API needs literal '*' and '+' in the for/in clauses.
type RawGetter interface {
	GetRawQueryJSON(ctx context.Context, rawURL, rawQuery string, v any) error
}

// Query is one statistics request.
type Query struct {
	Year    int
	Dataset string
	// Variables are Census variable codes, e.g. B01003_001E. NAME is always
	// requested first.
	Variables []string
	// Qualifier is the pre-encoded for/in clause, e.g.
	// "for=tract:*&in=county:001+state:11".
	Qualifier string
}

// Table is a statistics response: a header row and the data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Col returns the index of the named column, or -1.
func (t *Table) Col(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Value returns row[col(name)] and whether the column exists.
func (t *Table) Value(row int, name string) (string, bool) {
	i := t.Col(name)
	if i < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return "", false
	}
	return t.Rows[row][i], true
}

// Client queries one statistics API root.
type Client struct {
	f    RawGetter
	base string
	key  string
}

// New returns a client. An empty base uses DefaultBaseURL.
func New(f RawGetter, base, key string) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{f: f, base: strings.TrimRight(base, "/"), key: key}
}

// Query runs q and returns the decoded table. An empty body means no rows.
func (c *Client) Query(ctx context.Context, q Query) (*Table, error) {
	if q.Dataset == "" || q.Year == 0 {
		return nil, eris.New("censusapi: year and dataset are required")
	}
	get := append([]string{"NAME"}, q.Variables...)

	raw := "get=" + strings.Join(get, ",")
	if q.Qualifier != "" {
		raw += "&" + q.Qualifier
	}
	if c.key != "" {
		raw += "&key=" + url.QueryEscape(c.key)
	}

	endpoint := fmt.Sprintf("%s/%d/%s", c.base, q.Year, q.Dataset)
	var rows [][]any
	if err := c.f.GetRawQueryJSON(ctx, endpoint, raw, &rows); err != nil {
		return nil, eris.Wrapf(err, "censusapi: %d/%s", q.Year, q.Dataset)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: cells(rows[0]), Rows: make([][]string, 0, len(rows)-1)}
	for _, r := range rows[1:] {
		t.Rows = append(t.Rows, cells(r))
	}
	zap.L().Debug("censusapi: query complete",
		zap.Int("year", q.Year),
		zap.String("dataset", q.Dataset),
		zap.String("qualifier", q.Qualifier),
		zap.Int("rows", len(t.Rows)),
	)
	return t, nil
}

// cells stringifies a row. Nulls become empty strings.
func cells(r []any) []string {
	out := make([]string, len(r))
	for i, v := range r {
		switch x := v.(type) {
		case nil:
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}
