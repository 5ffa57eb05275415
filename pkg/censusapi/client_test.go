package censusapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/resilience"
)

func testFetcher() *fetcher.Client {
	return fetcher.New(fetcher.Options{Timeout: 5 * time.Second, Policy: resilience.Policy{Attempts: 1}})
}

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2014/acs5", r.URL.Path)
		assert.Equal(t, "get=NAME,B01003_001E,B19013_001E&for=tract:*&in=county:001+state:11&key=abc", r.URL.RawQuery)
		_, _ = io.WriteString(w, `[["NAME","B01003_001E","B19013_001E","state","county","tract"],
			["Census Tract 1","4890","97000","11","001","000100"],
			["Census Tract 2",null,"61000","11","001","000201"]]`)
	}))
	defer srv.Close()

	c := New(testFetcher(), srv.URL, "abc")
	tbl, err := c.Query(context.Background(), Query{
		Year:      2014,
		Dataset:   "acs5",
		Variables: []string{"B01003_001E", "B19013_001E"},
		Qualifier: "for=tract:*&in=county:001+state:11",
	})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 5, tbl.Col("tract"))
	assert.Equal(t, -1, tbl.Col("block group"))

	v, ok := tbl.Value(0, "B01003_001E")
	assert.True(t, ok)
	assert.Equal(t, "4890", v)
	v, ok = tbl.Value(1, "B01003_001E")
	assert.True(t, ok)
	assert.Empty(t, v)
	_, ok = tbl.Value(5, "tract")
	assert.False(t, ok)
}

func TestQuery_NumericCells(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[["NAME","B01003_001E","us"],["United States",318857056,"1"]]`)
	}))
	defer srv.Close()

	tbl, err := New(testFetcher(), srv.URL, "").Query(context.Background(), Query{Year: 2014, Dataset: "acs5", Variables: []string{"B01003_001E"}, Qualifier: "for=us:1"})
	require.NoError(t, err)
	v, _ := tbl.Value(0, "B01003_001E")
	assert.Equal(t, "318857056", v)
}

func TestQuery_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	tbl, err := New(testFetcher(), srv.URL, "").Query(context.Background(), Query{Year: 2014, Dataset: "acs5"})
	require.NoError(t, err)
	assert.Empty(t, tbl.Rows)
}

func TestQuery_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tbl, err := New(testFetcher(), srv.URL, "").Query(context.Background(), Query{
		Year:      2014,
		Dataset:   "acs5",
		Variables: []string{"B19013_001E"},
		Qualifier: "for=tract:010100&in=county:001+state:11",
	})
	require.NoError(t, err)
	require.NotNil(t, tbl)
	assert.Empty(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestQuery_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "error: unknown variable 'NOPE'")
	}))
	defer srv.Close()

	_, err := New(testFetcher(), srv.URL, "").Query(context.Background(), Query{Year: 2014, Dataset: "acs5", Variables: []string{"NOPE"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetcher.ErrUpstream))
	assert.Equal(t, http.StatusBadRequest, fetcher.StatusOf(err))
}

func TestQuery_RequiresDataset(t *testing.T) {
	_, err := New(nil, "", "").Query(context.Background(), Query{Year: 2014})
	assert.Error(t, err)
}

func TestVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2014/acs5/variables.json", r.URL.Path)
		_, _ = io.WriteString(w, `{"variables":{
			"B19013_001E":{"label":"Median household income","concept":"B19013. Median Household Income"},
			"B01003_001E":{"label":"Total","concept":"B01003. Total Population","predicateType":"int"}
		}}`)
	}))
	defer srv.Close()

	vars, err := New(testFetcher(), srv.URL, "").Variables(context.Background(), 2014, "acs5")
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "B01003_001E", vars[0].Name)
	assert.Equal(t, "int", vars[0].PredicateType)
	assert.Equal(t, "Median household income", vars[1].Label)
}
