package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipCentroid_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/arcgis/rest/services/TIGERweb/tigerWMS_Current/MapServer/2/query", r.URL.Path)
		assert.Equal(t, "ZCTA5='20001'", r.URL.Query().Get("where"))
		assert.Equal(t, "CENTLAT,CENTLON", r.URL.Query().Get("outFields"))
		_, _ = io.WriteString(w, `{"features":[{"attributes":{"CENTLAT":"+38.9109104","CENTLON":"-077.0177980"}}]}`)
	}))
	defer srv.Close()

	c, err := newTestClient(srv.URL).ZipCentroid(context.Background(), "20001")
	require.NoError(t, err)
	require.True(t, c.Matched())
	assert.InDelta(t, 38.9109104, *c.Lat, 1e-9)
	assert.InDelta(t, -77.017798, *c.Lng, 1e-9)
}

func TestZipCentroid_NumericAttributes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"features":[{"attributes":{"CENTLAT":40.75,"CENTLON":-73.99}}]}`)
	}))
	defer srv.Close()

	c, err := newTestClient(srv.URL).ZipCentroid(context.Background(), "10001")
	require.NoError(t, err)
	require.True(t, c.Matched())
	assert.InDelta(t, 40.75, *c.Lat, 1e-9)
}

func TestZipCentroid_NoFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"features":[]}`)
	}))
	defer srv.Close()

	c, err := newTestClient(srv.URL).ZipCentroid(context.Background(), "00000")
	require.NoError(t, err)
	assert.False(t, c.Matched())
	assert.Nil(t, c.Lat)
	assert.Nil(t, c.Lng)
	assert.Equal(t, "00000", c.Zip)
}

func TestZipCentroid_Invalid(t *testing.T) {
	_, err := NewClient().ZipCentroid(context.Background(), "2000A")
	assert.Error(t, err)
	_, err = NewClient().ZipCentroid(context.Background(), "123")
	assert.Error(t, err)
}
