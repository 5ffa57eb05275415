package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFlags_Inline(t *testing.T) {
	f := requestFlags{body: `{"zip": 20001, "level": "tract"}`}
	raw, err := f.raw(&cobra.Command{})
	require.NoError(t, err)
	assert.Equal(t, "tract", raw.Level)
	assert.Equal(t, "20001", string(raw.Zip))
}

func TestRequestFlags_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"state": "DC", "level": "state"}`), 0o600))

	f := requestFlags{file: path}
	raw, err := f.raw(&cobra.Command{})
	require.NoError(t, err)
	assert.Equal(t, "DC", string(raw.State))
}

func TestRequestFlags_Stdin(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(`{"lat": "38.9", "lng": -77.01}`))

	f := requestFlags{file: "-"}
	raw, err := f.raw(cmd)
	require.NoError(t, err)
	require.NotNil(t, raw.Lat)
	assert.InDelta(t, 38.9, float64(*raw.Lat), 1e-9)
}

func TestRequestFlags_Errors(t *testing.T) {
	_, err := (&requestFlags{body: `{`}).raw(&cobra.Command{})
	assert.ErrorContains(t, err, "decode request")

	_, err = (&requestFlags{file: filepath.Join(t.TempDir(), "missing.json")}).raw(&cobra.Command{})
	assert.ErrorContains(t, err, "open request")
}
