package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietcreep/citysdk/internal/geography"
)

func TestBuildQualifier(t *testing.T) {
	dc := geography.FIPS{State: "11", County: "001", Tract: "004701", BlockGroup: "2", Place: "50000"}

	tests := []struct {
		name      string
		level     geography.Level
		container geography.Level
		sublevel  bool
		fips      geography.FIPS
		want      string
	}{
		{"tract", geography.Tract, "", false, dc, "for=tract:004701&in=county:001+state:11"},
		{"block group", geography.BlockGroup, "", false, dc, "for=block+group:2&in=tract:004701+county:001+state:11"},
		{"county", geography.County, "", false, dc, "for=county:001&in=state:11"},
		{"state", geography.State, "", false, dc, "for=state:11"},
		{"place", geography.Place, "", false, dc, "for=place:50000&in=state:11"},
		{"nation", geography.Nation, "", false, dc, "for=us:1"},
		{"nation sublevel", geography.Nation, "", true, dc, "for=state:*"},
		{"state sublevel", geography.State, "", true, dc, "for=county:*&in=state:11"},
		{"county sublevel", geography.County, "", true, dc, "for=tract:*&in=county:001+state:11"},
		{"tract sublevel", geography.Tract, "", true, dc, "for=block+group:*&in=tract:004701+county:001+state:11"},
		{"place sublevel", geography.Place, "", true, dc, "for=tract:*&in=state:11"},
		{"block group sublevel has no child", geography.BlockGroup, "", true, dc, "for=block+group:2&in=tract:004701+county:001+state:11"},
		{"tracts in county", geography.Tract, geography.County, true, dc, "for=tract:*&in=county:001+state:11"},
		{"block groups in tract", geography.BlockGroup, geography.Tract, true, dc, "for=block+group:*&in=tract:004701+county:001+state:11"},
		{"block groups in place", geography.BlockGroup, geography.Place, true, dc, "for=block+group:*&in=county:001+state:11"},
		{"tracts in place", geography.Tract, geography.Place, true, dc, "for=tract:*&in=state:11"},
		{"counties in nation", geography.County, geography.Nation, true, dc, "for=county:*"},
		{"block groups in state without county", geography.BlockGroup, geography.State, true, geography.FIPS{State: "11"}, "for=block+group:*&in=county:*+state:11"},
		{"unknown ancestor is wildcard", geography.Tract, "", false, geography.FIPS{State: "11", Tract: "004701"}, "for=tract:004701&in=county:*+state:11"},
		{"container ignored without sublevel", geography.Tract, geography.County, false, dc, "for=tract:004701&in=county:001+state:11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := BuildQualifier(tt.level, tt.container, tt.sublevel, tt.fips)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Encode())
		})
	}
}

func TestBuildQualifier_Deterministic(t *testing.T) {
	fips := geography.FIPS{State: "11", County: "001", Tract: "004701"}
	first, err := BuildQualifier(geography.Tract, "", false, fips)
	require.NoError(t, err)
	for range 10 {
		q, err := BuildQualifier(geography.Tract, "", false, fips)
		require.NoError(t, err)
		assert.Equal(t, first, q)
	}
	assert.Equal(t, Qualifier{For: "tract:004701", In: []string{"county:001", "state:11"}}, first)
}

func TestBuildQualifier_MissingTarget(t *testing.T) {
	_, err := BuildQualifier(geography.Tract, "", false, geography.FIPS{State: "11", County: "001"})
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestBuildQualifier_InvalidLevel(t *testing.T) {
	_, err := BuildQualifier("zip", "", false, geography.FIPS{})
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestQualifierEncode_NoIn(t *testing.T) {
	assert.Equal(t, "for=state:*", Qualifier{For: "state:*"}.Encode())
	assert.Equal(t, "for=block+group:*&in=county:*", Qualifier{For: "block group:*", In: []string{"county:*"}}.Encode())
}
