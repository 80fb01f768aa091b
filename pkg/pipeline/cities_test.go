package pipeline

import (
	"testing"

	"friendgeo/pkg/config"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCities(t *testing.T) {
	all := config.DefaultCities

	got, err := SelectCities(all, nil, "")
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = SelectCities(all, nil, "1-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"baltimore", "buffalo", "el paso"}, got)

	got, err = SelectCities(all, nil, "5")
	require.NoError(t, err)
	assert.Equal(t, []string{"portland"}, got)

	got, err = SelectCities(all, []string{"El Paso", "PORTLAND", "portland"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"el paso", "portland"}, got)
}

func TestSelectCitiesRejectsBadInput(t *testing.T) {
	all := config.DefaultCities
	cases := []struct {
		name  string
		names []string
		rng   string
	}{
		{"unknown city", []string{"gotham"}, ""},
		{"range past end", nil, "8-12"},
		{"reversed range", nil, "4-2"},
		{"zero", nil, "0-2"},
		{"garbage", nil, "a-b"},
		{"both", []string{"buffalo"}, "1-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SelectCities(all, tc.names, tc.rng)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
		})
	}
}

func TestParseSubsteps(t *testing.T) {
	all, err := ParseSubsteps("all")
	require.NoError(t, err)
	assert.Equal(t, models.Substeps, all)

	one, err := ParseSubsteps("3.3")
	require.NoError(t, err)
	assert.Equal(t, []models.Substep{models.SubstepGeocode}, one)

	_, err = ParseSubsteps("3.9")
	assert.True(t, errs.IsValidation(err))
}

func TestScopeSegment(t *testing.T) {
	assert.Equal(t, "", Scope{}.Segment())
	assert.Equal(t, "chunk02of05", Scope{ChunkIndex: 2, ChunkCount: 5}.Segment())
	assert.Equal(t, "remaining.chunk02of05", profileSegment(Scope{UserType: models.UserTypeRemaining, ChunkIndex: 2, ChunkCount: 5}))
	assert.Equal(t, "star", profileSegment(Scope{UserType: models.UserTypeStar}))
}
