package main

import (
	"testing"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserTypesOrAll(t *testing.T) {
	both := []models.UserType{models.UserTypeStar, models.UserTypeRemaining}

	got, err := userTypesOrAll("")
	require.NoError(t, err)
	assert.Equal(t, both, got)

	got, err = userTypesOrAll("all")
	require.NoError(t, err)
	assert.Equal(t, both, got)

	got, err = userTypesOrAll("star")
	require.NoError(t, err)
	assert.Equal(t, []models.UserType{models.UserTypeStar}, got)

	_, err = userTypesOrAll("celebrity")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestParseUserTypeIsValidation(t *testing.T) {
	got, err := parseUserType("remaining")
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeRemaining, got)

	_, err = parseUserType("")
	assert.True(t, errs.IsValidation(err))
}
