package cronexpr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidExpressions(t *testing.T) {
	valid := []string{
		"0 * * * *",
		"*/5 * * * *",
		"30 2 * * 1",
		"@hourly",
		"@daily",
		"@every 1h30m",
	}
	for _, expr := range valid {
		assert.NoError(t, Validate(expr), "expression %q should be valid", expr)
	}
}

func TestValidate_InvalidExpressions(t *testing.T) {
	invalid := []string{
		"not-a-pattern",
		"",
		"61 * * * *",
		"* * * *",
		"@sometimes",
	}
	for _, expr := range invalid {
		err := Validate(expr)
		assert.Error(t, err, "expression %q should be invalid", expr)
		assert.NotEmpty(t, err.Error())
	}
}

func TestNext_Hourly(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := Next("0 * * * *", from)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), next)
}

func TestNext_StrictlyAfterFrom(t *testing.T) {
	// from falls exactly on an occurrence; Next must skip to the following one
	from := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

	next, err := Next("0 * * * *", from)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrences_StrictlyIncreasing(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)

	occurrences, err := NextOccurrences("0 * * * *", from, 5)

	require.NoError(t, err)
	require.Len(t, occurrences, 5)
	prev := from
	for _, occ := range occurrences {
		assert.True(t, occ.After(prev), "occurrence %v must be after %v", occ, prev)
		prev = occ
	}
}

func TestNextOccurrences_MalformedExpression(t *testing.T) {
	occurrences, err := NextOccurrences("not-a-pattern", time.Now(), 3)

	assert.Error(t, err)
	assert.Nil(t, occurrences)
}

func TestNextOccurrences_Deterministic(t *testing.T) {
	from := time.Date(2024, 6, 15, 10, 47, 13, 0, time.UTC)

	first, err := NextOccurrences("*/15 * * * *", from, 10)
	require.NoError(t, err)
	second, err := NextOccurrences("*/15 * * * *", from, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
