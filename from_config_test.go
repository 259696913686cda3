package stashpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN_AddsParseTime(t *testing.T) {
	dsn, err := normalizeDSN("user:pass@tcp(localhost:3306)/stashpipe")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
}

func TestNormalizeDSN_KeepsExistingParams(t *testing.T) {
	dsn, err := normalizeDSN("user:pass@tcp(db:3306)/stashpipe?charset=utf8mb4&parseTime=true")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	_, err := normalizeDSN("no slash means no database name")
	assert.Error(t, err)
}
