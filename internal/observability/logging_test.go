package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerBuildsBothModes(t *testing.T) {
	prod, err := NewLogger(false)
	require.NoError(t, err)
	require.NotNil(t, prod)
	defer prod.Sync()

	dev, err := NewLogger(true)
	require.NoError(t, err)
	require.NotNil(t, dev)
	defer dev.Sync()
}

func TestNewRunIDIsUniqueAndNonEmpty(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
