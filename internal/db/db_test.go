package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Disabled(t *testing.T) {
	d, err := Open("", "")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NoError(t, Migrate(d))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("sqlite", "file::memory:")
	assert.ErrorContains(t, err, "unsupported database driver")
}
