package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortHash(t *testing.T) {
	assert.Equal(t, "a1b2c3d4", ShortHash("a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"))
	assert.Equal(t, "a1b2c3d4", ShortHash("a1b2c3d4"))
	assert.Equal(t, "a1b2", ShortHash("a1b2"))
	assert.Equal(t, "", ShortHash(""))
}
