package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	s := String()
	assert.Contains(t, s, "everyfind")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, "go")
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}
