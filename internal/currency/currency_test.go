package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown("USD"))
	assert.True(t, IsKnown("SGD"))
	assert.False(t, IsKnown("ZZZ"))
	assert.False(t, IsKnown("usd"), "lookups are case sensitive; callers normalize first")
}

func TestDisplayNameFallsBackToCode(t *testing.T) {
	assert.Equal(t, "미국 달러", DisplayName("USD"))
	assert.Equal(t, "XAU", DisplayName("XAU"))
}

func TestDefaultCodesAreKnown(t *testing.T) {
	universe := KnownCodes()
	for _, code := range DefaultCodes() {
		assert.True(t, universe.Include(code), code)
	}
}
