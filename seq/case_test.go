package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "ACGT", ReverseComplement("ACGT"))
	assert.Equal(t, "TTTTGGGG", ReverseComplement("CCCCAAAA"))
	assert.Equal(t, "N", ReverseComplement("N"))
}

func TestUpperLower(t *testing.T) {
	assert.Equal(t, "ACGT", ToUpper("acgt"))
	assert.Equal(t, "acgt", ToLower("ACGT"))
}
