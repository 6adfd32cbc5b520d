package aln

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutationKeyDedupesIdenticalMutations(t *testing.T) {
	m1 := Mutation{Type: Substitution, Position: 42, Nts: "AT"}
	m2 := Mutation{Type: Substitution, Position: 42, Nts: "AT"}
	assert.Equal(t, m1.Key(3), m2.Key(3))
}

func TestMutationKeyDistinguishesByEveryField(t *testing.T) {
	base := Mutation{Type: Substitution, Position: 42, Nts: "AT"}
	variants := []Mutation{
		{Type: Insertion, Position: 42, Nts: "AT"},
		{Type: Substitution, Position: 43, Nts: "AT"},
		{Type: Substitution, Position: 42, Nts: "GC"},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.Key(1), v.Key(1))
	}
	// Same mutation on a different contig must not collide.
	assert.NotEqual(t, base.Key(1), base.Key(2))
}

func TestMutationString(t *testing.T) {
	assert.Equal(t, "a:t", Mutation{Type: Substitution, Position: 0, Nts: "at"}.String())
	assert.Equal(t, "+gg", Mutation{Type: Insertion, Position: 0, Nts: "gg"}.String())
	assert.Equal(t, "-cc", Mutation{Type: Deletion, Position: 0, Nts: "cc"}.String())
}

func TestIntervalOverlaps(t *testing.T) {
	iv := Interval{Contig: "c", Start: 10, End: 20}
	assert.True(t, iv.Overlaps(15, 25))
	assert.True(t, iv.Overlaps(0, 11))
	assert.False(t, iv.Overlaps(20, 30)) // abutting, not overlapping
	assert.False(t, iv.Overlaps(0, 10))  // abutting on the other side
	assert.True(t, iv.Overlaps(10, 20))  // identical
}

func TestAlignmentSpanLengths(t *testing.T) {
	a := Alignment{ReadStart: 2, ReadEnd: 10, ContigStart: 100, ContigEnd: 105}
	assert.Equal(t, uint32(8), a.ReadLen())
	assert.Equal(t, uint32(5), a.ContigLen())
}
