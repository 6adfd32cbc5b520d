package full

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/store"
)

func TestScenarioS5HeightsByCoord(t *testing.T) {
	s := store.New()
	c, _ := s.AddOrGetContig("C", 100)
	s.AddOrGetRead("R1", 20)
	s.AddOrGetRead("R2", 20)
	s.AddOrGetRead("R3", 20)
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 0, ContigIndex: c, ReadStart: 0, ReadEnd: 5, ContigStart: 0, ContigEnd: 5}))
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 1, ContigIndex: c, ReadStart: 0, ReadEnd: 6, ContigStart: 4, ContigEnd: 10}))
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 2, ContigIndex: c, ReadStart: 0, ReadEnd: 6, ContigStart: 6, ContigEnd: 12}))

	res, err := Run(s, []aln.Interval{{Contig: "C", Start: 0, End: 100}}, ByCoord)
	require.NoError(t, err)
	require.Len(t, res.Alignments, 3)

	heights := map[uint32]int{}
	for _, r := range res.Alignments {
		heights[r.ContigStart] = r.Height
	}
	assert.Equal(t, 0, heights[0])
	assert.Equal(t, 1, heights[4])
	assert.Equal(t, 0, heights[6])
}

func TestHeightsByMutationsAssignsDenseFirst(t *testing.T) {
	s := store.New()
	c, _ := s.AddOrGetContig("C", 100)
	s.AddOrGetRead("R1", 20)
	s.AddOrGetRead("R2", 20)

	m, _ := s.AddMutation(c, aln.Mutation{Type: aln.Substitution, Position: 2, Nts: "AT"})
	// Overlapping alignments: the denser one should land at height 0.
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 0, ContigIndex: c, ReadStart: 0, ReadEnd: 10, ContigStart: 0, ContigEnd: 10, MutationIdxs: []uint32{m}}))
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 1, ContigIndex: c, ReadStart: 0, ReadEnd: 10, ContigStart: 5, ContigEnd: 15}))

	res, err := Run(s, []aln.Interval{{Contig: "C", Start: 0, End: 100}}, ByMutations)
	require.NoError(t, err)

	heights := map[uint32]int{}
	for _, r := range res.Alignments {
		heights[r.ContigStart] = r.Height
	}
	assert.Equal(t, 0, heights[0])
	assert.Equal(t, 1, heights[5])
}

func TestMutationRowsInheritAlignmentHeight(t *testing.T) {
	s := store.New()
	c, _ := s.AddOrGetContig("C", 100)
	s.AddOrGetRead("R1", 20)
	m, _ := s.AddMutation(c, aln.Mutation{Type: aln.Substitution, Position: 2, Nts: "AT"})
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 0, ContigIndex: c, ReadStart: 0, ReadEnd: 10, ContigStart: 0, ContigEnd: 10, MutationIdxs: []uint32{m}}))

	res, err := Run(s, []aln.Interval{{Contig: "C", Start: 0, End: 100}}, ByCoord)
	require.NoError(t, err)
	require.Len(t, res.Mutations, 1)
	assert.Equal(t, res.Alignments[0].Height, res.Mutations[0].Height)
	assert.Equal(t, "a:t", res.Mutations[0].Desc)
}
