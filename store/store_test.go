package store

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/grailbio/alnstore/aln"
)

func buildScenarioS1(t *testing.T) *Store {
	s := New()
	contigIdx, err := s.AddOrGetContig("C", 20)
	require.NoError(t, err)
	_, err = s.AddOrGetRead("R", 10)
	require.NoError(t, err)

	var mutIdxs []uint32
	for _, m := range []aln.Mutation{
		{Type: aln.Substitution, Position: 8, Nts: "AT"},
		{Type: aln.Insertion, Position: 9, Nts: "GG"},
		{Type: aln.Deletion, Position: 9, Nts: "CC"},
	} {
		idx, err := s.AddMutation(contigIdx, m)
		require.NoError(t, err)
		mutIdxs = append(mutIdxs, idx)
	}
	require.NoError(t, s.AddAlignment(aln.Alignment{
		ReadIndex: 0, ContigIndex: contigIdx,
		ReadStart: 0, ReadEnd: 10,
		ContigStart: 5, ContigEnd: 13,
		MutationIdxs: mutIdxs,
	}))
	return s
}

func TestScenarioS1(t *testing.T) {
	s := buildScenarioS1(t)
	alignments, err := s.AlignmentsInInterval(aln.Interval{Contig: "C", Start: 0, End: 20})
	require.NoError(t, err)
	require.Len(t, alignments, 1)
	assert.Equal(t, uint32(5), alignments[0].ContigStart)
}

func TestScenarioS2(t *testing.T) {
	s := New()
	contigIdx, err := s.AddOrGetContig("C", 100)
	require.NoError(t, err)
	_, err = s.AddOrGetRead("R1", 10)
	require.NoError(t, err)
	_, err = s.AddOrGetRead("R2", 10)
	require.NoError(t, err)
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 0, ContigIndex: contigIdx, ReadStart: 0, ReadEnd: 10, ContigStart: 10, ContigEnd: 20}))
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 1, ContigIndex: contigIdx, ReadStart: 0, ReadEnd: 10, ContigStart: 15, ContigEnd: 25}))

	got, err := s.AlignmentsInInterval(aln.Interval{Contig: "C", Start: 12, End: 18})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.AlignmentsInInterval(aln.Interval{Contig: "C", Start: 21, End: 30})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(15), got[0].ContigStart)

	got, err = s.AlignmentsInInterval(aln.Interval{Contig: "C", Start: 0, End: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAlignmentsInIntervalUnknownContig(t *testing.T) {
	s := New()
	_, err := s.AlignmentsInInterval(aln.Interval{Contig: "nope", Start: 0, End: 1})
	assert.Error(t, err)
}

func TestMutationDedup(t *testing.T) {
	s := New()
	contigIdx, _ := s.AddOrGetContig("C", 100)
	m := aln.Mutation{Type: aln.Substitution, Position: 5, Nts: "AT"}
	idx1, err := s.AddMutation(contigIdx, m)
	require.NoError(t, err)
	idx2, err := s.AddMutation(contigIdx, m)
	require.NoError(t, err)
	assert.Equal(t, idx1, idx2)
	assert.Len(t, s.ContigMutations(contigIdx), 1)
}

func TestCannotMutateAfterSaveLoad(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	s := buildScenarioS1(t)
	path := filepath.Join(dir, "store.alnst")
	require.NoError(t, s.Save(ctx, path))

	_, err := s.AddOrGetContig("D", 10)
	assert.Error(t, err)
	_, err = s.AddMutation(0, aln.Mutation{Type: aln.Substitution, Position: 1, Nts: "AT"})
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	s := New()
	c1, _ := s.AddOrGetContig("C1", 1000)
	c2, _ := s.AddOrGetContig("C2", 2000)
	s.AddOrGetRead("R1", 50)
	s.AddOrGetRead("R2", 50)
	s.AddOrGetRead("R3", 50)

	m1, _ := s.AddMutation(c1, aln.Mutation{Type: aln.Substitution, Position: 10, Nts: "AT"})
	m2, _ := s.AddMutation(c1, aln.Mutation{Type: aln.Insertion, Position: 20, Nts: "GG"})
	m3, _ := s.AddMutation(c2, aln.Mutation{Type: aln.Deletion, Position: 30, Nts: "CC"})
	// duplicate inserts should not grow the table
	s.AddMutation(c1, aln.Mutation{Type: aln.Substitution, Position: 10, Nts: "AT"})

	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 0, ContigIndex: c1, ReadStart: 0, ReadEnd: 20, ContigStart: 5, ContigEnd: 25, MutationIdxs: []uint32{m1, m2}}))
	require.NoError(t, s.AddAlignment(aln.Alignment{ReadIndex: 1, ContigIndex: c2, ReadStart: 0, ReadEnd: 20, ContigStart: 25, ContigEnd: 45, MutationIdxs: []uint32{m3}}))

	path := filepath.Join(dir, "store.alnst")
	require.NoError(t, s.Save(ctx, path))
	assert.True(t, s.Loaded())

	loaded := New()
	require.NoError(t, loaded.Load(ctx, path))
	assert.True(t, loaded.Loaded())
	assert.Equal(t, s.NumContigs(), loaded.NumContigs())
	assert.Equal(t, s.NumReads(), loaded.NumReads())
	assert.Equal(t, s.NumAlignments(), loaded.NumAlignments())
	assert.Equal(t, s.ContigMutations(c1), loaded.ContigMutations(c1))
	assert.Equal(t, s.ContigMutations(c2), loaded.ContigMutations(c2))
	assert.Equal(t, s.Alignments(), loaded.Alignments())
}

func TestSaveLoadCompressedRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	s := buildScenarioS1(t)
	path := filepath.Join(dir, "store.alnz")
	require.NoError(t, s.SaveCompressed(ctx, path))

	loaded := New()
	require.NoError(t, loaded.LoadCompressed(ctx, path))
	assert.Equal(t, s.Alignments(), loaded.Alignments())
}

func TestLoadRejectsBadMagic(t *testing.T) {
	s := New()
	err := s.loadFromBytes([]byte("not-a-real-store-at-all"), "bogus")
	assert.Error(t, err)
}
