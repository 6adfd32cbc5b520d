package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/grailbio/alnstore/aln"
)

func TestApplyNoMutations(t *testing.T) {
	got, err := Apply("ACGTACGT", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", got)
}

func TestApplySubstitution(t *testing.T) {
	// Fragment "ACGTACGT" covers [100,108); substitute at 103 (relative 3,
	// 'T' -> 'G').
	muts := []aln.Mutation{{Type: aln.Substitution, Position: 103, Nts: "TG"}}
	got, err := Apply("ACGTACGT", muts, 100)
	require.NoError(t, err)
	assert.Equal(t, "ACGGACGT", got)
}

func TestApplySubstitutionRejectsWrongRefBase(t *testing.T) {
	muts := []aln.Mutation{{Type: aln.Substitution, Position: 103, Nts: "AG"}}
	_, err := Apply("ACGTACGT", muts, 100)
	assert.Error(t, err)
}

func TestApplyInsertion(t *testing.T) {
	muts := []aln.Mutation{{Type: aln.Insertion, Position: 103, Nts: "GG"}}
	got, err := Apply("ACGTACGT", muts, 100)
	require.NoError(t, err)
	assert.Equal(t, "ACGGGTACGT", got)
}

func TestApplyDeletion(t *testing.T) {
	muts := []aln.Mutation{{Type: aln.Deletion, Position: 102, Nts: "GT"}}
	got, err := Apply("ACGTACGT", muts, 100)
	require.NoError(t, err)
	assert.Equal(t, "ACACGT", got)
}

func TestApplyDeletionRejectsMismatchedRefBases(t *testing.T) {
	muts := []aln.Mutation{{Type: aln.Deletion, Position: 102, Nts: "AA"}}
	_, err := Apply("ACGTACGT", muts, 100)
	assert.Error(t, err)
}

func TestVerifyForwardAlignment(t *testing.T) {
	muts := []aln.Mutation{{Type: aln.Substitution, Position: 103, Nts: "TG"}}
	err := Verify("ACGTACGT", muts, 100, "ACGGACGT", false)
	assert.NoError(t, err)
}

func TestVerifyReverseAlignment(t *testing.T) {
	// Fragment "ACGTACGT" with no mutations, reverse strand: the read
	// segment should be the reverse complement of the fragment.
	err := Verify("ACGTACGT", nil, 100, "ACGTACGT", true)
	require.NoError(t, err) // ACGTACGT is its own reverse complement.
}

func TestVerifyReverseAlignmentMismatch(t *testing.T) {
	err := Verify("AAAACCCC", nil, 100, "AAAACCCC", true)
	assert.Error(t, err)
}
