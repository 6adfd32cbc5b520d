package cstag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/grailbio/alnstore/aln"
)

func TestTokenize(t *testing.T) {
	ops, err := Tokenize(":3*at+gg-cc:2")
	require.NoError(t, err)
	assert.Equal(t, []Op{
		{Code: ':', Arg: "3"},
		{Code: '*', Arg: "at"},
		{Code: '+', Arg: "gg"},
		{Code: '-', Arg: "cc"},
		{Code: ':', Arg: "2"},
	}, ops)
}

func TestTokenizeRejectsLeadingArgument(t *testing.T) {
	_, err := Tokenize("3*at")
	assert.Error(t, err)
}

func TestDecodeScenarioS1(t *testing.T) {
	// Scenario S1: contig C, alignment starting at contig position 5.
	muts, skip, err := Decode(":3*at+gg-cc:2", 5)
	require.NoError(t, err)
	require.False(t, skip)
	require.Equal(t, []aln.Mutation{
		{Type: aln.Substitution, Position: 8, Nts: "AT"},
		{Type: aln.Insertion, Position: 9, Nts: "GG"},
		{Type: aln.Deletion, Position: 9, Nts: "CC"},
	}, muts)

	// The alignment's contig span is exactly as long as the cs string's
	// reference-consuming operations: 3 (match) + 1 (sub) + 0 (ins) + 2
	// (del) + 2 (trailing match) = 8, so contig_end = 5 + 8 = 13.
	regenerated, err := Encode(muts, 5, 13)
	require.NoError(t, err)
	assert.Equal(t, ":3*at+gg-cc:2", regenerated)
}

func TestDecodeSkipsReservedOpcodes(t *testing.T) {
	_, skip, err := Decode(":5=3", 0)
	require.NoError(t, err)
	assert.True(t, skip)

	_, skip, err = Decode(":5~3", 0)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		cs          string
		contigStart uint32
		contigEnd   uint32
	}{
		{":10", 0, 10},
		{"*ac", 0, 1},
		{"+acgt:5", 0, 5},
		{"-ac:3", 0, 5},
		{":2*ac:3-gg:1+tt:4", 100, 113},
	}
	for _, c := range cases {
		muts, skip, err := Decode(c.cs, c.contigStart)
		require.NoError(t, err)
		require.False(t, skip)
		got, err := Encode(muts, c.contigStart, c.contigEnd)
		require.NoError(t, err)
		assert.Equal(t, c.cs, got)

		// decode(encode(m)) == m
		muts2, skip2, err := Decode(got, c.contigStart)
		require.NoError(t, err)
		require.False(t, skip2)
		assert.Equal(t, muts, muts2)
	}
}

func TestEncodeRejectsUnsortedMutations(t *testing.T) {
	muts := []aln.Mutation{
		{Type: aln.Substitution, Position: 5, Nts: "AC"},
		{Type: aln.Substitution, Position: 2, Nts: "GT"},
	}
	_, err := Encode(muts, 0, 10)
	assert.Error(t, err)
}
