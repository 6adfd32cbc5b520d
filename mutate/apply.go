// Package mutate reconstructs read-segment bases by replaying an
// alignment's mutations against a reference fragment, and verifies that the
// result matches the read segment the alignment claims to cover.
package mutate

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/seq"
)

// Apply replays muts (in position-ascending order, as the cs-tag codec
// produces them) against fragment, which must be the reference bases for
// [contigStart, contigStart+len(fragment)). It returns the bases the read
// segment is expected to hold before any reverse-complementing.
func Apply(fragment string, muts []aln.Mutation, contigStart uint32) (string, error) {
	var b strings.Builder
	prevRel := uint32(0)
	fragLen := uint32(len(fragment))

	for _, m := range muts {
		if m.Position < contigStart {
			return "", errors.Errorf("mutation at %d precedes fragment start %d", m.Position, contigStart)
		}
		rel := m.Position - contigStart
		if rel > fragLen {
			return "", errors.Errorf("mutation at %d falls outside fragment of length %d starting at %d", m.Position, fragLen, contigStart)
		}
		b.WriteString(fragment[prevRel:rel])

		switch m.Type {
		case aln.Substitution:
			if len(m.Nts) != 2 {
				return "", errors.Errorf("substitution at %d has nts %q, want length 2", m.Position, m.Nts)
			}
			if rel >= fragLen {
				return "", errors.Errorf("substitution at %d has no reference base to check", m.Position)
			}
			refBase := seq.ToUpper(fragment[rel : rel+1])
			if refBase != string(m.Nts[0]) {
				return "", errors.Errorf("substitution at %d: reference base %q does not match expected %q", m.Position, refBase, m.Nts[0])
			}
			b.WriteByte(m.Nts[1])
			rel++
		case aln.Insertion:
			b.WriteString(m.Nts)
		case aln.Deletion:
			end := rel + uint32(len(m.Nts))
			if end > fragLen {
				return "", errors.Errorf("deletion at %d extends past fragment of length %d", m.Position, fragLen)
			}
			observed := seq.ToUpper(fragment[rel:end])
			if observed != m.Nts {
				return "", errors.Errorf("deletion at %d: reference bases %q do not match expected %q", m.Position, observed, m.Nts)
			}
			rel = end
		default:
			return "", errors.Errorf("unknown mutation type %v at %d", m.Type, m.Position)
		}
		prevRel = rel
	}
	b.WriteString(fragment[prevRel:])
	return b.String(), nil
}

// Verify applies muts to contigFragment (the reference bases for
// [contigStart, contigEnd)) and checks the result, reverse-complemented
// when isReverse, against readSegment exactly. It returns a descriptive
// error on the first mismatch, or nil if the alignment's mutations fully
// explain the read segment.
func Verify(contigFragment string, muts []aln.Mutation, contigStart uint32, readSegment string, isReverse bool) error {
	mutated, err := Apply(contigFragment, muts, contigStart)
	if err != nil {
		return err
	}
	if isReverse {
		mutated = seq.ReverseComplement(mutated)
	}
	if len(mutated) != len(readSegment) {
		return errors.Errorf("mutated contig length (%d) does not match read segment length (%d)", len(mutated), len(readSegment))
	}
	for i := 0; i < len(readSegment); i++ {
		if mutated[i] != readSegment[i] {
			start := 0
			if i >= 8 {
				start = i - 8
			}
			end := i + 8
			if end > len(readSegment) {
				end = len(readSegment)
			}
			return errors.Errorf(
				"mismatch at fragment coordinate %d: read=%q mutated=%q",
				i, readSegment[start:end], mutated[start:end])
		}
	}
	return nil
}
