// Package cstag decodes and regenerates minimap2-style cs difference
// strings: a compact run-length encoding of the edits between a reference
// contig and a read along one alignment.
package cstag

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/seq"
)

// Op is one (opcode, argument) pair tokenized from a cs string.
type Op struct {
	Code byte
	Arg  string
}

const delimiters = ":=*+-~"

func isDelimiter(c byte) bool {
	return strings.IndexByte(delimiters, c) >= 0
}

// Tokenize splits a cs string into its (opcode, argument) operations. It
// does no semantic validation beyond rejecting an empty argument and a cs
// string that doesn't begin with a recognized opcode.
func Tokenize(cs string) ([]Op, error) {
	var ops []Op
	var code byte
	var arg strings.Builder

	flush := func() error {
		if arg.Len() == 0 {
			if code != 0 {
				return errors.Errorf("cs string %q: opcode %q has an empty argument", cs, code)
			}
			return nil
		}
		if code == 0 {
			return errors.Errorf("cs string %q: argument %q has no preceding opcode", cs, arg.String())
		}
		ops = append(ops, Op{Code: code, Arg: arg.String()})
		arg.Reset()
		return nil
	}

	for i := 0; i < len(cs); i++ {
		c := cs[i]
		if isDelimiter(c) {
			if err := flush(); err != nil {
				return nil, err
			}
			code = c
			continue
		}
		arg.WriteByte(c)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return ops, nil
}

// Decode turns a cs string into an absolute-coordinate mutation list for an
// alignment whose contig span starts at contigStart. Mutations are returned
// in position-ascending order, matching the order cs operations appear.
//
// skip is true when the cs string contains a reserved '=' or '~' opcode (or
// any opcode this codec doesn't know how to apply); per the ingester's
// contract that is not an error, it just means the caller should drop the
// record.
func Decode(cs string, contigStart uint32) (muts []aln.Mutation, skip bool, err error) {
	ops, err := Tokenize(cs)
	if err != nil {
		return nil, false, err
	}

	pos := contigStart
	for _, op := range ops {
		switch op.Code {
		case ':':
			n, convErr := strconv.ParseUint(op.Arg, 10, 32)
			if convErr != nil {
				return nil, false, errors.Wrapf(convErr, "cs string %q: invalid match-run length %q", cs, op.Arg)
			}
			pos += uint32(n)
		case '*':
			if len(op.Arg) != 2 {
				return nil, false, errors.Errorf("cs string %q: substitution %q is not two characters", cs, op.Arg)
			}
			muts = append(muts, aln.Mutation{
				Type:     aln.Substitution,
				Position: pos,
				Nts:      seq.ToUpper(op.Arg),
			})
			pos++
		case '+':
			muts = append(muts, aln.Mutation{
				Type:     aln.Insertion,
				Position: pos,
				Nts:      seq.ToUpper(op.Arg),
			})
			// insertion bases are left of pos; reference position unchanged.
		case '-':
			bases := seq.ToUpper(op.Arg)
			muts = append(muts, aln.Mutation{
				Type:     aln.Deletion,
				Position: pos,
				Nts:      bases,
			})
			pos += uint32(len(bases))
		case '=', '~':
			return nil, true, nil
		default:
			return nil, true, nil
		}
	}
	return muts, false, nil
}

// Encode regenerates the cs string for an alignment's mutation list (which
// must be position-sorted, as a decoded list always is) given its contig
// span [contigStart, contigEnd). Decode(Encode(m)) reproduces m exactly for
// any mutation list this codec could have decoded.
func Encode(muts []aln.Mutation, contigStart, contigEnd uint32) (string, error) {
	if contigEnd < contigStart {
		return "", errors.Errorf("encode: contig end %d before contig start %d", contigEnd, contigStart)
	}
	var b strings.Builder
	current := contigStart
	for _, m := range muts {
		if m.Position < current {
			return "", errors.Errorf("encode: mutation at %d precedes current position %d (mutations must be position-sorted)", m.Position, current)
		}
		if gap := m.Position - current; gap > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(uint64(gap), 10))
		}
		switch m.Type {
		case aln.Substitution:
			if len(m.Nts) != 2 {
				return "", errors.Errorf("encode: substitution at %d has nts %q, want length 2", m.Position, m.Nts)
			}
			b.WriteByte('*')
			b.WriteString(seq.ToLower(m.Nts))
			current = m.Position + 1
		case aln.Insertion:
			b.WriteByte('+')
			b.WriteString(seq.ToLower(m.Nts))
			current = m.Position
		case aln.Deletion:
			b.WriteByte('-')
			b.WriteString(seq.ToLower(m.Nts))
			current = m.Position + uint32(len(m.Nts))
		default:
			return "", errors.Errorf("encode: unknown mutation type %v at %d", m.Type, m.Position)
		}
	}
	if gap := contigEnd - current; gap > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(gap), 10))
	}
	return b.String(), nil
}
