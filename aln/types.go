// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package aln defines the primitive record types shared by the alignment
// store: contigs, reads, mutations, alignments and query intervals.
package aln

import (
	"fmt"
	"strings"

	farm "github.com/dgryski/go-farm"
)

// MutationType distinguishes the three kinds of per-base differences a cs
// difference string can encode.
type MutationType uint8

const (
	// Substitution replaces a single reference base with a single read base.
	Substitution MutationType = iota
	// Insertion adds bases to the read that are absent from the reference,
	// positioned to the left of Mutation.Position.
	Insertion
	// Deletion removes reference bases that are absent from the read.
	Deletion
)

// String renders the mutation type the way the cs-tag codec's generated
// diagnostics do: SUB, INS or DEL.
func (t MutationType) String() string {
	switch t {
	case Substitution:
		return "SUB"
	case Insertion:
		return "INS"
	case Deletion:
		return "DEL"
	default:
		return "UNK"
	}
}

// Contig is a reference sequence with a stable identifier. Contigs are
// numbered in the order they are first seen by a Store's build phase.
type Contig struct {
	ID     string
	Length uint32
}

// Read is a sequencing read with a stable identifier, numbered in the order
// it is first seen by a Store's build phase.
type Read struct {
	ID     string
	Length uint32
}

// Mutation is a single typed difference between a contig and a read at an
// absolute contig position. The meaning of Nts depends on Type:
//
//   - Substitution: exactly two characters, "refread" (reference base
//     followed by read base).
//   - Insertion: the inserted read bases, positioned to the left of Position.
//   - Deletion: the deleted reference bases starting at Position.
//
// Two mutations are identical iff (contig, Position, Type, Nts) match; see
// Key.
type Mutation struct {
	Type     MutationType
	Position uint32
	Nts      string
}

// Key returns the 64-bit dedup key this mutation hashes to on the given
// contig. It is used by a Store's build-phase mutation map in place of a
// formatted string key, and is never persisted: mutation identity in the
// on-disk format is positional (contig index, index within that contig's
// mutation table), not this hash.
func (m Mutation) Key(contigIndex uint32) uint64 {
	var buf [6]byte
	buf[0] = byte(contigIndex)
	buf[1] = byte(contigIndex >> 8)
	buf[2] = byte(m.Position)
	buf[3] = byte(m.Position >> 8)
	buf[4] = byte(m.Position >> 16)
	buf[5] = byte(m.Position >> 24)
	h := farm.Hash64WithSeed(buf[:], uint64(contigIndex)<<32|uint64(m.Position))
	h = farm.Hash64WithSeed([]byte(m.Nts), h^uint64(m.Type))
	return h
}

// String renders the mutation the way the alignment enumerator's textual
// variant form does: "x:y" for a substitution, "+bases" for an insertion,
// "-bases" for a deletion, with bases in lower case as in a cs tag.
func (m Mutation) String() string {
	nts := strings.ToLower(m.Nts)
	switch m.Type {
	case Substitution:
		if len(nts) != 2 {
			return "ERR_SUB"
		}
		return fmt.Sprintf("%c:%c", nts[0], nts[1])
	case Insertion:
		return "+" + nts
	case Deletion:
		return "-" + nts
	default:
		return "UNK"
	}
}

// Alignment is a mapping of a read segment onto a contig segment, with
// strand and an ordered (position-ascending) list of indices into the
// owning contig's mutation table.
type Alignment struct {
	ReadIndex    uint32
	ContigIndex  uint32
	ReadStart    uint32
	ReadEnd      uint32
	ContigStart  uint32
	ContigEnd    uint32
	IsReverse    bool
	MutationIdxs []uint32
}

// ReadLen returns the half-open read span's length.
func (a Alignment) ReadLen() uint32 { return a.ReadEnd - a.ReadStart }

// ContigLen returns the half-open contig span's length.
func (a Alignment) ContigLen() uint32 { return a.ContigEnd - a.ContigStart }

// Interval is a half-open [Start, End) range on a named contig, used as a
// query input. Callers working in 1-based closed coordinates must convert
// before constructing one.
type Interval struct {
	Contig string
	Start  uint32
	End    uint32
}

// String renders the interval as "contig:start-end", matching the original
// tool's diagnostic format.
func (iv Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", iv.Contig, iv.Start, iv.End)
}

// Empty reports whether the interval contains no positions.
func (iv Interval) Empty() bool { return iv.End <= iv.Start }

// Overlaps reports whether iv and a contig span [start, end) intersect,
// using the half-open/half-open convention fixed by the store's interval
// index (see store.Store.AlignmentsInInterval).
func (iv Interval) Overlaps(start, end uint32) bool {
	return start < iv.End && end > iv.Start
}
