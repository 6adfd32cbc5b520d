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

// Package store holds the in-memory columnar repository of contigs, reads,
// deduplicated per-contig mutations and alignments, together with its
// binary persistence format and interval-overlap query primitive.
package store

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/alnstore/aln"
)

// Store is the alignment repository. The zero value is not usable; construct
// one with New.
//
// A Store has two phases. During the build phase (loaded == false),
// AddOrGetContig, AddOrGetRead, AddMutation and AddAlignment may be called
// freely. The first Save or Load flips loaded to true, after which mutation
// insertion is rejected: the store is thereafter immutable for ingestion,
// though its alignment index is (re)organized so queries run in sublinear
// time.
type Store struct {
	contigs     []aln.Contig
	contigByID  map[string]uint32
	reads       []aln.Read
	readByID    map[string]uint32
	contigMuts  [][]aln.Mutation
	mutKeyIndex []map[uint64]uint32 // per-contig build-phase dedup map; nil after Save or Load
	alignments  []aln.Alignment

	contigAlnIdxs      [][]uint32 // per-contig alignment indices, sorted by contig_start ascending
	maxAlignmentLength uint32
	organized          bool
	loaded             bool
}

// New returns an empty store ready for the build phase.
func New() *Store {
	return &Store{
		contigByID: make(map[string]uint32),
		readByID:   make(map[string]uint32),
	}
}

// Loaded reports whether the store has passed through Save or Load and is
// therefore immutable for further ingestion.
func (s *Store) Loaded() bool { return s.loaded }

// NumContigs returns the number of interned contigs.
func (s *Store) NumContigs() int { return len(s.contigs) }

// NumReads returns the number of interned reads.
func (s *Store) NumReads() int { return len(s.reads) }

// NumAlignments returns the number of stored alignments.
func (s *Store) NumAlignments() int { return len(s.alignments) }

// AddOrGetContig interns id, recording length on first occurrence only
// (first occurrence wins, matching the ingester's contig-length column,
// field 6 counting from 0).
// It returns the contig's stable index.
func (s *Store) AddOrGetContig(id string, length uint32) (uint32, error) {
	if s.loaded {
		return 0, errors.E("store: cannot add contig after save/load")
	}
	if idx, ok := s.contigByID[id]; ok {
		return idx, nil
	}
	idx := uint32(len(s.contigs))
	s.contigs = append(s.contigs, aln.Contig{ID: id, Length: length})
	s.contigByID[id] = idx
	s.contigMuts = append(s.contigMuts, nil)
	s.mutKeyIndex = append(s.mutKeyIndex, make(map[uint64]uint32))
	return idx, nil
}

// AddOrGetRead interns id, recording length on first occurrence only. It
// returns the read's stable index.
func (s *Store) AddOrGetRead(id string, length uint32) (uint32, error) {
	if s.loaded {
		return 0, errors.E("store: cannot add read after save/load")
	}
	if idx, ok := s.readByID[id]; ok {
		return idx, nil
	}
	idx := uint32(len(s.reads))
	s.reads = append(s.reads, aln.Read{ID: id, Length: length})
	s.readByID[id] = idx
	return idx, nil
}

// AddMutation deduplicates m against contigIndex's mutation table, returning
// the index of the (possibly pre-existing) entry. It fails once the store
// has passed through Save or Load.
func (s *Store) AddMutation(contigIndex uint32, m aln.Mutation) (uint32, error) {
	if s.loaded {
		return 0, errors.E("store: cannot add mutation after save/load")
	}
	if int(contigIndex) >= len(s.contigs) {
		return 0, errors.E("store: unknown contig index", contigIndex)
	}
	key := m.Key(contigIndex)
	if idx, ok := s.mutKeyIndex[contigIndex][key]; ok {
		return idx, nil
	}
	idx := uint32(len(s.contigMuts[contigIndex]))
	s.contigMuts[contigIndex] = append(s.contigMuts[contigIndex], m)
	s.mutKeyIndex[contigIndex][key] = idx
	return idx, nil
}

// AddAlignment appends a to the alignment table after validating its basic
// invariants. It fails once the store has passed through Save or Load.
func (s *Store) AddAlignment(a aln.Alignment) error {
	if s.loaded {
		return errors.E("store: cannot add alignment after save/load")
	}
	if int(a.ContigIndex) >= len(s.contigs) {
		return errors.E("store: alignment references unknown contig index", a.ContigIndex)
	}
	if int(a.ReadIndex) >= len(s.reads) {
		return errors.E("store: alignment references unknown read index", a.ReadIndex)
	}
	if a.ReadEnd <= a.ReadStart {
		return errors.E("store: alignment read span is not positive-length", a.ReadStart, a.ReadEnd)
	}
	if a.ContigEnd <= a.ContigStart {
		return errors.E("store: alignment contig span is not positive-length", a.ContigStart, a.ContigEnd)
	}
	muts := s.contigMuts[a.ContigIndex]
	for _, mi := range a.MutationIdxs {
		if int(mi) >= len(muts) {
			return errors.E("store: alignment references unknown mutation index", mi)
		}
		pos := muts[mi].Position
		if pos < a.ContigStart || pos >= a.ContigEnd {
			return errors.E("store: alignment mutation position out of contig span", pos)
		}
	}
	s.alignments = append(s.alignments, a)
	s.organized = false
	return nil
}

// ContigIndex looks up a contig's stable index by id.
func (s *Store) ContigIndex(id string) (uint32, bool) {
	idx, ok := s.contigByID[id]
	return idx, ok
}

// ReadIndex looks up a read's stable index by id.
func (s *Store) ReadIndex(id string) (uint32, bool) {
	idx, ok := s.readByID[id]
	return idx, ok
}

// ContigID returns the contig id at index, or false if out of range.
func (s *Store) ContigID(index uint32) (string, bool) {
	if int(index) >= len(s.contigs) {
		return "", false
	}
	return s.contigs[index].ID, true
}

// ReadID returns the read id at index, or false if out of range.
func (s *Store) ReadID(index uint32) (string, bool) {
	if int(index) >= len(s.reads) {
		return "", false
	}
	return s.reads[index].ID, true
}

// ContigLength returns the recorded length of the contig at index.
func (s *Store) ContigLength(index uint32) (uint32, bool) {
	if int(index) >= len(s.contigs) {
		return 0, false
	}
	return s.contigs[index].Length, true
}

// Mutation returns the mutation at mutationIndex within contigIndex's table.
func (s *Store) Mutation(contigIndex, mutationIndex uint32) (aln.Mutation, bool) {
	if int(contigIndex) >= len(s.contigMuts) {
		return aln.Mutation{}, false
	}
	muts := s.contigMuts[contigIndex]
	if int(mutationIndex) >= len(muts) {
		return aln.Mutation{}, false
	}
	return muts[mutationIndex], true
}

// ContigMutations returns the full, position-unsorted mutation table for
// contigIndex, in table (insertion) order. The returned slice must not be
// modified.
func (s *Store) ContigMutations(contigIndex uint32) []aln.Mutation {
	if int(contigIndex) >= len(s.contigMuts) {
		return nil
	}
	return s.contigMuts[contigIndex]
}

// Alignment returns the alignment at index.
func (s *Store) Alignment(index uint32) (aln.Alignment, bool) {
	if int(index) >= len(s.alignments) {
		return aln.Alignment{}, false
	}
	return s.alignments[index], true
}

// Alignments returns every stored alignment in insertion order. The
// returned slice must not be modified.
func (s *Store) Alignments() []aln.Alignment { return s.alignments }

// Organize (re)computes the per-contig sorted alignment index and
// max_alignment_length. It is idempotent and is called automatically by
// Save, Load and AlignmentsInInterval; exposed so a caller building and
// querying a store in the same process without an intervening save/load
// (as the query engines' unit tests do) can force it explicitly.
func (s *Store) Organize() {
	if s.organized {
		return
	}
	s.contigAlnIdxs = make([][]uint32, len(s.contigs))
	s.maxAlignmentLength = 0
	for i, a := range s.alignments {
		s.contigAlnIdxs[a.ContigIndex] = append(s.contigAlnIdxs[a.ContigIndex], uint32(i))
		if l := a.ContigLen(); l > s.maxAlignmentLength {
			s.maxAlignmentLength = l
		}
	}
	for _, idxs := range s.contigAlnIdxs {
		sort.Slice(idxs, func(i, j int) bool {
			return s.alignments[idxs[i]].ContigStart < s.alignments[idxs[j]].ContigStart
		})
	}
	s.organized = true
}

// AlignmentsInInterval returns every alignment overlapping iv, in
// contig_start ascending order. The overlap test is the half-open/half-open
// intersection contig_start < iv.End && contig_end > iv.Start.
//
// Unknown contig ids are an error; a known contig with no alignments
// returns an empty, non-nil slice.
func (s *Store) AlignmentsInInterval(iv aln.Interval) ([]aln.Alignment, error) {
	s.Organize()
	contigIndex, ok := s.contigByID[iv.Contig]
	if !ok {
		return nil, errors.E("store: unknown contig", iv.Contig)
	}
	indices := s.contigAlnIdxs[contigIndex]
	if len(indices) == 0 {
		return []aln.Alignment{}, nil
	}

	minPossibleStart := uint32(0)
	if iv.Start+1 > s.maxAlignmentLength {
		minPossibleStart = iv.Start + 1 - s.maxAlignmentLength
	}
	itStart := sort.Search(len(indices), func(i int) bool {
		return s.alignments[indices[i]].ContigStart >= minPossibleStart
	})
	itEnd := sort.Search(len(indices), func(i int) bool {
		return s.alignments[indices[i]].ContigStart > iv.End
	})

	out := make([]aln.Alignment, 0, itEnd-itStart)
	for _, idx := range indices[itStart:itEnd] {
		a := s.alignments[idx]
		if iv.Overlaps(a.ContigStart, a.ContigEnd) {
			out = append(out, a)
		}
	}
	return out, nil
}
