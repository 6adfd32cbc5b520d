// Package full implements the per-alignment query engine: for each input
// interval it enumerates overlapping alignments and their mutations,
// regenerating each alignment's cs tag and assigning a non-overlap layout
// height.
package full

import (
	"context"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/cstag"
	"github.com/grailbio/alnstore/store"
)

// HeightStyle selects one of the two non-overlap layout policies.
type HeightStyle int

const (
	// ByCoord packs alignments greedily by contig_start order.
	ByCoord HeightStyle = iota
	// ByMutations packs alignments in mutation-density descending order.
	ByMutations
)

// AlignmentRow is one row of the alignments output table.
type AlignmentRow struct {
	AlignmentIndex uint64
	ReadID         string
	ContigID       string
	ReadStart      uint32
	ReadEnd        uint32
	ContigStart    uint32
	ContigEnd      uint32
	IsReverse      bool
	CSTag          string
	MutationCount  int
	Height         int
}

// MutationRow is one row of the mutations output table.
type MutationRow struct {
	AlignmentIndex uint64
	ReadID         string
	ContigID       string
	Type           aln.MutationType
	Position       uint32
	Desc           string
	Height         int
}

// Result is the full engine's output: one row set per table.
type Result struct {
	Alignments []AlignmentRow
	Mutations  []MutationRow
}

// Run enumerates every alignment overlapping any of intervals (processed
// in input order, each interval's alignments in store order) and assigns
// layout heights per style.
func Run(s *store.Store, intervals []aln.Interval, style HeightStyle) (*Result, error) {
	res := &Result{}
	var nextIndex uint64

	for _, iv := range intervals {
		alignments, err := s.AlignmentsInInterval(iv)
		if err != nil {
			return nil, errors.E(err, "query/full: interval", iv.String())
		}
		log.Debug.Printf("query/full: interval %s matched %d alignments", iv.String(), len(alignments))

		for _, a := range alignments {
			readID, _ := s.ReadID(a.ReadIndex)
			contigID, _ := s.ContigID(a.ContigIndex)

			muts := make([]aln.Mutation, 0, len(a.MutationIdxs))
			for _, mi := range a.MutationIdxs {
				m, ok := s.Mutation(a.ContigIndex, mi)
				if !ok {
					return nil, errors.E("query/full: alignment references unknown mutation index", mi)
				}
				muts = append(muts, m)
			}
			csTag, err := cstag.Encode(muts, a.ContigStart, a.ContigEnd)
			if err != nil {
				return nil, errors.E(err, "query/full: regenerating cs tag")
			}

			index := nextIndex
			nextIndex++
			res.Alignments = append(res.Alignments, AlignmentRow{
				AlignmentIndex: index,
				ReadID:         readID,
				ContigID:       contigID,
				ReadStart:      a.ReadStart,
				ReadEnd:        a.ReadEnd,
				ContigStart:    a.ContigStart,
				ContigEnd:      a.ContigEnd,
				IsReverse:      a.IsReverse,
				CSTag:          csTag,
				MutationCount:  len(muts),
			})
			for _, m := range muts {
				res.Mutations = append(res.Mutations, MutationRow{
					AlignmentIndex: index,
					ReadID:         readID,
					ContigID:       contigID,
					Type:           m.Type,
					Position:       m.Position,
					Desc:           m.String(),
				})
			}
		}
	}

	var heights []int
	switch style {
	case ByCoord:
		heights = heightsByCoord(res.Alignments)
	case ByMutations:
		heights = heightsByMutations(res.Alignments)
	default:
		return nil, errors.E("query/full: unknown height style")
	}
	for i := range res.Alignments {
		res.Alignments[i].Height = heights[i]
	}
	byIndex := make(map[uint64]int, len(res.Alignments))
	for i, a := range res.Alignments {
		byIndex[a.AlignmentIndex] = heights[i]
	}
	for i := range res.Mutations {
		res.Mutations[i].Height = byIndex[res.Mutations[i].AlignmentIndex]
	}

	return res, nil
}

// heightsByCoord assigns the greedy non-overlap packing height described in
// the engine's design: group by contig, sort by contig_start, and for each
// alignment take the lowest level whose running end is <= its start.
func heightsByCoord(rows []AlignmentRow) []int {
	heights := make([]int, len(rows))
	byContig := make(map[string][]int) // contig -> row indices
	for i, r := range rows {
		byContig[r.ContigID] = append(byContig[r.ContigID], i)
	}
	for _, rowIdxs := range byContig {
		sort.Slice(rowIdxs, func(i, j int) bool {
			return rows[rowIdxs[i]].ContigStart < rows[rowIdxs[j]].ContigStart
		})
		var endOf []uint32
		for _, ri := range rowIdxs {
			r := rows[ri]
			level := 0
			for level < len(endOf) && endOf[level] > r.ContigStart {
				level++
			}
			if level == len(endOf) {
				endOf = append(endOf, 0)
			}
			heights[ri] = level
			endOf[level] = r.ContigEnd
		}
	}
	return heights
}

type packedInterval struct{ start, end uint32 }

// heightsByMutations assigns the density-sorted packed-level height
// described in the engine's design: alignments are considered in
// descending mutation-density order (ties preserve input order), each
// landing on the smallest height level whose occupied intervals (per
// contig) don't overlap its contig span.
func heightsByMutations(rows []AlignmentRow) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	density := func(r AlignmentRow) float64 {
		length := r.ContigEnd - r.ContigStart
		if length == 0 {
			length = 1
		}
		return float64(r.MutationCount) / float64(length)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return density(rows[order[i]]) > density(rows[order[j]])
	})

	heights := make([]int, len(rows))
	levelsByContig := make(map[string][][]packedInterval)

	for _, ri := range order {
		r := rows[ri]
		levels := levelsByContig[r.ContigID]
		level := 0
		for {
			if level >= len(levels) {
				levels = append(levels, nil)
				break
			}
			if !hasOverlap(levels[level], r.ContigStart, r.ContigEnd) {
				break
			}
			level++
		}
		levels[level] = insertSorted(levels[level], r.ContigStart, r.ContigEnd)
		levelsByContig[r.ContigID] = levels
		heights[ri] = level
	}
	return heights
}

// hasOverlap mirrors the original binary-search check: intervals is sorted
// by start; find the first interval whose end is > start and check it (and
// its predecessor) for overlap with [start, end).
func hasOverlap(intervals []packedInterval, start, end uint32) bool {
	if len(intervals) == 0 {
		return false
	}
	i := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].end > start
	})
	if i < len(intervals) && intervals[i].start < end {
		return true
	}
	if i > 0 && intervals[i-1].end > start {
		return true
	}
	return false
}

func insertSorted(intervals []packedInterval, start, end uint32) []packedInterval {
	i := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].start >= start
	})
	intervals = append(intervals, packedInterval{})
	copy(intervals[i+1:], intervals[i:])
	intervals[i] = packedInterval{start, end}
	return intervals
}

// WriteTSV writes Result's two tables to prefix+"_alignments.tsv" and
// prefix+"_mutations.tsv".
func (res *Result) WriteTSV(ctx context.Context, prefix string) (err error) {
	alnFile, err := file.Create(ctx, prefix+"_alignments.tsv")
	if err != nil {
		return errors.E(err, "query/full: creating", prefix+"_alignments.tsv")
	}
	defer file.CloseAndReport(ctx, alnFile, &err)
	alnW := tsv.NewWriter(alnFile.Writer(ctx))
	for _, col := range []string{"alignment_index", "read_id", "contig_id", "read_start", "read_end",
		"contig_start", "contig_end", "is_reverse", "cs_tag", "mutation_count", "height"} {
		alnW.WriteString(col)
	}
	if err = alnW.EndLine(); err != nil {
		return errors.E(err, "query/full: writing header")
	}
	for _, r := range res.Alignments {
		alnW.WriteString(strconv.FormatUint(r.AlignmentIndex, 10))
		alnW.WriteString(r.ReadID)
		alnW.WriteString(r.ContigID)
		alnW.WriteUint32(r.ReadStart)
		alnW.WriteUint32(r.ReadEnd)
		alnW.WriteUint32(r.ContigStart)
		alnW.WriteUint32(r.ContigEnd)
		alnW.WriteString(boolString(r.IsReverse))
		alnW.WriteString(r.CSTag)
		alnW.WriteUint32(uint32(r.MutationCount))
		alnW.WriteUint32(uint32(r.Height))
		if err = alnW.EndLine(); err != nil {
			return errors.E(err, "query/full: writing row")
		}
	}
	if err = alnW.Flush(); err != nil {
		return errors.E(err, "query/full: flushing", prefix+"_alignments.tsv")
	}

	mutFile, err := file.Create(ctx, prefix+"_mutations.tsv")
	if err != nil {
		return errors.E(err, "query/full: creating", prefix+"_mutations.tsv")
	}
	defer file.CloseAndReport(ctx, mutFile, &err)
	mutW := tsv.NewWriter(mutFile.Writer(ctx))
	for _, col := range []string{"alignment_index", "read_id", "contig_id", "mutation_type",
		"mutation_position", "mutation_desc", "height"} {
		mutW.WriteString(col)
	}
	if err = mutW.EndLine(); err != nil {
		return errors.E(err, "query/full: writing header")
	}
	for _, r := range res.Mutations {
		mutW.WriteString(strconv.FormatUint(r.AlignmentIndex, 10))
		mutW.WriteString(r.ReadID)
		mutW.WriteString(r.ContigID)
		mutW.WriteString(r.Type.String())
		mutW.WriteUint32(r.Position)
		mutW.WriteString(r.Desc)
		mutW.WriteUint32(uint32(r.Height))
		if err = mutW.EndLine(); err != nil {
			return errors.E(err, "query/full: writing row")
		}
	}
	return mutW.Flush()
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
