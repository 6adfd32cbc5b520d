// Package pileup implements the per-position query engine: coverage and
// variant-count aggregation across a set of intervals, with deterministic
// row ordering and REF row synthesis.
package pileup

import (
	"context"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/store"
)

// Mode selects which positions Run keeps in its output rows.
type Mode int

const (
	// All emits every position pre-populated by the input intervals.
	All Mode = iota
	// Covered skips positions with zero coverage.
	Covered
	// Mutated skips positions with no observed variant.
	Mutated
)

// ModeFromString parses the external "all"/"covered"/"mutated" spelling.
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "all":
		return All, nil
	case "covered":
		return Covered, nil
	case "mutated":
		return Mutated, nil
	default:
		return 0, errors.E("query/pileup: invalid report mode", s)
	}
}

type posKey struct {
	contigIndex uint32
	pos         uint32
}

type posData struct {
	coverage       int
	mutationCounts map[string]int
}

// Row is one line of the pileup output table; Position is 1-based.
type Row struct {
	Contig   string
	Position uint32
	Variant  string
	Count    int
	Coverage int
	Cumsum   int
}

// Run aggregates coverage and mutation counts over every position named by
// intervals and returns the filtered, ordered output rows.
func Run(s *store.Store, intervals []aln.Interval, mode Mode) ([]Row, error) {
	results := make(map[posKey]*posData)

	totalPositions := 0
	for _, iv := range intervals {
		contigIndex, ok := s.ContigIndex(iv.Contig)
		if !ok {
			return nil, errors.E("query/pileup: unknown contig", iv.Contig)
		}
		for pos := iv.Start; pos < iv.End; pos++ {
			key := posKey{contigIndex, pos}
			if _, ok := results[key]; !ok {
				results[key] = &posData{mutationCounts: make(map[string]int)}
			}
			totalPositions++
		}
	}
	log.Debug.Printf("query/pileup: pre-populated %d positions", totalPositions)

	for _, iv := range intervals {
		alignments, err := s.AlignmentsInInterval(iv)
		if err != nil {
			return nil, errors.E(err, "query/pileup: interval", iv.String())
		}
		for _, a := range alignments {
			for pos := a.ContigStart; pos < a.ContigEnd; pos++ {
				if d, ok := results[posKey{a.ContigIndex, pos}]; ok {
					d.coverage++
				}
			}
			for _, mi := range a.MutationIdxs {
				m, ok := s.Mutation(a.ContigIndex, mi)
				if !ok {
					return nil, errors.E("query/pileup: alignment references unknown mutation index", mi)
				}
				if d, ok := results[posKey{a.ContigIndex, m.Position}]; ok {
					d.mutationCounts[m.String()]++
				}
			}
		}
	}

	keys := make([]posKey, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].contigIndex != keys[j].contigIndex {
			return keys[i].contigIndex < keys[j].contigIndex
		}
		return keys[i].pos < keys[j].pos
	})

	var rows []Row
	for _, key := range keys {
		data := results[key]
		if mode == Covered && data.coverage == 0 {
			continue
		}
		if mode == Mutated && len(data.mutationCounts) == 0 {
			continue
		}

		contigID, _ := s.ContigID(key.contigIndex)
		totalMutated := 0
		type variant struct {
			name  string
			count int
		}
		variants := make([]variant, 0, len(data.mutationCounts))
		for name, count := range data.mutationCounts {
			variants = append(variants, variant{name, count})
			totalMutated += count
		}
		refCount := data.coverage - totalMutated
		if refCount < 0 {
			log.Panicf("query/pileup: negative ref_count at %s:%d", contigID, key.pos)
		}
		sort.Slice(variants, func(i, j int) bool {
			if variants[i].count != variants[j].count {
				return variants[i].count > variants[j].count
			}
			return variants[i].name < variants[j].name
		})

		cumsum := 0
		for _, v := range variants {
			cumsum += v.count
			rows = append(rows, Row{
				Contig:   contigID,
				Position: key.pos + 1,
				Variant:  v.name,
				Count:    v.count,
				Coverage: data.coverage,
				Cumsum:   cumsum,
			})
		}
		if refCount > 0 || (data.coverage == 0 && mode == All) {
			cumsum += refCount
			rows = append(rows, Row{
				Contig:   contigID,
				Position: key.pos + 1,
				Variant:  "REF",
				Count:    refCount,
				Coverage: data.coverage,
				Cumsum:   cumsum,
			})
		}
		if cumsum != data.coverage {
			log.Panicf("query/pileup: cumulative count does not equal coverage at %s:%d", contigID, key.pos)
		}
	}
	return rows, nil
}

// WriteTSV writes rows to prefix+"_pileup.tsv".
func WriteTSV(ctx context.Context, prefix string, rows []Row) (err error) {
	f, err := file.Create(ctx, prefix+"_pileup.tsv")
	if err != nil {
		return errors.E(err, "query/pileup: creating", prefix+"_pileup.tsv")
	}
	defer file.CloseAndReport(ctx, f, &err)

	w := tsv.NewWriter(f.Writer(ctx))
	for _, col := range []string{"contig", "position", "variant", "count", "coverage", "cumsum"} {
		w.WriteString(col)
	}
	if err = w.EndLine(); err != nil {
		return errors.E(err, "query/pileup: writing header")
	}
	for _, r := range rows {
		w.WriteString(r.Contig)
		w.WriteUint32(r.Position)
		w.WriteString(r.Variant)
		w.WriteInt64(int64(r.Count))
		w.WriteInt64(int64(r.Coverage))
		w.WriteInt64(int64(r.Cumsum))
		if err = w.EndLine(); err != nil {
			return errors.E(err, "query/pileup: writing row")
		}
	}
	return w.Flush()
}
