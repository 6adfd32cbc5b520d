// Package bin implements the fixed-width bin aggregation query engine:
// sequenced-basepair coverage and mutation counts accumulated into bins of
// a caller-chosen size.
package bin

import (
	"context"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/store"
)

type binKey struct {
	contigIndex uint32
	binStart    uint32
}

type binData struct {
	sequencedBasepairs uint64
	mutationCount      uint64
}

// Row is one line of the bin output table.
type Row struct {
	Contig             string
	BinStart           uint32
	BinEnd             uint32
	BinLength          uint32
	SequencedBasepairs uint64
	MutationCount      uint64
}

// Run aggregates sequenced-basepair overlap and mutation counts into
// fixed-width bins across every input interval. binSize must be positive.
func Run(s *store.Store, intervals []aln.Interval, binSize uint32) ([]Row, error) {
	if binSize == 0 {
		return nil, errors.E("query/bin: binsize must be positive")
	}
	results := make(map[binKey]*binData)

	for _, iv := range intervals {
		if iv.End == 0 || iv.Start >= iv.End {
			continue
		}
		contigIndex, ok := s.ContigIndex(iv.Contig)
		if !ok {
			return nil, errors.E("query/bin: unknown contig", iv.Contig)
		}
		adjustedStart := (iv.Start / binSize) * binSize
		lastBinStart := ((iv.End - 1) / binSize) * binSize

		for binStart := adjustedStart; binStart <= lastBinStart; binStart += binSize {
			key := binKey{contigIndex, binStart}
			if _, ok := results[key]; !ok {
				results[key] = &binData{}
			}
		}

		alignments, err := s.AlignmentsInInterval(iv)
		if err != nil {
			return nil, errors.E(err, "query/bin: interval", iv.String())
		}
		for _, a := range alignments {
			for binStart := adjustedStart; binStart <= lastBinStart; binStart += binSize {
				binEnd := binStart + binSize
				effectiveStart := maxU32(a.ContigStart, binStart, iv.Start)
				effectiveEnd := minU32(a.ContigEnd, binEnd, iv.End)
				if effectiveEnd <= effectiveStart {
					continue
				}
				results[binKey{contigIndex, binStart}].sequencedBasepairs += uint64(effectiveEnd - effectiveStart)
			}

			for _, mi := range a.MutationIdxs {
				m, ok := s.Mutation(a.ContigIndex, mi)
				if !ok {
					return nil, errors.E("query/bin: alignment references unknown mutation index", mi)
				}
				if m.Position < iv.Start || m.Position >= iv.End {
					continue
				}
				mutationBinStart := (m.Position / binSize) * binSize
				if d, ok := results[binKey{contigIndex, mutationBinStart}]; ok {
					d.mutationCount++
				}
			}
		}
	}

	keys := make([]binKey, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].contigIndex != keys[j].contigIndex {
			return keys[i].contigIndex < keys[j].contigIndex
		}
		return keys[i].binStart < keys[j].binStart
	})

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		data := results[key]
		contigID, _ := s.ContigID(key.contigIndex)
		rows = append(rows, Row{
			Contig:             contigID,
			BinStart:           key.binStart,
			BinEnd:             key.binStart + binSize,
			BinLength:          binSize,
			SequencedBasepairs: data.sequencedBasepairs,
			MutationCount:      data.mutationCount,
		})
	}
	return rows, nil
}

func maxU32(vals ...uint32) uint32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minU32(vals ...uint32) uint32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// WriteTSV writes rows to prefix+"_bins.tsv".
func WriteTSV(ctx context.Context, prefix string, rows []Row) (err error) {
	f, err := file.Create(ctx, prefix+"_bins.tsv")
	if err != nil {
		return errors.E(err, "query/bin: creating", prefix+"_bins.tsv")
	}
	defer file.CloseAndReport(ctx, f, &err)

	w := tsv.NewWriter(f.Writer(ctx))
	for _, col := range []string{"contig", "bin_start", "bin_end", "bin_length", "sequenced_bp", "mutation_count"} {
		w.WriteString(col)
	}
	if err = w.EndLine(); err != nil {
		return errors.E(err, "query/bin: writing header")
	}
	for _, r := range rows {
		w.WriteString(r.Contig)
		w.WriteUint32(r.BinStart)
		w.WriteUint32(r.BinEnd)
		w.WriteUint32(r.BinLength)
		w.WriteInt64(int64(r.SequencedBasepairs))
		w.WriteInt64(int64(r.MutationCount))
		if err = w.EndLine(); err != nil {
			return errors.E(err, "query/bin: writing row")
		}
	}
	return w.Flush()
}
