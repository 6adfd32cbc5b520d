package store

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/cstag"
)

// ExportTabDelimited dumps the entire store as two flat TSV files,
// prefix+"_alignments.tsv" and prefix+"_mutations.tsv", independent of any
// query interval and without the height/cs_tag-regeneration columns the
// query engines compute — a debugging aid for inspecting a store's
// contents directly.
func (s *Store) ExportTabDelimited(ctx context.Context, prefix string) (err error) {
	alnFile, err := file.Create(ctx, prefix+"_alignments.tsv")
	if err != nil {
		return errors.E(err, "store: creating", prefix+"_alignments.tsv")
	}
	defer file.CloseAndReport(ctx, alnFile, &err)
	alnW := tsv.NewWriter(alnFile.Writer(ctx))
	alnW.WriteString("alignment_index")
	alnW.WriteString("read_id")
	alnW.WriteString("contig_id")
	alnW.WriteString("read_start")
	alnW.WriteString("read_end")
	alnW.WriteString("contig_start")
	alnW.WriteString("contig_end")
	alnW.WriteString("is_reverse")
	alnW.WriteString("mutation_count")
	if err = alnW.EndLine(); err != nil {
		return errors.E(err, "store: writing", prefix+"_alignments.tsv")
	}

	mutFile, err := file.Create(ctx, prefix+"_mutations.tsv")
	if err != nil {
		return errors.E(err, "store: creating", prefix+"_mutations.tsv")
	}
	defer file.CloseAndReport(ctx, mutFile, &err)
	mutW := tsv.NewWriter(mutFile.Writer(ctx))
	mutW.WriteString("alignment_index")
	mutW.WriteString("read_id")
	mutW.WriteString("contig_id")
	mutW.WriteString("mutation_type")
	mutW.WriteString("mutation_position")
	mutW.WriteString("mutation_desc")
	if err = mutW.EndLine(); err != nil {
		return errors.E(err, "store: writing", prefix+"_mutations.tsv")
	}

	for i, a := range s.alignments {
		readID, _ := s.ReadID(a.ReadIndex)
		contigID, _ := s.ContigID(a.ContigIndex)

		alnW.WriteUint32(uint32(i))
		alnW.WriteString(readID)
		alnW.WriteString(contigID)
		alnW.WriteUint32(a.ReadStart)
		alnW.WriteUint32(a.ReadEnd)
		alnW.WriteUint32(a.ContigStart)
		alnW.WriteUint32(a.ContigEnd)
		alnW.WriteString(strconvBool(a.IsReverse))
		alnW.WriteUint32(uint32(len(a.MutationIdxs)))
		if err = alnW.EndLine(); err != nil {
			return errors.E(err, "store: writing", prefix+"_alignments.tsv")
		}

		for _, mi := range a.MutationIdxs {
			m, ok := s.Mutation(a.ContigIndex, mi)
			if !ok {
				return errors.E("store: export: alignment references unknown mutation index", mi)
			}
			mutW.WriteUint32(uint32(i))
			mutW.WriteString(readID)
			mutW.WriteString(contigID)
			mutW.WriteString(m.Type.String())
			mutW.WriteUint32(m.Position)
			mutW.WriteString(m.String())
			if err = mutW.EndLine(); err != nil {
				return errors.E(err, "store: writing", prefix+"_mutations.tsv")
			}
		}
	}

	if err = alnW.Flush(); err != nil {
		return errors.E(err, "store: flushing", prefix+"_alignments.tsv")
	}
	if err = mutW.Flush(); err != nil {
		return errors.E(err, "store: flushing", prefix+"_mutations.tsv")
	}
	return nil
}

func strconvBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RegenerateCSTag regenerates the cs difference string for alignment a,
// the same way the full query engine does, for callers that want it
// without running a query (e.g. ExportTabDelimited's mutation-desc column
// could be extended to include it).
func RegenerateCSTag(s *Store, a aln.Alignment) (string, error) {
	muts := make([]aln.Mutation, 0, len(a.MutationIdxs))
	for _, mi := range a.MutationIdxs {
		m, ok := s.Mutation(a.ContigIndex, mi)
		if !ok {
			return "", errors.E("store: alignment references unknown mutation index", mi)
		}
		muts = append(muts, m)
	}
	return cstag.Encode(muts, a.ContigStart, a.ContigEnd)
}
