// Package ingest parses line-oriented tab-delimited pairwise-mapping
// records into a store.Store, decoding each record's cs difference string
// into typed mutations and optionally verifying them.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/alnstore/aln"
	"github.com/grailbio/alnstore/cstag"
	"github.com/grailbio/alnstore/mutate"
	"github.com/grailbio/alnstore/store"
)

const (
	minFields = 12
	maxBadAlignments = 10
)

// Config configures one Ingest call.
type Config struct {
	// Verify enables the optional full-verification path (C4): the
	// mutated reference fragment is compared to the actual read segment
	// using ContigSeqs/ReadSeqs. Requires both maps to be populated.
	Verify bool
	// QuitOnError stops ingestion as soon as a single full-verification
	// failure occurs, instead of continuing until maxBadAlignments (10)
	// failures have been counted.
	QuitOnError bool
	// MaxRecords caps the number of input lines consumed; 0 means
	// unlimited.
	MaxRecords int
	// ContigSeqs and ReadSeqs back the optional full-verification path;
	// both are name -> bases lookups, the only way this package consumes
	// a sequence-reader collaborator.
	ContigSeqs map[string]string
	ReadSeqs   map[string]string
}

// Stats aggregates what happened during one Ingest call, so a library
// caller with no CLI can inspect the outcome without scraping log output.
type Stats struct {
	RecordsRead     int
	AlignmentsAdded int
	MutationsSeen   int
	SkippedRecords  int
	BadAlignments   int
}

// Ingest reads tab-delimited pairwise-mapping lines from r and emits
// contigs, reads, mutations and alignments into s. s must still be in its
// build phase.
func Ingest(r io.Reader, s *store.Store, cfg Config) (*Stats, error) {
	if s.Loaded() {
		return nil, errors.E("ingest: store is no longer in build phase")
	}
	stats := &Stats{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if cfg.MaxRecords != 0 && lineNo > cfg.MaxRecords {
			break
		}
		if lineNo%10000 == 0 {
			log.Debug.Printf("ingest: processed %d records", lineNo)
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		stats.RecordsRead++

		skip, bad, err := ingestLine(line, lineNo, s, cfg, stats)
		if err != nil {
			return stats, err
		}
		if skip {
			stats.SkippedRecords++
			continue
		}
		if bad {
			stats.BadAlignments++
			if cfg.QuitOnError {
				log.Error.Printf("ingest: verification failure on line %d, quitting", lineNo)
				break
			}
			if stats.BadAlignments >= maxBadAlignments {
				log.Error.Printf("ingest: reached maximum bad alignments (%d), stopping", maxBadAlignments)
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.E(err, "ingest: reading input")
	}
	return stats, nil
}

// ingestLine parses and applies one record. skip means the record was
// dropped (missing/unsupported cs tag) and no alignment was added; bad
// means full verification failed but the alignment was still added to
// the store (mirroring the original tool's behavior of counting bad
// alignments without discarding them).
func ingestLine(line string, lineNo int, s *store.Store, cfg Config, stats *Stats) (skip, bad bool, err error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		return false, false, errors.E(fmt.Sprintf("ingest: line %d has %d fields, want at least %d", lineNo, len(fields), minFields))
	}

	readID := fields[0]
	readLength, err := parseUint32(fields[1])
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "read length")
	}
	readStart, err := parseUint32(fields[2])
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "read start")
	}
	readEnd, err := parseUint32(fields[3])
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "read end")
	}
	isReverse := fields[4] == "-"
	contigID := fields[5]
	contigLength, err := parseUint32(fields[6])
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "contig length")
	}
	contigStart, err := parseUint32(fields[7])
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "contig start")
	}
	contigEnd, err := parseUint32(fields[8])
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "contig end")
	}
	if readEnd <= readStart {
		return false, false, errors.E(fmt.Sprintf("ingest: line %d: read coordinates not half-open (end %d <= start %d)", lineNo, readEnd, readStart))
	}
	if contigEnd <= contigStart {
		return false, false, errors.E(fmt.Sprintf("ingest: line %d: contig coordinates not half-open (end %d <= start %d)", lineNo, contigEnd, contigStart))
	}

	readIndex, err := s.AddOrGetRead(readID, readLength)
	if err != nil {
		return false, false, err
	}
	contigIndex, err := s.AddOrGetContig(contigID, contigLength)
	if err != nil {
		return false, false, err
	}

	csString, found := findCSTag(fields[minFields:])
	if !found {
		log.Error.Printf("ingest: line %d: missing cs:Z: tag, skipping", lineNo)
		return true, false, nil
	}

	muts, cstagSkip, err := cstag.Decode(csString, contigStart)
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "decoding cs string")
	}
	if cstagSkip {
		log.Error.Printf("ingest: line %d: cs string %q contains an unsupported opcode, skipping", lineNo, csString)
		return true, false, nil
	}

	mutIdxs := make([]uint32, 0, len(muts))
	for _, m := range muts {
		mi, err := s.AddMutation(contigIndex, m)
		if err != nil {
			return false, false, err
		}
		mutIdxs = append(mutIdxs, mi)
	}
	stats.MutationsSeen += len(muts)

	regenerated, err := cstag.Encode(muts, contigStart, contigEnd)
	if err != nil {
		return false, false, errors.E(err, "ingest: line", lineNo, "regenerating cs string")
	}
	if regenerated != csString {
		return false, false, errors.E(fmt.Sprintf(
			"ingest: line %d: cs-tag round-trip mismatch\noriginal : %s\ngenerated: %s\n%s",
			lineNo, csString, regenerated, diffOps(csString, regenerated)))
	}

	a := aln.Alignment{
		ReadIndex:    readIndex,
		ContigIndex:  contigIndex,
		ReadStart:    readStart,
		ReadEnd:      readEnd,
		ContigStart:  contigStart,
		ContigEnd:    contigEnd,
		IsReverse:    isReverse,
		MutationIdxs: mutIdxs,
	}

	if cfg.Verify {
		if verifyErr := verifyAlignment(a, readID, contigID, muts, cfg); verifyErr != nil {
			log.Error.Printf("ingest: line %d: verification failed: %v", lineNo, verifyErr)
			bad = true
		}
	}

	if err := s.AddAlignment(a); err != nil {
		return false, false, err
	}
	stats.AlignmentsAdded++
	return false, bad, nil
}

func verifyAlignment(a aln.Alignment, readID, contigID string, muts []aln.Mutation, cfg Config) error {
	contigSeq, ok := cfg.ContigSeqs[contigID]
	if !ok {
		return errors.E("ingest: verify: contig not found", contigID)
	}
	readSeq, ok := cfg.ReadSeqs[readID]
	if !ok {
		return errors.E("ingest: verify: read not found", readID)
	}
	if int(a.ContigEnd) > len(contigSeq) {
		return errors.E("ingest: verify: contig fragment out of range", contigID)
	}
	if int(a.ReadEnd) > len(readSeq) {
		return errors.E("ingest: verify: read segment out of range", readID)
	}
	fragment := contigSeq[a.ContigStart:a.ContigEnd]
	readSegment := readSeq[a.ReadStart:a.ReadEnd]
	return mutate.Verify(fragment, muts, a.ContigStart, readSegment, a.IsReverse)
}

func findCSTag(auxFields []string) (string, bool) {
	for _, f := range auxFields {
		if strings.HasPrefix(f, "cs:Z:") {
			return f[len("cs:Z:"):], true
		}
	}
	return "", false
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// diffOps renders an operation-by-operation diff table between two cs
// strings, for the round-trip mismatch error message.
func diffOps(original, generated string) string {
	origOps, _ := cstag.Tokenize(original)
	genOps, _ := cstag.Tokenize(generated)

	var b strings.Builder
	b.WriteString("idx\toriginal\tgenerated\n")
	maxOps := len(origOps)
	if len(genOps) > maxOps {
		maxOps = len(genOps)
	}
	for i := 0; i < maxOps; i++ {
		var o, g string
		if i < len(origOps) {
			o = string(origOps[i].Code) + origOps[i].Arg
		}
		if i < len(genOps) {
			g = string(genOps[i].Code) + genOps[i].Arg
		}
		fmt.Fprintf(&b, "%d\t%s\t%s\n", i, o, g)
	}
	return b.String()
}
