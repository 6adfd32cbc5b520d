package seq

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/grailbio/alnstore/aln"
)

// ReadIntervals parses a tab-separated intervals table: a mandatory header
// line exactly "contig\tstart\tend" followed by zero or more data rows of
// the same three columns. Coordinates are half-open on read, matching the
// core's internal convention.
func ReadIntervals(r io.Reader) ([]aln.Interval, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, errors.New("intervals file is empty: missing header line")
	}
	header := strings.TrimRight(scanner.Text(), "\r\n")
	if header != "contig\tstart\tend" {
		return nil, errors.Errorf("intervals file: expected header %q, got %q", "contig\tstart\tend", header)
	}

	var out []aln.Interval
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, errors.Errorf("intervals file line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		start, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "intervals file line %d: invalid start", lineNo)
		}
		end, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "intervals file line %d: invalid end", lineNo)
		}
		out = append(out, aln.Interval{Contig: fields[0], Start: uint32(start), End: uint32(end)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading intervals file")
	}
	return out, nil
}

// OneBasedClosedToHalfOpen converts a 1-based closed interval [start, end]
// (the tabular front-end's language-neutral alias, per spec) to the core's
// 0-based half-open convention.
func OneBasedClosedToHalfOpen(contig string, start, end uint32) aln.Interval {
	return aln.Interval{Contig: contig, Start: start - 1, End: end}
}
