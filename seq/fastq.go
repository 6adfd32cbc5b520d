package seq

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ReadFastq reads FASTQ-formatted data from r into a name -> bases map. The
// record id is the text following '@' on the header line, up to the first
// space. If ids is non-empty, only records whose id is present are kept.
func ReadFastq(r io.Reader, ids map[string]bool) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)

	for scanner.Scan() {
		header := scanner.Text()
		if header == "" {
			continue
		}
		if header[0] != '@' {
			return nil, errors.Errorf("malformed FASTQ record: expected '@', got %q", header)
		}
		name := strings.SplitN(header[1:], " ", 2)[0]
		if !scanner.Scan() {
			return nil, errors.New("truncated FASTQ record: missing sequence line")
		}
		sequence := scanner.Text()
		if !scanner.Scan() {
			return nil, errors.New("truncated FASTQ record: missing '+' line")
		}
		if !scanner.Scan() {
			return nil, errors.New("truncated FASTQ record: missing quality line")
		}
		if len(ids) == 0 || ids[name] {
			out[name] = sequence
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTQ data")
	}
	return out, nil
}

// WriteFastq writes seqs to w in FASTQ format with placeholder 'I' quality
// scores, mirroring the original tool's write_fastq helper.
func WriteFastq(w io.Writer, seqs map[string]string) error {
	bw := bufio.NewWriter(w)
	for id, s := range seqs {
		if _, err := io.WriteString(bw, "@"+id+"\n"+s+"\n+\n"+strings.Repeat("I", len(s))+"\n"); err != nil {
			return errors.Wrapf(err, "writing FASTQ record %s", id)
		}
	}
	return bw.Flush()
}
