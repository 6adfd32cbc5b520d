package seq

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ReadFasta reads FASTA-formatted data from r into a name -> bases map.
// Sequence names are the characters up to (but excluding) the first space
// following '>'. If ids is non-empty, only sequences whose name is present
// in ids are retained; this lets callers load just the handful of contigs
// or reads a verification pass actually needs.
func ReadFasta(r io.Reader, ids map[string]bool) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)

	var name string
	var seq strings.Builder
	flush := func() {
		if name == "" {
			return
		}
		if len(ids) == 0 || ids[name] {
			out[name] = seq.String()
		}
		seq.Reset()
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			name = strings.SplitN(line[1:], " ", 2)[0]
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	flush()
	return out, nil
}

// WriteFasta writes seqs to w in FASTA format, one record per entry.
// Map iteration order is unspecified; callers that need a stable order
// should pre-sort keys and call WriteFastaOne directly.
func WriteFasta(w io.Writer, seqs map[string]string) error {
	bw := bufio.NewWriter(w)
	for id, s := range seqs {
		if err := WriteFastaOne(bw, id, s); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFastaOne writes a single ">id\nbases\n" record.
func WriteFastaOne(w io.Writer, id, bases string) error {
	if _, err := io.WriteString(w, ">"+id+"\n"+bases+"\n"); err != nil {
		return errors.Wrapf(err, "writing FASTA record %s", id)
	}
	return nil
}
