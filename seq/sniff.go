package seq

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// FileType is the sequence-file format detected by SniffFileType.
type FileType int

const (
	// Unknown means the first line of the file didn't look like FASTA or
	// FASTQ.
	Unknown FileType = iota
	// FASTA files start a record with '>'.
	FASTA
	// FASTQ files start a record with '@'.
	FASTQ
)

func (t FileType) String() string {
	switch t {
	case FASTA:
		return "FASTA"
	case FASTQ:
		return "FASTQ"
	default:
		return "UNKNOWN"
	}
}

// SniffFileType inspects the first line available from r to decide whether
// it holds FASTA or FASTQ data, the way a reference-sequence loader must
// before it knows which reader to invoke.
func SniffFileType(r io.Reader) (FileType, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return Unknown, errors.Wrap(err, "sniffing sequence file type")
	}
	if len(line) == 0 {
		return Unknown, errors.New("sniffing sequence file type: empty file")
	}
	switch line[0] {
	case '>':
		return FASTA, nil
	case '@':
		return FASTQ, nil
	default:
		return Unknown, nil
	}
}
