package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"hash"
	"io"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/grailbio/alnstore/aln"
)

// magic identifies the versioned binary format this package reads and
// writes. There is no reader for any earlier schema.
const magic = "ALNSTV2"

// The on-disk layout is a bespoke fixed-width little-endian record stream
// (magic, length-prefixed strings, uint32/uint64/uint8 fields with no
// padding); encoding/binary is used directly rather than one of the
// corpus's structured serialization packages (recordio, gob-style
// protobuf) because none of them expresses this exact flat byte layout,
// and the format's stability (a versioned magic, byte-for-byte
// reproducibility) is itself part of the contract being implemented.

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeString(w io.Writer, s string) error {
	if err := writeUint64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// encodeTo writes the ALNSTV2 body, starting with the magic, to w.
func (s *Store) encodeTo(w io.Writer) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(s.contigs))); err != nil {
		return err
	}
	for _, c := range s.contigs {
		if err := writeString(w, c.ID); err != nil {
			return err
		}
		if err := writeUint32(w, c.Length); err != nil {
			return err
		}
	}
	if err := writeUint64(w, uint64(len(s.reads))); err != nil {
		return err
	}
	for _, rd := range s.reads {
		if err := writeString(w, rd.ID); err != nil {
			return err
		}
		if err := writeUint32(w, rd.Length); err != nil {
			return err
		}
	}
	if err := writeUint64(w, uint64(len(s.contigMuts))); err != nil {
		return err
	}
	for contigIndex, muts := range s.contigMuts {
		if err := writeUint32(w, uint32(contigIndex)); err != nil {
			return err
		}
		if err := writeUint64(w, uint64(len(muts))); err != nil {
			return err
		}
		for _, m := range muts {
			if err := writeUint8(w, uint8(m.Type)); err != nil {
				return err
			}
			if err := writeUint32(w, m.Position); err != nil {
				return err
			}
			if err := writeString(w, m.Nts); err != nil {
				return err
			}
		}
	}
	if err := writeUint64(w, uint64(len(s.alignments))); err != nil {
		return err
	}
	for _, a := range s.alignments {
		if err := writeUint32(w, a.ReadIndex); err != nil {
			return err
		}
		if err := writeUint32(w, a.ContigIndex); err != nil {
			return err
		}
		if err := writeUint32(w, a.ReadStart); err != nil {
			return err
		}
		if err := writeUint32(w, a.ReadEnd); err != nil {
			return err
		}
		if err := writeUint32(w, a.ContigStart); err != nil {
			return err
		}
		if err := writeUint32(w, a.ContigEnd); err != nil {
			return err
		}
		isReverse := uint8(0)
		if a.IsReverse {
			isReverse = 1
		}
		if err := writeUint8(w, isReverse); err != nil {
			return err
		}
		if err := writeUint64(w, uint64(len(a.MutationIdxs))); err != nil {
			return err
		}
		for _, mi := range a.MutationIdxs {
			if err := writeUint32(w, mi); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeFrom replaces s's contents with the ALNSTV2 body read from r
// (including the magic, which is verified).
func (s *Store) decodeFrom(r io.Reader) error {
	gotMagic := make([]byte, len(magic))
	if _, err := io.ReadFull(r, gotMagic); err != nil {
		return errors.E(err, "store: reading magic")
	}
	if string(gotMagic) != magic {
		return errors.E("store: bad magic", string(gotMagic))
	}

	nContigs, err := readUint64(r)
	if err != nil {
		return errors.E(err, "store: reading contig count")
	}
	contigs := make([]aln.Contig, 0, nContigs)
	contigByID := make(map[string]uint32, nContigs)
	for i := uint64(0); i < nContigs; i++ {
		id, err := readString(r)
		if err != nil {
			return errors.E(err, "store: reading contig id")
		}
		length, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading contig length")
		}
		contigByID[id] = uint32(i)
		contigs = append(contigs, aln.Contig{ID: id, Length: length})
	}

	nReads, err := readUint64(r)
	if err != nil {
		return errors.E(err, "store: reading read count")
	}
	reads := make([]aln.Read, 0, nReads)
	readByID := make(map[string]uint32, nReads)
	for i := uint64(0); i < nReads; i++ {
		id, err := readString(r)
		if err != nil {
			return errors.E(err, "store: reading read id")
		}
		length, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading read length")
		}
		readByID[id] = uint32(i)
		reads = append(reads, aln.Read{ID: id, Length: length})
	}

	nContigMutGroups, err := readUint64(r)
	if err != nil {
		return errors.E(err, "store: reading contig-mutation group count")
	}
	contigMuts := make([][]aln.Mutation, len(contigs))
	for i := uint64(0); i < nContigMutGroups; i++ {
		contigIndex, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading contig-mutation group index")
		}
		if int(contigIndex) >= len(contigs) {
			return errors.E("store: contig-mutation group references out-of-range contig", contigIndex)
		}
		nMuts, err := readUint64(r)
		if err != nil {
			return errors.E(err, "store: reading mutation count")
		}
		muts := make([]aln.Mutation, 0, nMuts)
		for j := uint64(0); j < nMuts; j++ {
			t, err := readUint8(r)
			if err != nil {
				return errors.E(err, "store: reading mutation type")
			}
			pos, err := readUint32(r)
			if err != nil {
				return errors.E(err, "store: reading mutation position")
			}
			nts, err := readString(r)
			if err != nil {
				return errors.E(err, "store: reading mutation nts")
			}
			muts = append(muts, aln.Mutation{Type: aln.MutationType(t), Position: pos, Nts: nts})
		}
		contigMuts[contigIndex] = muts
	}

	nAlignments, err := readUint64(r)
	if err != nil {
		return errors.E(err, "store: reading alignment count")
	}
	alignments := make([]aln.Alignment, 0, nAlignments)
	for i := uint64(0); i < nAlignments; i++ {
		readIndex, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading alignment read index")
		}
		contigIndex, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading alignment contig index")
		}
		readStart, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading alignment read start")
		}
		readEnd, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading alignment read end")
		}
		contigStart, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading alignment contig start")
		}
		contigEnd, err := readUint32(r)
		if err != nil {
			return errors.E(err, "store: reading alignment contig end")
		}
		isReverseByte, err := readUint8(r)
		if err != nil {
			return errors.E(err, "store: reading alignment strand")
		}
		nMutIdxs, err := readUint64(r)
		if err != nil {
			return errors.E(err, "store: reading alignment mutation-index count")
		}
		mutIdxs := make([]uint32, 0, nMutIdxs)
		for j := uint64(0); j < nMutIdxs; j++ {
			mi, err := readUint32(r)
			if err != nil {
				return errors.E(err, "store: reading alignment mutation index")
			}
			mutIdxs = append(mutIdxs, mi)
		}
		if int(readIndex) >= len(reads) {
			return errors.E("store: alignment references out-of-range read", readIndex)
		}
		if int(contigIndex) >= len(contigs) {
			return errors.E("store: alignment references out-of-range contig", contigIndex)
		}
		alignments = append(alignments, aln.Alignment{
			ReadIndex:    readIndex,
			ContigIndex:  contigIndex,
			ReadStart:    readStart,
			ReadEnd:      readEnd,
			ContigStart:  contigStart,
			ContigEnd:    contigEnd,
			IsReverse:    isReverseByte != 0,
			MutationIdxs: mutIdxs,
		})
	}

	s.contigs = contigs
	s.contigByID = contigByID
	s.reads = reads
	s.readByID = readByID
	s.contigMuts = contigMuts
	s.mutKeyIndex = nil
	s.alignments = alignments
	s.organized = false
	s.loaded = true
	s.Organize()
	return nil
}

// checksumWriter tees everything written through it into a running
// seahash digest, so the trailer written by Save covers exactly the bytes
// the body writer produced.
type checksumWriter struct {
	w io.Writer
	h hash.Hash64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, h: seahash.New()}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.h.Write(p[:n])
	}
	return n, err
}

// Save writes the store in the ALNSTV2 format to path, followed by an
// 8-byte little-endian seahash trailer of the body (magic included). It
// clears the transient dedup map, marks the store loaded, and organizes
// the alignment index, matching the build-to-query phase transition.
func (s *Store) Save(ctx context.Context, path string) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "store: creating", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	bw := bufio.NewWriter(f.Writer(ctx))
	cw := newChecksumWriter(bw)
	if err = s.encodeTo(cw); err != nil {
		return errors.E(err, "store: writing", path)
	}
	if err = writeUint64(bw, cw.h.Sum64()); err != nil {
		return errors.E(err, "store: writing checksum trailer", path)
	}
	if err = bw.Flush(); err != nil {
		return errors.E(err, "store: flushing", path)
	}

	s.mutKeyIndex = nil
	s.loaded = true
	s.organized = false
	s.Organize()
	return nil
}

// Load replaces s's contents with the ALNSTV2-formatted store read from
// path, verifying both the magic and the trailing checksum.
func (s *Store) Load(ctx context.Context, path string) (err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "store: opening", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	data, err := io.ReadAll(f.Reader(ctx))
	if err != nil {
		return errors.E(err, "store: reading", path)
	}
	return s.loadFromBytes(data, path)
}

func (s *Store) loadFromBytes(data []byte, path string) error {
	if len(data) < 8 {
		return errors.E("store: truncated file", path)
	}
	body, trailer := data[:len(data)-8], data[len(data)-8:]
	wantSum := binary.LittleEndian.Uint64(trailer)

	h := seahash.New()
	h.Write(body)
	if gotSum := h.Sum64(); gotSum != wantSum {
		return errors.E("store: checksum mismatch", path)
	}
	return s.decodeFrom(bytes.NewReader(body))
}

// SaveCompressed writes the same ALNSTV2 body through a gzip writer, for
// callers that would rather trade CPU for disk space on large stores.
func (s *Store) SaveCompressed(ctx context.Context, path string) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "store: creating", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	gz := gzip.NewWriter(f.Writer(ctx))
	cw := newChecksumWriter(gz)
	if err = s.encodeTo(cw); err != nil {
		return errors.E(err, "store: writing", path)
	}
	if err = writeUint64(gz, cw.h.Sum64()); err != nil {
		return errors.E(err, "store: writing checksum trailer", path)
	}
	if err = gz.Close(); err != nil {
		return errors.E(err, "store: closing gzip stream", path)
	}

	s.mutKeyIndex = nil
	s.loaded = true
	s.organized = false
	s.Organize()
	return nil
}

// LoadCompressed reads a store written by SaveCompressed.
func (s *Store) LoadCompressed(ctx context.Context, path string) (err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "store: opening", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	gz, err := gzip.NewReader(f.Reader(ctx))
	if err != nil {
		return errors.E(err, "store: opening gzip stream", path)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return errors.E(err, "store: reading gzip stream", path)
	}
	return s.loadFromBytes(data, path)
}
