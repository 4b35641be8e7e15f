package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"slices"
	"time"
)

// Binary layout, little-endian:
//
//	[0:4]   magic "XIDX"
//	[4:6]   format version
//	[6]     compression
//	[7]     reserved
//	[8:16]  uncompressed body length
//	[16:24] stored body length
//	[24:28] CRC32 (IEEE) of the stored body
//	[28:]   body
//
// The body holds the metadata followed by one section per column. Each
// section lists its keys in sorted order with uvarint delta-encoded offsets.
const (
	magic         = "XIDX"
	formatVersion = 1
	headerSize    = 28
)

// Encode serializes the index with the requested body compression.
func (ix *Index) Encode(c Compression) ([]byte, error) {
	body := ix.encodeBody()

	stored, used, err := compress(body, c)
	if err != nil {
		return nil, fmt.Errorf("compress index: %w", err)
	}

	out := make([]byte, headerSize, headerSize+len(stored))
	copy(out[0:4], magic)
	binary.LittleEndian.PutUint16(out[4:6], formatVersion)
	out[6] = byte(used)
	binary.LittleEndian.PutUint64(out[8:16], uint64(len(body)))
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(stored)))
	binary.LittleEndian.PutUint32(out[24:28], crc32.ChecksumIEEE(stored))
	return append(out, stored...), nil
}

// WriteTo writes the uncompressed encoding of the index to w.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	data, err := ix.Encode(CompressionNone)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Decode parses an index produced by Encode.
func Decode(data []byte) (*Index, error) {
	if len(data) < headerSize || string(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	c := Compression(data[6])
	rawLen := binary.LittleEndian.Uint64(data[8:16])
	storedLen := binary.LittleEndian.Uint64(data[16:24])
	sum := binary.LittleEndian.Uint32(data[24:28])

	if storedLen != uint64(len(data)-headerSize) {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrInvalidFormat, len(data)-headerSize, storedLen)
	}
	stored := data[headerSize:]
	if crc32.ChecksumIEEE(stored) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidFormat)
	}

	body, err := decompress(stored, c, rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	ix, err := decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return ix, nil
}

// ReadFrom reads and decodes a complete index from r.
func ReadFrom(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (ix *Index) encodeBody() []byte {
	var e encoder
	m := ix.meta
	e.string(m.SourceFile)
	e.varint(m.FileSize)
	e.varint(m.ModTime.UnixNano())
	e.uint32(m.Fingerprint)
	e.varint(m.RowCount)
	e.byte(m.Delimiter)
	e.bool(m.HasHeader)
	e.string(m.BuildID)
	e.varint(m.CreatedAt.UnixNano())

	e.uvarint(uint64(len(ix.columns)))
	for i, col := range ix.columns {
		e.string(col)
		p := ix.maps[i]

		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		e.uvarint(uint64(len(keys)))
		for _, k := range keys {
			e.string(k)
			offs := p[k]
			e.uvarint(uint64(len(offs)))
			var prev int64
			for _, off := range offs {
				e.uvarint(uint64(off - prev))
				prev = off
			}
		}
	}
	return e.buf.Bytes()
}

func decodeBody(body []byte) (*Index, error) {
	d := decoder{data: body}
	var m Metadata
	m.SourceFile = d.string()
	m.FileSize = d.varint()
	m.ModTime = time.Unix(0, d.varint())
	m.Fingerprint = d.uint32()
	m.RowCount = d.varint()
	m.Delimiter = d.byte()
	m.HasHeader = d.bool()
	m.BuildID = d.string()
	m.CreatedAt = time.Unix(0, d.varint()).UTC()

	ncols := d.count()
	if d.err == nil && ncols == 0 {
		return nil, fmt.Errorf("no columns")
	}
	columns := make([]string, 0, ncols)
	maps := make([]postings, 0, ncols)

	for c := 0; c < ncols && d.err == nil; c++ {
		columns = append(columns, d.string())
		nkeys := d.count()
		p := make(postings, nkeys)
		for k := 0; k < nkeys && d.err == nil; k++ {
			key := d.string()
			n := d.count()
			offs := make([]int64, 0, n)
			var prev int64
			for j := 0; j < n && d.err == nil; j++ {
				prev += int64(d.uvarint())
				offs = append(offs, prev)
			}
			p[key] = offs
		}
		maps = append(maps, p)
	}

	if d.err != nil {
		return nil, d.err
	}
	if d.off != len(d.data) {
		return nil, fmt.Errorf("%d trailing bytes", len(d.data)-d.off)
	}
	return newIndex(m, columns, maps), nil
}

type encoder struct {
	buf     bytes.Buffer
	scratch [binary.MaxVarintLen64]byte
}

func (e *encoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *encoder) varint(v int64) {
	n := binary.PutVarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *encoder) uint32(v uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], v)
	e.buf.Write(e.scratch[:4])
}

func (e *encoder) byte(b byte) { e.buf.WriteByte(b) }

func (e *encoder) bool(b bool) {
	if b {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

// decoder reads the body format. After the first error every read returns
// a zero value and err keeps the first failure.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("truncated %s at offset %d", what, d.off)
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data[d.off:])
	if n <= 0 {
		d.fail("uvarint")
		return 0
	}
	d.off += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.data[d.off:])
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.off += n
	return v
}

// count reads a length that must be backed by at least that many remaining bytes.
func (d *decoder) count() int {
	v := d.uvarint()
	if d.err == nil && v > uint64(len(d.data)-d.off) {
		d.fail("count")
		return 0
	}
	return int(v)
}

func (d *decoder) uint32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.data)-d.off < 4 {
		d.fail("uint32")
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.off >= len(d.data) {
		d.fail("byte")
		return 0
	}
	b := d.data[d.off]
	d.off++
	return b
}

func (d *decoder) bool() bool { return d.byte() != 0 }

func (d *decoder) string() string {
	n := d.count()
	if d.err != nil {
		return ""
	}
	s := string(d.data[d.off : d.off+n])
	d.off += n
	return s
}
