// Package source opens a delimited input file for scanning: it maps the file
// read-only, resolves the header and locates the first data row.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/extractor/internal/mmap"
	"github.com/hupe1980/extractor/row"
)

// ErrMalformedHeader is returned when the header line cannot be split into
// column names.
var ErrMalformedHeader = errors.New("malformed header")

// FingerprintSize is the number of leading bytes covered by Fingerprint.
const FingerprintSize = 64 << 10

// Options controls how a source file is interpreted.
type Options struct {
	Delimiter byte
	HasHeader bool
	// MaxMapSize rejects files larger than this many bytes. Zero means no limit.
	MaxMapSize int64
}

// Source is a mapped input file.
type Source struct {
	Path    string
	Header  *row.Header
	ModTime time.Time
	// DataStart is the offset of the first byte after the header line.
	DataStart int

	m *mmap.Mapping
}

// Open maps path and resolves its header.
func Open(path string, opts Options) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}

	m, err := mmap.OpenLimit(path, opts.MaxMapSize)
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessSequential)

	s := &Source{Path: path, ModTime: fi.ModTime(), m: m}
	data := m.Bytes()

	if opts.HasHeader {
		line, next := row.FirstLine(data)
		if err := checkHeader(line, len(data), opts.Delimiter); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s.Header = row.ParseHeader(line, opts.Delimiter)
		s.DataStart = next
		return s, nil
	}

	sc := row.NewScanner(data, 0, opts.Delimiter)
	n := 0
	if sc.Next() {
		n = sc.Row().Len()
	}
	s.Header = row.PositionalHeader(n)
	return s, nil
}

// Data returns the mapped file contents.
func (s *Source) Data() []byte { return s.m.Bytes() }

// Size returns the file size in bytes.
func (s *Source) Size() int64 { return int64(s.m.Size()) }

// Body returns the bytes after the header line.
func (s *Source) Body() []byte { return s.m.Bytes()[s.DataStart:] }

// HeaderLine returns the raw header line, or nil for headerless input.
func (s *Source) HeaderLine() []byte {
	if s.DataStart == 0 {
		return nil
	}
	line, _ := row.FirstLine(s.m.Bytes())
	return line
}

// Fingerprint returns the CRC32 of the first FingerprintSize bytes.
func (s *Source) Fingerprint() uint32 {
	return Fingerprint(s.m.Bytes())
}

// AdviseRandom tells the kernel rows will be read at scattered offsets, as
// in an indexed run.
func (s *Source) AdviseRandom() { _ = s.m.Advise(mmap.AccessRandom) }

// Close unmaps the file.
func (s *Source) Close() error {
	return s.m.Close()
}

// checkHeader rejects header lines that cannot name the columns: a blank
// line in a non-empty file, an unclosed quote or a name that is not UTF-8.
func checkHeader(line []byte, size int, delim byte) error {
	if size == 0 {
		return nil
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return fmt.Errorf("%w: empty header line", ErrMalformedHeader)
	}
	if row.UnterminatedQuote(line, delim) {
		return fmt.Errorf("%w: unterminated quote in %q", ErrMalformedHeader, line)
	}
	if !utf8.Valid(line) {
		return fmt.Errorf("%w: column names are not valid UTF-8", ErrMalformedHeader)
	}
	return nil
}

// Fingerprint returns the CRC32 (IEEE) of the first FingerprintSize bytes of data.
func Fingerprint(data []byte) uint32 {
	if len(data) > FingerprintSize {
		data = data[:FingerprintSize]
	}
	return crc32.ChecksumIEEE(data)
}

// FingerprintFile reads the head of path and fingerprints it.
func FingerprintFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, FingerprintSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return Fingerprint(buf[:n]), nil
}
