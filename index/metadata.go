package index

import (
	"fmt"
	"os"
	"time"

	"github.com/hupe1980/extractor/internal/source"
)

// Metadata describes the source file an index was built from.
type Metadata struct {
	SourceFile  string
	FileSize    int64
	ModTime     time.Time
	Fingerprint uint32
	RowCount    int64
	Delimiter   byte
	HasHeader   bool
	BuildID     string
	CreatedAt   time.Time
}

// Verify reports ErrOutdated if the file at path no longer matches the
// metadata. Size and modification time are checked first; the fingerprint
// of the file head catches rewrites that preserve both.
func (m Metadata) Verify(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	if fi.Size() != m.FileSize {
		return fmt.Errorf("%w: size %d, indexed %d", ErrOutdated, fi.Size(), m.FileSize)
	}
	if !fi.ModTime().Equal(m.ModTime) {
		return fmt.Errorf("%w: modified %s, indexed %s", ErrOutdated,
			fi.ModTime().UTC().Format(time.RFC3339Nano), m.ModTime.UTC().Format(time.RFC3339Nano))
	}

	fp, err := source.FingerprintFile(path)
	if err != nil {
		return err
	}
	if fp != m.Fingerprint {
		return fmt.Errorf("%w: fingerprint %08x, indexed %08x", ErrOutdated, fp, m.Fingerprint)
	}
	return nil
}
