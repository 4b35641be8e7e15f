package index

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/extractor/blobstore"
	"github.com/hupe1980/extractor/row"
)

var genes = []string{"BRCA1", "BRCA2", "TP53", "EGFR", "KRAS"}

// writeGenes writes n rows; row i has gene genes[i%5] and tissue
// "liver" when i is even.
func writeGenes(t *testing.T, n int) (string, []byte) {
	t.Helper()
	var b strings.Builder
	b.WriteString("gene_id,tissue,expr\n")
	for i := 0; i < n; i++ {
		tissue := "brain"
		if i%2 == 0 {
			tissue = "liver"
		}
		fmt.Fprintf(&b, "%s,%s,%d.%d\n", genes[i%len(genes)], tissue, i%10, i%7)
	}
	path := filepath.Join(t.TempDir(), "genes.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path, []byte(b.String())
}

func build(t *testing.T, path string, mod func(*BuildOptions)) *Index {
	t.Helper()
	opts := BuildOptions{
		Column:           "gene_id",
		SecondaryColumns: []string{"tissue"},
		Delimiter:        ',',
		HasHeader:        true,
		ChunkSize:        4096,
		Parallel:         true,
		Threads:          4,
	}
	if mod != nil {
		mod(&opts)
	}
	ix, err := Build(context.Background(), path, opts)
	require.NoError(t, err)
	return ix
}

func TestBuild_LookupExact(t *testing.T) {
	path, data := writeGenes(t, 10000)
	ix := build(t, path, nil)

	assert.Equal(t, int64(10000), ix.Metadata().RowCount)
	assert.Equal(t, "gene_id", ix.Column())
	assert.Equal(t, []string{"tissue"}, ix.SecondaryColumns())
	assert.Equal(t, len(genes), ix.Keys("gene_id"))

	offs := ix.Lookup("BRCA1")
	require.Len(t, offs, 2000)
	for i, off := range offs {
		line := row.LineAt(data, int(off))
		assert.True(t, bytes.HasPrefix(line, []byte("BRCA1,")), "offset %d -> %q", off, line)
		if i > 0 {
			assert.Greater(t, off, offs[i-1], "offsets must be in file order")
		}
	}

	assert.Empty(t, ix.Lookup("NOPE"))
}

func TestBuild_ParallelMatchesSequential(t *testing.T) {
	path, _ := writeGenes(t, 3000)

	seq := build(t, path, func(o *BuildOptions) { o.Parallel = false })
	for _, size := range []int{1, 17, 256, 1 << 20} {
		par := build(t, path, func(o *BuildOptions) { o.ChunkSize = size })
		for _, g := range genes {
			assert.Equal(t, seq.Lookup(g), par.Lookup(g), "gene %s chunk %d", g, size)
		}
		assert.Equal(t, seq.Metadata().RowCount, par.Metadata().RowCount)
	}
}

func TestBuild_Errors(t *testing.T) {
	path, _ := writeGenes(t, 10)

	_, err := Build(context.Background(), path, BuildOptions{Column: "missing", Delimiter: ',', HasHeader: true})
	require.ErrorIs(t, err, ErrColumnNotFound)

	_, err = Build(context.Background(), path, BuildOptions{Column: "gene_id", SecondaryColumns: []string{"nope"}, HasHeader: true})
	require.ErrorIs(t, err, ErrColumnNotFound)

	_, err = Build(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), BuildOptions{Column: "gene_id"})
	require.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, path, BuildOptions{Column: "gene_id", HasHeader: true})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuild_Headerless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a\t1\nb\t2\na\t3\n"), 0o600))

	ix, err := Build(context.Background(), path, BuildOptions{Column: "0", Delimiter: '\t'})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 8}, ix.Lookup("a"))
}

func TestLookupSecondaryAndAny(t *testing.T) {
	path, _ := writeGenes(t, 100)
	ix := build(t, path, nil)

	liver, err := ix.LookupSecondary("tissue", "liver")
	require.NoError(t, err)
	assert.Len(t, liver, 50)

	_, err = ix.LookupSecondary("expr", "1")
	require.ErrorIs(t, err, ErrColumnNotIndexed)

	union, err := ix.LookupAny("gene_id", []string{"TP53", "BRCA1", "TP53"})
	require.NoError(t, err)
	assert.Len(t, union, 40)
	assert.IsIncreasing(t, union)

	got, err := ix.Query([]Constraint{
		{Column: "gene_id", Values: []string{"BRCA1"}},
		{Column: "tissue", Values: []string{"liver"}},
	})
	require.NoError(t, err)
	// BRCA1 rows are i%5==0; liver rows are even, so i%10==0.
	assert.Len(t, got, 10)
	assert.Equal(t, Intersect(ix.Lookup("BRCA1"), liver), got)

	got, err = ix.Query([]Constraint{{Column: "gene_id", Values: []string{"NOPE"}}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		a, b, want []int64
	}{
		{nil, nil, []int64{}},
		{[]int64{1, 2, 3}, nil, []int64{}},
		{[]int64{1, 3, 5, 7}, []int64{2, 3, 4, 7, 9}, []int64{3, 7}},
		{[]int64{1, 2, 3}, []int64{1, 2, 3}, []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Intersect(tt.a, tt.b))
		assert.Equal(t, tt.want, Intersect(tt.b, tt.a))
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	path, _ := writeGenes(t, 2000)
	ix := build(t, path, nil)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := ix.Encode(c)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, ix.Columns(), got.Columns())
			assert.Equal(t, ix.meta.RowCount, got.meta.RowCount)
			assert.Equal(t, ix.meta.BuildID, got.meta.BuildID)
			assert.True(t, ix.meta.ModTime.Equal(got.meta.ModTime))
			assert.Equal(t, ix.maps, got.maps)
			require.NoError(t, got.Verify(path))
		})
	}
}

func TestDecode_Corruption(t *testing.T) {
	path, _ := writeGenes(t, 200)
	data, err := build(t, path, nil).Encode(CompressionZSTD)
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] = 'Y'
		_, err := Decode(bad)
		require.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("flipped body byte", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0xff
		_, err := Decode(bad)
		require.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(data[:len(data)-3])
		require.ErrorIs(t, err, ErrInvalidFormat)
		_, err = Decode(data[:10])
		require.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("future version", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[4] = 99
		_, err := Decode(bad)
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path, _ := writeGenes(t, 500)
	ix := build(t, path, nil)

	stores := map[string]blobstore.BlobStore{
		"local":  blobstore.NewLocalStore(t.TempDir()),
		"memory": blobstore.NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := Load(ctx, store, "genes.csv.xidx")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, ix.Save(ctx, store, "genes.csv.xidx", CompressionLZ4))

			got, err := Load(ctx, store, "genes.csv.xidx")
			require.NoError(t, err)
			for _, g := range genes {
				assert.Equal(t, ix.Lookup(g), got.Lookup(g))
			}
		})
	}

	t.Run("file", func(t *testing.T) {
		p := DefaultPath(filepath.Join(t.TempDir(), "genes.csv"))
		require.NoError(t, ix.SaveFile(ctx, p, CompressionNone))
		got, err := LoadFile(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, ix.Lookup("KRAS"), got.Lookup("KRAS"))
	})
}

func TestVerify_Outdated(t *testing.T) {
	path, data := writeGenes(t, 100)
	ix := build(t, path, nil)
	require.NoError(t, ix.Verify(path))

	t.Run("appended", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, append(bytes.Clone(data), "KRAS,liver,1.0\n"...), 0o600))
		require.ErrorIs(t, ix.Verify(path), ErrOutdated)
	})

	t.Run("same size rewritten", func(t *testing.T) {
		mod := bytes.Clone(data)
		copy(mod[len("gene_id,tissue,expr\n"):], "XXXXX")
		require.NoError(t, os.WriteFile(path, mod, 0o600))
		// Restore the recorded mtime so only the fingerprint differs.
		mt := ix.Metadata().ModTime
		require.NoError(t, os.Chtimes(path, time.Now(), mt))
		require.ErrorIs(t, ix.Verify(path), ErrOutdated)
	})
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, "zstd": CompressionZSTD} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	require.Error(t, err)
}

func BenchmarkIntersect(b *testing.B) {
	x := make([]int64, 100000)
	y := make([]int64, 50000)
	for i := range x {
		x[i] = int64(i * 2)
	}
	for i := range y {
		y[i] = int64(i * 3)
	}

	for b.Loop() {
		Intersect(x, y)
	}
}
