package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/extractor/blobstore"
	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/source"
)

var genes = []string{"BRCA1", "BRCA2", "TP53", "EGFR", "KRAS"}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// writeGenes writes n rows; row i has gene genes[i%5], tissue "liver" when
// i is even and expr (i%100)/100.
func writeGenes(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("gene_id,tissue,expr\n")
	for i := 0; i < n; i++ {
		tissue := "brain"
		if i%2 == 0 {
			tissue = "liver"
		}
		fmt.Fprintf(&b, "%s,%s,%.2f\n", genes[i%len(genes)], tissue, float64(i%100)/100)
	}
	return writeFile(t, "genes.csv", b.String())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func outPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out.csv")
}

func runEngine(t *testing.T, input, output string, opts ...Option) *Stats {
	t.Helper()
	eng, err := New(input, output, opts...)
	require.NoError(t, err)
	st, err := eng.Process(context.Background())
	require.NoError(t, err)
	return st
}

func TestProcess_NumericThreshold(t *testing.T) {
	in := writeFile(t, "expr.csv", "gene,expr\nA,0.2\nB,0.7\nC,0.9\n")
	out := outPath(t)

	st := runEngine(t, in, out, WithFilters(filter.MustNew("expr", filter.GreaterThan(0.5))))

	assert.Equal(t, []string{"gene,expr", "B,0.7", "C,0.9"}, readLines(t, out))
	assert.Equal(t, int64(3), st.RowsProcessed)
	assert.Equal(t, int64(2), st.RowsMatched)
	assert.Equal(t, int64(0), st.RowsMalformed)
	assert.Equal(t, ModeStreaming, st.Mode)
	assert.Positive(t, st.OutputBytes)
}

func TestProcess_NoFiltersCopiesInput(t *testing.T) {
	content := "gene,expr\r\nA,1\r\n\r\nB,2"
	in := writeFile(t, "crlf.csv", content)
	out := outPath(t)

	st := runEngine(t, in, out)

	assert.Equal(t, []string{"gene,expr", "A,1", "B,2"}, readLines(t, out))
	assert.Equal(t, int64(2), st.RowsProcessed)
	assert.Equal(t, int64(2), st.RowsMatched)
}

func TestProcess_HeaderOnly(t *testing.T) {
	in := writeFile(t, "empty.csv", "gene,expr\n")
	out := outPath(t)

	st := runEngine(t, in, out, WithFilters(filter.MustNew("expr", filter.GreaterThan(0))))

	assert.Equal(t, []string{"gene,expr"}, readLines(t, out))
	assert.Equal(t, int64(0), st.RowsProcessed)
}

func TestProcess_MalformedHeader(t *testing.T) {
	in := writeFile(t, "quoted.csv", "\"gene,expr\nA,1\nB,2\n")
	out := outPath(t)

	for _, filters := range [][]filter.Filter{nil, {filter.MustNew("expr", filter.GreaterThan(0))}} {
		eng, err := New(in, out, WithFilters(filters...))
		require.NoError(t, err)

		_, err = eng.Process(context.Background())
		require.Error(t, err)
		assert.Equal(t, KindParse, KindOf(err))
		assert.True(t, IsData(err))
		assert.ErrorIs(t, err, source.ErrMalformedHeader)
	}
	assert.NoFileExists(t, out)

	eng, err := New(in, out)
	require.NoError(t, err)
	_, err = eng.BuildIndex(context.Background(), "gene")
	assert.Equal(t, KindParse, KindOf(err))
}

func TestProcess_ParallelMatchesSequential(t *testing.T) {
	in := writeGenes(t, 5000)
	filters := []filter.Filter{
		filter.MustNew("tissue", filter.Equals("liver")),
		filter.MustNew("expr", filter.GreaterThan(0.25)),
	}

	seqOut := outPath(t)
	cfg := DefaultConfig()
	cfg.Parallel = false
	want := runEngine(t, in, seqOut, WithConfig(cfg), WithFilters(filters...))
	wantLines := readLines(t, seqOut)
	require.Greater(t, len(wantLines), 1)

	// 7 is smaller than any row.
	for _, size := range []int{7, 64, 1000, 4096, 1 << 20} {
		for _, threads := range []int{1, 3, 8} {
			t.Run(fmt.Sprintf("chunk=%d/threads=%d", size, threads), func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.ChunkSize = size
				cfg.Threads = threads
				out := outPath(t)

				got := runEngine(t, in, out, WithConfig(cfg), WithFilters(filters...))

				assert.Equal(t, wantLines, readLines(t, out))
				assert.Equal(t, want.RowsProcessed, got.RowsProcessed)
				assert.Equal(t, want.RowsMatched, got.RowsMatched)
			})
		}
	}
}

func TestProcess_MalformedRowsAreCounted(t *testing.T) {
	in := writeFile(t, "dirty.csv", "gene,expr\nA,0.9\nB,n/a\nC,\nD,1e3\nE,0.1\n")
	out := outPath(t)

	st := runEngine(t, in, out, WithFilters(filter.MustNew("expr", filter.GreaterThan(0.5))))

	assert.Equal(t, []string{"gene,expr", "A,0.9", "D,1e3"}, readLines(t, out))
	assert.Equal(t, int64(5), st.RowsProcessed)
	assert.Equal(t, int64(2), st.RowsMatched)
	assert.Equal(t, int64(2), st.RowsMalformed)
}

func TestProcess_ShortRowsAreMalformed(t *testing.T) {
	in := writeFile(t, "short.csv", "gene,tissue,expr\nA,liver,0.9\nB\nC,liver\n")
	out := outPath(t)

	st := runEngine(t, in, out, WithFilters(filter.MustNew("tissue", filter.Equals("liver"))))

	assert.Equal(t, []string{"gene,tissue,expr", "A,liver,0.9", "C,liver"}, readLines(t, out))
	assert.Equal(t, int64(3), st.RowsProcessed)
	assert.Equal(t, int64(1), st.RowsMalformed)
}

func TestProcess_QuotedFields(t *testing.T) {
	in := writeFile(t, "quoted.csv", "gene,note\nA,\"x,y\"\nB,plain\n")
	out := outPath(t)

	runEngine(t, in, out, WithFilters(filter.MustNew("note", filter.Equals("x,y"))))

	assert.Equal(t, []string{"gene,note", "A,\"x,y\""}, readLines(t, out))
}

func TestProcess_Headerless(t *testing.T) {
	in := writeFile(t, "raw.tsv", "A\t0.2\nB\t0.7\n")
	out := outPath(t)

	cfg := TSVConfig()
	cfg.HasHeader = false
	st := runEngine(t, in, out, WithConfig(cfg), WithFilters(filter.MustNew("1", filter.GreaterThan(0.5))))

	assert.Equal(t, []string{"B\t0.7"}, readLines(t, out))
	assert.Equal(t, int64(2), st.RowsProcessed)
}

func TestProcess_ColumnNotFound(t *testing.T) {
	in := writeFile(t, "expr.csv", "gene,expr\nA,0.2\n")
	out := outPath(t)

	eng, err := New(in, out, WithFilters(filter.MustNew("pval", filter.LessThan(0.05))))
	require.NoError(t, err)

	_, err = eng.Process(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.Equal(t, KindColumn, KindOf(err))
	assert.True(t, IsData(err))

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "pval", ee.Column)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output on configuration errors")
}

func TestProcess_MissingInput(t *testing.T) {
	eng, err := New(filepath.Join(t.TempDir(), "missing.csv"), outPath(t))
	require.NoError(t, err)

	_, err = eng.Process(context.Background())
	require.Error(t, err)
	assert.True(t, IsIO(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcess_OutputOverwritesInput(t *testing.T) {
	in := writeFile(t, "expr.csv", "gene,expr\nA,0.2\n")

	eng, err := New(in, in)
	require.NoError(t, err)

	_, err = eng.Process(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfig)

	data, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, "gene,expr\nA,0.2\n", string(data))
}

func TestProcess_Canceled(t *testing.T) {
	in := writeGenes(t, 2000)
	cfg := DefaultConfig()
	cfg.ChunkSize = 128

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng, err := New(in, outPath(t), WithConfig(cfg))
	require.NoError(t, err)
	_, err = eng.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_OutputColumns(t *testing.T) {
	in := writeFile(t, "wide.csv", "gene,tissue,expr\nA,liver,0.2\nB,brain,0.7\n")

	tests := []struct {
		name    string
		columns []string
		drop    []string
		want    []string
	}{
		{"select", []string{"expr", "gene"}, nil, []string{"expr,gene", "0.7,B"}},
		{"drop", nil, []string{"tissue"}, []string{"gene,expr", "B,0.7"}},
		{"select then drop", []string{"expr", "tissue", "gene"}, []string{"tissue"}, []string{"expr,gene", "0.7,B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OutputColumns = tt.columns
			cfg.DropColumns = tt.drop
			out := outPath(t)

			runEngine(t, in, out, WithConfig(cfg), WithFilters(filter.MustNew("gene", filter.Equals("B"))))

			assert.Equal(t, tt.want, readLines(t, out))
		})
	}
}

func TestProcess_UnknownOutputColumn(t *testing.T) {
	in := writeFile(t, "wide.csv", "gene,expr\nA,0.2\n")
	cfg := DefaultConfig()
	cfg.OutputColumns = []string{"pval"}

	eng, err := New(in, outPath(t), WithConfig(cfg))
	require.NoError(t, err)
	_, err = eng.Process(context.Background())
	assert.Equal(t, KindColumn, KindOf(err))
}

func TestProcess_Formats(t *testing.T) {
	in := writeFile(t, "expr.tsv", "gene\texpr\nA\t0.2\nB\t0.7\n")
	keep := filter.MustNew("gene", filter.Equals("B"))

	t.Run("csv", func(t *testing.T) {
		cfg := TSVConfig()
		cfg.OutputFormat = FormatCSV
		out := outPath(t)
		runEngine(t, in, out, WithConfig(cfg), WithFilters(keep))
		assert.Equal(t, []string{"gene,expr", "B,0.7"}, readLines(t, out))
	})

	t.Run("jsonl", func(t *testing.T) {
		cfg := TSVConfig()
		cfg.OutputFormat = FormatJSONLines
		out := outPath(t)
		runEngine(t, in, out, WithConfig(cfg), WithFilters(keep))

		lines := readLines(t, out)
		require.Len(t, lines, 1)
		var obj map[string]string
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &obj))
		assert.Equal(t, map[string]string{"gene": "B", "expr": "0.7"}, obj)
	})
}

func TestProcess_Append(t *testing.T) {
	out := outPath(t)
	cfg := DefaultConfig()
	cfg.Append = true

	first := writeFile(t, "a.csv", "gene,expr\nA,0.9\n")
	second := writeFile(t, "b.csv", "gene,expr\nB,0.8\nC,0.1\n")
	keep := filter.MustNew("expr", filter.GreaterThan(0.5))

	runEngine(t, first, out, WithConfig(cfg), WithFilters(keep))
	runEngine(t, second, out, WithConfig(cfg), WithFilters(keep))

	assert.Equal(t, []string{"gene,expr", "A,0.9", "B,0.8"}, readLines(t, out))
}

func TestProcess_MemoryLimit(t *testing.T) {
	in := writeGenes(t, 4000)
	cfg := DefaultConfig()
	cfg.ChunkSize = 512
	cfg.Threads = 8
	cfg.MemoryLimit = 2048
	out := outPath(t)

	st := runEngine(t, in, out, WithConfig(cfg), WithFilters(filter.MustNew("gene_id", filter.Equals("TP53"))))

	assert.Equal(t, int64(800), st.RowsMatched)
	assert.Positive(t, st.PeakMemory)
	assert.LessOrEqual(t, st.PeakMemory, int64(2048))
}

func TestProcess_MemoryLimitBelowChunk(t *testing.T) {
	in := writeGenes(t, 500)
	cfg := DefaultConfig()
	cfg.ChunkSize = 4096
	cfg.MemoryLimit = 1
	out := outPath(t)

	st := runEngine(t, in, out, WithConfig(cfg))
	assert.Equal(t, int64(500), st.RowsMatched)
}

func TestProcess_DefaultMemoryCeiling(t *testing.T) {
	in := writeGenes(t, 4000)
	cfg := DefaultConfig()
	cfg.ChunkSize = 256
	cfg.Threads = 2
	out := outPath(t)

	st := runEngine(t, in, out, WithConfig(cfg))

	assert.Equal(t, int64(4000), st.RowsMatched)
	assert.Positive(t, st.PeakMemory)
	// A chunk ends at the first row boundary after ChunkSize.
	assert.LessOrEqual(t, st.PeakMemory, int64(pendingPerWorker*2*(256+32)))
}

func TestMemoryCeiling(t *testing.T) {
	assert.Equal(t, int64(4096), memoryCeiling(4096, 512, 8))
	assert.Equal(t, int64(512), memoryCeiling(1, 512, 8))
	assert.Equal(t, int64(512*pendingPerWorker*8), memoryCeiling(0, 512, 8))
	assert.Equal(t, int64(512*pendingPerWorker), memoryCeiling(0, 512, 0))
	assert.Zero(t, memoryCeiling(0, 0, 8))
}

func TestProcess_ReadRateLimit(t *testing.T) {
	in := writeGenes(t, 500)
	cfg := DefaultConfig()
	cfg.ChunkSize = 1024
	cfg.ReadRateLimit = 1 << 30
	out := outPath(t)

	st := runEngine(t, in, out, WithConfig(cfg), WithFilters(filter.MustNew("gene_id", filter.Equals("TP53"))))
	assert.Equal(t, int64(100), st.RowsMatched)
}

func TestProcess_Progress(t *testing.T) {
	in := writeGenes(t, 3000)
	cfg := DefaultConfig()
	cfg.ChunkSize = 256
	cfg.Progress.RefreshRate = time.Nanosecond

	var (
		mu      sync.Mutex
		updates []Progress
	)
	st := runEngine(t, in, outPath(t), WithConfig(cfg), WithProgressFunc(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, p)
	}))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.True(t, last.Done)
	assert.Equal(t, st.RowsProcessed, last.RowsProcessed)
	assert.InDelta(t, 1.0, last.Fraction(), 1e-9)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].RowsProcessed, updates[i-1].RowsProcessed)
	}
}

func TestProcess_Metrics(t *testing.T) {
	in := writeGenes(t, 1000)
	cfg := DefaultConfig()
	cfg.ChunkSize = 1024
	mc := &BasicMetricsCollector{}

	st := runEngine(t, in, outPath(t), WithConfig(cfg), WithMetricsCollector(mc))

	got := mc.GetStats()
	assert.Equal(t, int64(1), got.ProcessCount)
	assert.Equal(t, int64(0), got.ProcessErrors)
	assert.Equal(t, st.RowsProcessed, got.RowsProcessed)
	assert.Equal(t, int64(st.Chunks), got.ChunkCount)
	assert.Equal(t, int64(len(mustRead(t, in)))-int64(len("gene_id,tissue,expr\n")), got.ChunkBytes)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestEngine_AddFilter(t *testing.T) {
	in := writeFile(t, "expr.csv", "gene,expr\nA,0.2\nB,0.7\nC,0.9\n")
	out := outPath(t)

	eng, err := New(in, out)
	require.NoError(t, err)
	eng.AddFilter(filter.MustNew("expr", filter.GreaterThan(0.5))).
		AddFilter(nil).
		AddFilter(filter.NewFunc("gene", "gene is not C", func(cell []byte) bool { return string(cell) != "C" }))
	assert.Len(t, eng.Filters(), 2)

	st, err := eng.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.RowsMatched)
	assert.Equal(t, []string{"gene,expr", "B,0.7"}, readLines(t, out))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "out.csv")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New("in.csv", "")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.ChunkSize = 0
	_, err = New("in.csv", "out.csv", WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestNew_ConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputColumns = []string{"gene"}

	eng, err := New("in.csv", "out.csv", WithConfig(cfg))
	require.NoError(t, err)
	cfg.OutputColumns[0] = "expr"

	assert.Equal(t, []string{"gene"}, eng.Config().OutputColumns)
}

func TestOptions_IndexWinsOverLaterConfig(t *testing.T) {
	eng, err := New("in.csv", "out.csv", WithIndexPath("in.xidx"), WithConfig(DefaultConfig()))
	require.NoError(t, err)
	assert.True(t, eng.Config().UseIndex)
}

func buildIndex(t *testing.T, in string, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(in, outPath(t), opts...)
	require.NoError(t, err)
	_, err = eng.BuildIndex(context.Background(), "gene_id", "tissue")
	require.NoError(t, err)
	return eng
}

func TestIndexed_MatchesStreaming(t *testing.T) {
	in := writeGenes(t, 10000)
	ixPath := filepath.Join(t.TempDir(), "genes.xidx")
	buildIndex(t, in, WithIndexPath(ixPath))

	filters := []filter.Filter{
		filter.MustNew("gene_id", filter.Equals("BRCA1")),
		filter.MustNew("expr", filter.GreaterThan(0.5)),
	}

	streamOut := outPath(t)
	streamed := runEngine(t, in, streamOut, WithFilters(filters...))

	// A fresh engine reloads the index from disk.
	indexOut := outPath(t)
	indexed := runEngine(t, in, indexOut, WithIndexPath(ixPath), WithFilters(filters...))

	assert.Equal(t, ModeIndexed, indexed.Mode)
	assert.Equal(t, ModeStreaming, streamed.Mode)
	assert.Equal(t, readLines(t, streamOut), readLines(t, indexOut))
	assert.Equal(t, streamed.RowsMatched, indexed.RowsMatched)
	assert.Equal(t, int64(2000), indexed.RowsProcessed, "only BRCA1 candidates are read")
	assert.Equal(t, int64(10000), streamed.RowsProcessed)
}

func TestIndexed_RareGene(t *testing.T) {
	var b strings.Builder
	b.WriteString("snpeff.ann.gene_id\tpval\n")
	for i := 0; i < 10000; i++ {
		gene := fmt.Sprintf("G%05d", i)
		if i == 17 || i == 4242 || i == 9999 {
			gene = "BRCA1"
		}
		fmt.Fprintf(&b, "%s\t%d\n", gene, i)
	}
	in := writeFile(t, "variants.tsv", b.String())

	eng, err := New(in, outPath(t), WithConfig(TSVConfig()))
	require.NoError(t, err)
	ix, err := eng.BuildIndex(context.Background(), "snpeff.ann.gene_id")
	require.NoError(t, err)
	assert.Len(t, ix.Lookup("BRCA1"), 3)

	_, err = os.Stat(index.DefaultPath(in))
	require.NoError(t, err, "index is persisted next to the input by default")

	cfg := TSVConfig()
	cfg.UseIndex = true
	out := outPath(t)
	st := runEngine(t, in, out, WithConfig(cfg),
		WithFilters(filter.MustNew("snpeff.ann.gene_id", filter.Equals("BRCA1"))))

	assert.Equal(t, ModeIndexed, st.Mode)
	assert.Equal(t, int64(3), st.RowsProcessed)
	assert.Equal(t, []string{"snpeff.ann.gene_id\tpval", "BRCA1\t17", "BRCA1\t4242", "BRCA1\t9999"}, readLines(t, out))
}

func TestIndexed_IntersectsSecondary(t *testing.T) {
	in := writeGenes(t, 1000)
	eng := buildIndex(t, in, WithIndexStore(blobstore.NewMemoryStore(), "genes.xidx"))

	eng.AddFilter(filter.MustNew("gene_id", filter.OneOf("BRCA1", "TP53"))).
		AddFilter(filter.MustNew("tissue", filter.Equals("liver")))

	plan, err := eng.Explain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeIndexed, plan.Mode)
	assert.Len(t, plan.Constraints, 2)
	assert.Empty(t, plan.Residual)
	assert.Equal(t, "genes.xidx", plan.Index)
	// Even BRCA1 rows are i%10 == 0, even TP53 rows are i%10 == 2.
	assert.Equal(t, 200, plan.Candidates)

	st, err := eng.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), st.RowsMatched)
	assert.Equal(t, int64(200), st.RowsProcessed)
}

func TestIndexed_StoreRoundTrip(t *testing.T) {
	in := writeGenes(t, 500)
	store := blobstore.NewMemoryStore()
	buildIndex(t, in, WithIndexStore(store, "genes.xidx"))

	out := outPath(t)
	st := runEngine(t, in, out, WithIndexStore(store, "genes.xidx"),
		WithFilters(filter.MustNew("gene_id", filter.Equals("EGFR"))))
	assert.Equal(t, ModeIndexed, st.Mode)
	assert.Equal(t, int64(100), st.RowsMatched)
}

func TestIndexed_FallsBackToStreaming(t *testing.T) {
	in := writeGenes(t, 500)
	ixPath := filepath.Join(t.TempDir(), "genes.xidx")
	buildIndex(t, in, WithIndexPath(ixPath))

	eng, err := New(in, outPath(t), WithIndexPath(ixPath),
		WithFilters(filter.MustNew("expr", filter.GreaterThan(0.9))))
	require.NoError(t, err)

	plan, err := eng.Explain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeStreaming, plan.Mode)
	assert.Contains(t, plan.Reason, "no equality filter")

	st, err := eng.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeStreaming, st.Mode)
	assert.Equal(t, int64(500), st.RowsProcessed)
}

func TestIndexed_Outdated(t *testing.T) {
	in := writeGenes(t, 500)
	ixPath := filepath.Join(t.TempDir(), "genes.xidx")
	buildIndex(t, in, WithIndexPath(ixPath))

	require.NoError(t, os.WriteFile(in, []byte("gene_id,tissue,expr\nBRCA1,liver,0.9\n"), 0o600))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(in, later, later))

	keep := filter.MustNew("gene_id", filter.Equals("BRCA1"))
	eng, err := New(in, outPath(t), WithIndexPath(ixPath), WithFilters(keep))
	require.NoError(t, err)

	_, err = eng.Process(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrOutdated)
	assert.Equal(t, KindIndex, KindOf(err))
}

func TestIndexed_MissingIndex(t *testing.T) {
	in := writeGenes(t, 10)
	eng, err := New(in, outPath(t), WithIndexPath(filepath.Join(t.TempDir(), "none.xidx")),
		WithFilters(filter.MustNew("gene_id", filter.Equals("BRCA1"))))
	require.NoError(t, err)

	_, err = eng.Process(context.Background())
	assert.Equal(t, KindIndex, KindOf(err))
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestIndexed_ConfigMismatch(t *testing.T) {
	in := writeGenes(t, 10)
	ixPath := filepath.Join(t.TempDir(), "genes.xidx")
	buildIndex(t, in, WithIndexPath(ixPath))

	cfg := DefaultConfig()
	cfg.Delimiter = ';'
	eng, err := New(in, outPath(t), WithConfig(cfg), WithIndexPath(ixPath))
	require.NoError(t, err)

	_, err = eng.Process(context.Background())
	assert.ErrorIs(t, err, ErrIndexMismatch)
}

func TestBuildIndex_UnknownColumn(t *testing.T) {
	in := writeGenes(t, 10)
	mc := &BasicMetricsCollector{}
	eng, err := New(in, outPath(t), WithIndexPath(filepath.Join(t.TempDir(), "x.xidx")),
		WithMetricsCollector(mc))
	require.NoError(t, err)

	_, err = eng.BuildIndex(context.Background(), "symbol")
	require.Error(t, err)
	assert.Equal(t, KindColumn, KindOf(err))

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "symbol", ee.Column)
	assert.Equal(t, int64(1), mc.GetStats().IndexBuildErrors)
}

func TestExplain_IndexDisabled(t *testing.T) {
	eng, err := New("in.csv", "out.csv", WithFilters(filter.MustNew("gene", filter.Equals("A"))))
	require.NoError(t, err)

	plan, err := eng.Explain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeStreaming, plan.Mode)
	assert.Len(t, plan.Residual, 1)
}

func TestProcess_Logging(t *testing.T) {
	in := writeFile(t, "expr.csv", "gene,expr\nA,0.2\n")
	var buf bytes.Buffer

	runEngine(t, in, outPath(t), WithLogger(NewLogger(slog.NewJSONHandler(&buf, nil))))

	var records []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, "process completed", last["msg"])
	assert.Equal(t, "streaming", last["mode"])
	assert.NotEmpty(t, last["run_id"])
	assert.Equal(t, in, last["input"])
}

func TestTranslateError(t *testing.T) {
	typed := &Error{Kind: KindParse, Op: "x"}
	assert.Same(t, typed, translateError("op", "", typed))
	assert.ErrorIs(t, translateError("op", "", context.Canceled), context.Canceled)
	assert.Equal(t, Kind(0), KindOf(translateError("op", "", context.Canceled)))
	assert.Nil(t, translateError("op", "", nil))

	_, ferr := filter.New("expr", filter.Regex("("))
	require.Error(t, ferr)
	err := translateError("op", "", ferr)
	assert.Equal(t, KindFilter, KindOf(err))
	assert.ErrorIs(t, err, filter.ErrInvalidRegex)

	assert.Equal(t, KindIndex, KindOf(translateError("op", "p", index.ErrOutdated)))
	assert.Equal(t, KindParse, KindOf(translateError("op", "p", source.ErrMalformedHeader)))
	assert.Equal(t, KindIO, KindOf(translateError("op", "p", errors.New("disk on fire"))))
}
