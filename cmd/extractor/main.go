// Command extractor filters large CSV/TSV files.
//
// Usage:
//
//	extractor filter -i variants.tsv -o brca1.tsv -where 'snpeff.ann.gene_id=BRCA1' -where 'pval<5e-8'
//	extractor index  -i variants.tsv -column snpeff.ann.gene_id -secondary dbsnp.chrom
//	extractor gene   -gene BRCA1 -cvd-names '["CAD"]' -trait-names '["LDL"]' [-sga]
//
// Every subcommand accepts -config with a JSON configuration file. Settings
// can be overridden with EXTRACTOR_* environment variables, e.g.
// EXTRACTOR_THREADS=8 or EXTRACTOR_PATHS_GWAS=/data/gwas.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"

	"github.com/hupe1980/extractor"
	"github.com/hupe1980/extractor/filter"
	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/genes"
)

const usage = `usage: extractor <command> [flags]

commands:
  filter   write the rows of a file that pass every -where expression
  index    build an index over one or more columns
  gene     extract one gene from GWAS and trait directories

run "extractor <command> -h" for the flags of a command
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "filter":
		err = runFilter(ctx, args[1:], stdout, stderr, getenv)
	case "index":
		err = runIndex(ctx, args[1:], stdout, stderr, getenv)
	case "gene":
		err = runGene(ctx, args[1:], stdout, stderr, getenv)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	}
	color.New(color.FgRed, color.Bold).Fprint(stderr, "error: ")
	fmt.Fprintln(stderr, describe(err))
	return 1
}

var errUsage = errors.New("usage")

// describe prefixes engine errors with their category.
func describe(err error) string {
	var ee *extractor.Error
	if errors.As(err, &ee) {
		return fmt.Sprintf("[%s] %v", ee.Category(), err)
	}
	return err.Error()
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	config  string
	verbose bool
	quiet   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "JSON configuration file")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	fs.BoolVar(&c.quiet, "q", false, "only log errors")
}

func (c *commonFlags) load(getenv func(string) string) (*fileConfig, *extractor.Logger, error) {
	fc, err := loadConfig(c.config, getenv)
	if err != nil {
		return nil, nil, err
	}
	level := fc.logLevel()
	switch {
	case c.verbose:
		level = slog.LevelDebug
	case c.quiet:
		level = slog.LevelError
	}
	return fc, extractor.NewTextLogger(level), nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func missing(fs *flag.FlagSet, stderr io.Writer, names ...string) error {
	fmt.Fprintf(stderr, "missing required flag(s): -%s\n", strings.Join(names, ", -"))
	fs.Usage()
	return errUsage
}

func runFilter(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := newFlagSet("filter", stderr)
	var (
		common    commonFlags
		input     = fs.String("i", "", "input file")
		output    = fs.String("o", "", "output file")
		delim     = fs.String("d", "", "field delimiter, or auto to detect it (default ',' or from config)")
		noHeader  = fs.Bool("no-header", false, "input has no header; columns are named 0, 1, ...")
		format    = fs.String("format", "", "output format: delimited, csv, tsv, jsonl")
		columns   = fs.String("columns", "", "comma separated output columns")
		drop      = fs.String("drop", "", "comma separated columns to omit")
		threads   = fs.Int("threads", -1, "worker count, 0 for one per CPU")
		chunkSize = fs.Int("chunk-size", 0, "chunk size in bytes")
		appendOut = fs.Bool("append", false, "append to the output file")
		indexPath = fs.String("index", "", "index file; enables indexed mode")
		useIndex  = fs.Bool("use-index", false, "use the index next to the input or in the configured store")
		explain   = fs.Bool("explain", false, "print the query plan and exit")
		progress  = fs.Bool("progress", false, "log progress")
		where     listFlag
	)
	common.register(fs)
	fs.Var(&where, "where", "filter expression, repeatable: col=v, col!=n, col~re, col>n, col<n, col>=n, col<=n, 'col in a|b', 'col between a..b'")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *input == "" || (*output == "" && !*explain) {
		return missing(fs, stderr, "i", "o")
	}

	fc, logger, err := common.load(getenv)
	if err != nil {
		return err
	}
	cfg, err := fc.engineConfig()
	if err != nil {
		return err
	}
	if *delim != "" {
		if cfg.Delimiter, err = inputDelimiter(*delim, *input); err != nil {
			return err
		}
	}
	if *noHeader {
		cfg.HasHeader = false
	}
	if *format != "" {
		if cfg.OutputFormat, err = extractor.ParseOutputFormat(*format); err != nil {
			return err
		}
	}
	cfg.OutputColumns = splitList(*columns)
	cfg.DropColumns = splitList(*drop)
	if *threads >= 0 {
		cfg.Threads = *threads
	}
	if *chunkSize > 0 {
		cfg.ChunkSize = *chunkSize
	}
	cfg.Append = *appendOut
	cfg.UseIndex = *useIndex
	cfg.Progress.Enabled = *progress

	opts := []extractor.Option{extractor.WithConfig(cfg), extractor.WithLogger(logger)}
	for _, expr := range where {
		f, err := filter.ParseExpr(expr)
		if err != nil {
			return err
		}
		opts = append(opts, extractor.WithFilters(f))
	}

	store, err := fc.openStore(ctx)
	if err != nil {
		return err
	}
	switch {
	case *indexPath != "" && store != nil:
		opts = append(opts, extractor.WithIndexStore(store, *indexPath))
	case *indexPath != "":
		opts = append(opts, extractor.WithIndexPath(*indexPath))
	case *useIndex && store != nil:
		opts = append(opts, extractor.WithIndexStore(store, indexName(*input)))
	}

	out := *output
	if out == "" {
		out = os.DevNull
	}
	eng, err := extractor.New(*input, out, opts...)
	if err != nil {
		return err
	}

	if *explain {
		plan, err := eng.Explain(ctx)
		if err != nil {
			return err
		}
		spew.Fdump(stdout, plan)
		return nil
	}

	st, err := eng.Process(ctx)
	if err != nil {
		return err
	}
	printStats(stdout, *output, st)
	return nil
}

func runIndex(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := newFlagSet("index", stderr)
	var (
		common      commonFlags
		input       = fs.String("i", "", "input file")
		column      = fs.String("column", "", "primary index column")
		secondary   = fs.String("secondary", "", "comma separated secondary columns")
		output      = fs.String("o", "", "index file (default: <input>.xidx or the store name)")
		delim       = fs.String("d", "", "field delimiter, or auto to detect it (default ',' or from config)")
		noHeader    = fs.Bool("no-header", false, "input has no header; columns are named 0, 1, ...")
		compression = fs.String("compression", "", "index compression: none, lz4, zstd")
	)
	common.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *input == "" || *column == "" {
		return missing(fs, stderr, "i", "column")
	}

	fc, logger, err := common.load(getenv)
	if err != nil {
		return err
	}
	if *compression != "" {
		fc.IndexCompression = *compression
	}
	cfg, err := fc.engineConfig()
	if err != nil {
		return err
	}
	if *delim != "" {
		if cfg.Delimiter, err = inputDelimiter(*delim, *input); err != nil {
			return err
		}
	}
	if *noHeader {
		cfg.HasHeader = false
	}

	opts := []extractor.Option{extractor.WithConfig(cfg), extractor.WithLogger(logger)}
	store, err := fc.openStore(ctx)
	if err != nil {
		return err
	}
	switch {
	case store != nil:
		name := *output
		if name == "" {
			name = indexName(*input)
		}
		opts = append(opts, extractor.WithIndexStore(store, name))
	case *output != "":
		opts = append(opts, extractor.WithIndexPath(*output))
	}

	eng, err := extractor.New(*input, os.DevNull, opts...)
	if err != nil {
		return err
	}
	start := time.Now()
	ix, err := eng.BuildIndex(ctx, *column, splitList(*secondary)...)
	if err != nil {
		return err
	}

	meta := ix.Metadata()
	color.New(color.FgGreen).Fprint(stdout, "indexed ")
	fmt.Fprintf(stdout, "%d rows of %s on %s (%d keys) in %s\n",
		meta.RowCount, *input, strings.Join(ix.Columns(), ", "), ix.Keys(ix.Column()),
		time.Since(start).Round(time.Millisecond))
	return nil
}

func runGene(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := newFlagSet("gene", stderr)
	var (
		common     commonFlags
		gene       = fs.String("gene", "", "gene id to extract")
		cvdNames   = fs.String("cvd-names", "", `JSON array of CVD names, e.g. '["CAD","AF"]'`)
		traitNames = fs.String("trait-names", "", `JSON array of trait names, e.g. '["LDL"]'`)
		sga        = fs.Bool("sga", false, "use every file and write one output without Phenotype and Study")
	)
	common.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *gene == "" {
		return missing(fs, stderr, "gene")
	}

	fc, logger, err := common.load(getenv)
	if err != nil {
		return err
	}
	gc, err := fc.geneConfig()
	if err != nil {
		return err
	}
	cvds, err := parseNameList(*cvdNames)
	if err != nil {
		return err
	}
	traits, err := parseNameList(*traitNames)
	if err != nil {
		return err
	}

	mode := "gene"
	if *sga {
		mode = "sga"
	}
	logger.InfoContext(ctx, "extracting", "mode", mode, "gene", *gene)

	rep, err := genes.Extract(ctx, gc, genes.Request{
		Gene:       *gene,
		CVDNames:   cvds,
		TraitNames: traits,
		SGA:        *sga,
	}, extractor.WithLogger(logger))
	if err != nil {
		return err
	}

	for _, o := range rep.Outputs {
		color.New(color.FgGreen).Fprint(stdout, "wrote ")
		fmt.Fprintf(stdout, "%s: %d rows from %d files\n", o.Path, o.RowsMatched, len(o.Files))
	}
	return nil
}

func printStats(w io.Writer, output string, st *extractor.Stats) {
	c := color.New(color.FgGreen)
	if st.RowsMatched == 0 {
		c = color.New(color.FgYellow)
	}
	c.Fprintf(w, "%d/%d rows matched", st.RowsMatched, st.RowsProcessed)
	fmt.Fprintf(w, " -> %s (%s, %d chunks on %d workers, %s)\n",
		output, st.Mode, st.Chunks, st.Workers, st.Elapsed.Round(time.Millisecond))
	if st.RowsMalformed > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d malformed rows skipped\n", st.RowsMalformed)
	}
}

// indexName is the store name of the index of input.
func indexName(input string) string {
	return filepath.Base(input) + index.FileExt
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
