// Package genes extracts the rows of one gene from directories of GWAS and
// trait association files.
//
// Every "*.txt" file of a directory whose name contains one of the
// requested CVD or trait names is filtered on the gene column, and the
// matches are appended to one CSV output per directory. In SGA mode every
// file of both directories is used, the Phenotype and Study columns are
// dropped and all matches go to a single output.
package genes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hupe1980/extractor"
	"github.com/hupe1980/extractor/filter"
)

// DefaultGeneColumn is the column holding the gene id in GWAS and trait files.
const DefaultGeneColumn = "snpeff.ann.gene_id"

// SGADropColumns are removed from SGA output.
var SGADropColumns = []string{"Phenotype", "Study"}

// ErrNoGene is returned for a request without a gene name.
var ErrNoGene = errors.New("genes: gene name is required")

// Config locates the input directories and output files.
type Config struct {
	GWASDir   string
	TraitDir  string
	OutputDir string

	GWASOutput  string
	TraitOutput string
	SGAOutput   string

	GWASDelimiter  byte
	TraitDelimiter byte

	// GeneColumn names the column compared against the gene.
	GeneColumn string
	// Engine is the base configuration for every per-file run. Delimiter,
	// output format, column drops and append mode are set per run.
	Engine extractor.Config
}

// DefaultConfig returns tab delimited inputs under "data/gwas" and
// "data/trait" with outputs in "output".
func DefaultConfig() Config {
	return Config{
		GWASDir:        filepath.Join("data", "gwas"),
		TraitDir:       filepath.Join("data", "trait"),
		OutputDir:      "output",
		GWASOutput:     "gwas_output.csv",
		TraitOutput:    "trait_output.csv",
		SGAOutput:      "sga_output.csv",
		GWASDelimiter:  '\t',
		TraitDelimiter: '\t',
		GeneColumn:     DefaultGeneColumn,
		Engine:         extractor.DefaultConfig(),
	}
}

// Request selects the gene and the files to extract from.
type Request struct {
	Gene       string
	CVDNames   []string
	TraitNames []string
	SGA        bool
}

// Output summarizes one output file.
type Output struct {
	Path          string
	Files         []string
	RowsProcessed int64
	RowsMatched   int64
	RowsMalformed int64
}

// Report lists the outputs of an extraction.
type Report struct {
	Outputs []Output
}

// RowsMatched returns the matches over all outputs.
func (r *Report) RowsMatched() int64 {
	var n int64
	for _, o := range r.Outputs {
		n += o.RowsMatched
	}
	return n
}

// job is one output and the inputs feeding it.
type job struct {
	output string
	inputs []input
	drop   []string
}

type input struct {
	path  string
	delim byte
}

// Extract runs the request. opts are passed to every engine, so loggers and
// metrics collectors see each file as one run.
func Extract(ctx context.Context, cfg Config, req Request, opts ...extractor.Option) (*Report, error) {
	if strings.TrimSpace(req.Gene) == "" {
		return nil, ErrNoGene
	}
	if cfg.GeneColumn == "" {
		cfg.GeneColumn = DefaultGeneColumn
	}

	gwas, err := listFiles(cfg.GWASDir, cfg.GWASDelimiter, req.CVDNames, req.SGA)
	if err != nil {
		return nil, err
	}
	traits, err := listFiles(cfg.TraitDir, cfg.TraitDelimiter, req.TraitNames, req.SGA)
	if err != nil {
		return nil, err
	}

	var jobs []job
	if req.SGA {
		jobs = []job{{
			output: filepath.Join(cfg.OutputDir, cfg.SGAOutput),
			inputs: slices.Concat(gwas, traits),
			drop:   SGADropColumns,
		}}
	} else {
		jobs = []job{
			{output: filepath.Join(cfg.OutputDir, cfg.GWASOutput), inputs: gwas},
			{output: filepath.Join(cfg.OutputDir, cfg.TraitOutput), inputs: traits},
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("genes: create output directory: %w", err)
	}

	gene, err := filter.New(cfg.GeneColumn, filter.Equals(req.Gene))
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	for _, j := range jobs {
		out, err := run(ctx, cfg, j, gene, opts)
		if err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, out)
	}
	return rep, nil
}

func run(ctx context.Context, cfg Config, j job, gene filter.Filter, opts []extractor.Option) (Output, error) {
	out := Output{Path: j.output}

	// Every output exists afterwards, even without matching files.
	f, err := os.Create(j.output)
	if err != nil {
		return out, fmt.Errorf("genes: %w", err)
	}
	if err := f.Close(); err != nil {
		return out, fmt.Errorf("genes: %w", err)
	}

	for _, in := range j.inputs {
		ecfg := cfg.Engine
		ecfg.Delimiter = in.delim
		ecfg.HasHeader = true
		ecfg.OutputFormat = extractor.FormatCSV
		ecfg.DropColumns = j.drop
		ecfg.Append = true

		engOpts := make([]extractor.Option, 0, len(opts)+2)
		engOpts = append(engOpts, opts...)
		engOpts = append(engOpts, extractor.WithConfig(ecfg), extractor.WithFilters(gene))

		eng, err := extractor.New(in.path, j.output, engOpts...)
		if err != nil {
			return out, err
		}
		st, err := eng.Process(ctx)
		if err != nil {
			return out, err
		}

		out.Files = append(out.Files, in.path)
		out.RowsProcessed += st.RowsProcessed
		out.RowsMatched += st.RowsMatched
		out.RowsMalformed += st.RowsMalformed
	}
	return out, nil
}

// listFiles returns the "*.txt" files of dir in lexical order whose stem
// contains one of names, or all of them when all is set.
func listFiles(dir string, delim byte, names []string, all bool) ([]input, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("genes: input directory: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("genes: %w", err)
	}

	var out []input
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if all || containsAny(stem, names) {
			out = append(out, input{path: p, delim: delim})
		}
	}
	return out, nil
}

func containsAny(s string, names []string) bool {
	for _, n := range names {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
