package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hupe1980/extractor"
	"github.com/hupe1980/extractor/blobstore"
	"github.com/hupe1980/extractor/blobstore/minio"
	"github.com/hupe1980/extractor/blobstore/s3"
	"github.com/hupe1980/extractor/index"
	"github.com/hupe1980/extractor/internal/genes"
	"github.com/hupe1980/extractor/row"
)

// envPrefix prefixes environment overrides, e.g. EXTRACTOR_THREADS=4.
const envPrefix = "EXTRACTOR_"

// fileConfig is the JSON configuration file. Zero values keep the defaults.
type fileConfig struct {
	Delimiter        string `json:"delimiter"`
	NoHeader         bool   `json:"no_header"`
	ChunkSize        int    `json:"chunk_size"`
	Threads          int    `json:"threads"`
	Sequential       bool   `json:"sequential"`
	MemoryLimit      int64  `json:"memory_limit"`
	MaxMapSize       int64  `json:"max_map_size"`
	ReadRateLimit    int64  `json:"read_rate_limit"`
	OutputFormat     string `json:"output_format"`
	IndexCompression string `json:"index_compression"`
	SkipIndexCheck   bool   `json:"skip_index_verification"`
	LogLevel         string `json:"log_level"`

	Paths      pathsConfig      `json:"paths"`
	Files      filesConfig      `json:"files"`
	Processing processingConfig `json:"processing"`
	Store      storeConfig      `json:"store"`
}

type pathsConfig struct {
	GWAS      string `json:"gwas"`
	TraitData string `json:"trait_data"`
	Output    string `json:"output"`
}

type filesConfig struct {
	GWASOutput  string `json:"gwas_output"`
	TraitOutput string `json:"trait_output"`
	SGAOutput   string `json:"sga_output"`
}

type processingConfig struct {
	GWASDelimiter  string `json:"gwas_delimiter"`
	TraitDelimiter string `json:"trait_delimiter"`
	GeneColumn     string `json:"gene_column"`
}

// storeConfig selects where index files live. Kind is "local" (default),
// "s3" or "minio".
type storeConfig struct {
	Kind        string `json:"kind"`
	Dir         string `json:"dir"`
	Bucket      string `json:"bucket"`
	Prefix      string `json:"prefix"`
	Region      string `json:"region"`
	Endpoint    string `json:"endpoint"`
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
	Secure      bool   `json:"secure"`
	CommitTable string `json:"commit_table"`
}

// loadConfig reads path, if set, and applies environment overrides.
func loadConfig(path string, getenv func(string) string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := fc.applyEnv(getenv); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *fileConfig) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"DELIMITER":                  &fc.Delimiter,
		"OUTPUT_FORMAT":              &fc.OutputFormat,
		"INDEX_COMPRESSION":          &fc.IndexCompression,
		"LOG_LEVEL":                  &fc.LogLevel,
		"PATHS_GWAS":                 &fc.Paths.GWAS,
		"PATHS_TRAIT_DATA":           &fc.Paths.TraitData,
		"PATHS_OUTPUT":               &fc.Paths.Output,
		"FILES_GWAS_OUTPUT":          &fc.Files.GWASOutput,
		"FILES_TRAIT_OUTPUT":         &fc.Files.TraitOutput,
		"FILES_SGA_OUTPUT":           &fc.Files.SGAOutput,
		"PROCESSING_GWAS_DELIMITER":  &fc.Processing.GWASDelimiter,
		"PROCESSING_TRAIT_DELIMITER": &fc.Processing.TraitDelimiter,
		"PROCESSING_GENE_COLUMN":     &fc.Processing.GeneColumn,
		"STORE_KIND":                 &fc.Store.Kind,
		"STORE_DIR":                  &fc.Store.Dir,
		"STORE_BUCKET":               &fc.Store.Bucket,
		"STORE_PREFIX":               &fc.Store.Prefix,
		"STORE_REGION":               &fc.Store.Region,
		"STORE_ENDPOINT":             &fc.Store.Endpoint,
		"STORE_ACCESS_KEY":           &fc.Store.AccessKey,
		"STORE_SECRET_KEY":           &fc.Store.SecretKey,
		"STORE_COMMIT_TABLE":         &fc.Store.CommitTable,
	}
	for k, p := range str {
		if v := getenv(envPrefix + k); v != "" {
			*p = v
		}
	}

	ints := map[string]*int{
		"CHUNK_SIZE": &fc.ChunkSize,
		"THREADS":    &fc.Threads,
	}
	for k, p := range ints {
		if v := getenv(envPrefix + k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, k, err)
			}
			*p = n
		}
	}

	int64s := map[string]*int64{
		"MEMORY_LIMIT": &fc.MemoryLimit,
		"MAX_MAP_SIZE": &fc.MaxMapSize,
		"READ_RATE":    &fc.ReadRateLimit,
	}
	for k, p := range int64s {
		if v := getenv(envPrefix + k); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, k, err)
			}
			*p = n
		}
	}

	bools := map[string]*bool{
		"NO_HEADER":               &fc.NoHeader,
		"SEQUENTIAL":              &fc.Sequential,
		"SKIP_INDEX_VERIFICATION": &fc.SkipIndexCheck,
		"STORE_SECURE":            &fc.Store.Secure,
	}
	for k, p := range bools {
		if v := getenv(envPrefix + k); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, k, err)
			}
			*p = b
		}
	}
	return nil
}

// engineConfig merges the file settings into extractor.DefaultConfig.
func (fc *fileConfig) engineConfig() (extractor.Config, error) {
	cfg := extractor.DefaultConfig()
	if fc.Delimiter != "" {
		d, err := parseDelimiter(fc.Delimiter)
		if err != nil {
			return cfg, err
		}
		cfg.Delimiter = d
	}
	cfg.HasHeader = !fc.NoHeader
	if fc.ChunkSize > 0 {
		cfg.ChunkSize = fc.ChunkSize
	}
	cfg.Threads = fc.Threads
	cfg.Parallel = !fc.Sequential
	cfg.MemoryLimit = fc.MemoryLimit
	cfg.MaxMapSize = fc.MaxMapSize
	cfg.ReadRateLimit = fc.ReadRateLimit
	cfg.SkipIndexVerification = fc.SkipIndexCheck
	if fc.OutputFormat != "" {
		f, err := extractor.ParseOutputFormat(fc.OutputFormat)
		if err != nil {
			return cfg, err
		}
		cfg.OutputFormat = f
	}
	if fc.IndexCompression != "" {
		c, err := index.ParseCompression(fc.IndexCompression)
		if err != nil {
			return cfg, err
		}
		cfg.IndexCompression = c
	}
	return cfg, cfg.Validate()
}

// geneConfig returns the gene workflow configuration.
func (fc *fileConfig) geneConfig() (genes.Config, error) {
	gc := genes.DefaultConfig()
	engine, err := fc.engineConfig()
	if err != nil {
		return gc, err
	}
	gc.Engine = engine

	setString(&gc.GWASDir, fc.Paths.GWAS)
	setString(&gc.TraitDir, fc.Paths.TraitData)
	setString(&gc.OutputDir, fc.Paths.Output)
	setString(&gc.GWASOutput, fc.Files.GWASOutput)
	setString(&gc.TraitOutput, fc.Files.TraitOutput)
	setString(&gc.SGAOutput, fc.Files.SGAOutput)
	setString(&gc.GeneColumn, fc.Processing.GeneColumn)

	for _, d := range []struct {
		s   string
		dst *byte
	}{
		{fc.Processing.GWASDelimiter, &gc.GWASDelimiter},
		{fc.Processing.TraitDelimiter, &gc.TraitDelimiter},
	} {
		if d.s == "" {
			continue
		}
		b, err := parseDelimiter(d.s)
		if err != nil {
			return gc, err
		}
		*d.dst = b
	}
	return gc, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (fc *fileConfig) logLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(fc.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// openStore returns the configured index store, or nil for local files.
func (fc *fileConfig) openStore(ctx context.Context) (blobstore.BlobStore, error) {
	sc := fc.Store
	switch strings.ToLower(sc.Kind) {
	case "", "local":
		if sc.Dir == "" {
			return nil, nil
		}
		return blobstore.NewLocalStore(sc.Dir), nil
	case "s3":
		if sc.Bucket == "" {
			return nil, errors.New("store: s3 needs a bucket")
		}
		st, err := s3.New(ctx, sc.Bucket, func(o *s3.Options) {
			o.Region = sc.Region
			o.Endpoint = sc.Endpoint
			o.Prefix = sc.Prefix
		})
		if err != nil {
			return nil, err
		}
		if sc.CommitTable == "" {
			return st, nil
		}
		cs, err := st.CommitStore(sc.CommitTable)
		if err != nil {
			return nil, err
		}
		return cs, nil
	case "minio":
		if sc.Bucket == "" || sc.Endpoint == "" {
			return nil, errors.New("store: minio needs an endpoint and a bucket")
		}
		st, err := minio.Dial(ctx, sc.Endpoint, sc.Bucket, minio.Options{
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Secure:    sc.Secure,
			Region:    sc.Region,
			Prefix:    sc.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("store: unknown kind %q", sc.Kind)
}

// parseDelimiter accepts a single byte or one of "tab", "\t", "comma",
// "semicolon", "pipe".
func parseDelimiter(s string) (byte, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`, "\t":
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", extractor.ErrInvalidDelimiter, s)
	}
	return s[0], nil
}

// sniffSize is how much of the input auto detection looks at.
const sniffSize = 64 << 10

// inputDelimiter resolves the -d flag. "auto" guesses the delimiter from the
// head of input.
func inputDelimiter(s, input string) (byte, error) {
	if !strings.EqualFold(s, "auto") {
		return parseDelimiter(s)
	}
	f, err := os.Open(input)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}
	d, ok := row.DetectDelimiter(head[:n])
	if !ok {
		return 0, fmt.Errorf("%w: cannot detect delimiter of %s", extractor.ErrInvalidDelimiter, input)
	}
	return d, nil
}

// parseNameList decodes a JSON array of names such as `["CAD","AF"]`.
func parseNameList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, fmt.Errorf("name list %q: %w", s, err)
	}
	return names, nil
}
