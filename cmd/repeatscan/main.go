package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"repeatscan/internal/bucket"
	"repeatscan/internal/config"
	"repeatscan/internal/db"
	"repeatscan/internal/engine"
	"repeatscan/internal/ingest"
	"repeatscan/internal/logger"
	"repeatscan/internal/pipeline"
	"repeatscan/internal/record"
	"repeatscan/internal/render"
	"repeatscan/internal/report"
	"repeatscan/internal/workspace"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("repeatscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagConfig     string
		flagMode       string
		flagMin        int
		flagThresholds string
		flagShards     int
		flagWorkers    int
		flagOut        string
		flagFormat     string
		flagSort       string
		flagNoHeader   bool
		flagLabelCol   string
		flagTextCol    string
		flagQuiet      bool
		flagNoColor    bool
		flagLimit      int
	)
	fs.StringVar(&flagConfig, "config", "", "YAML config file")
	fs.StringVar(&flagMode, "mode", "", "detection mode: maximal or fixed-window")
	fs.IntVar(&flagMin, "min", 0, "minimum repeat length in characters")
	fs.StringVar(&flagThresholds, "thresholds", "", "comma separated bucket thresholds, e.g. 20,40,60")
	fs.IntVar(&flagShards, "shards", 0, "number of shards for the per-shard index phase")
	fs.IntVar(&flagWorkers, "workers", 0, "parallel workers")
	fs.StringVar(&flagOut, "out", "", "report directory")
	fs.StringVar(&flagFormat, "format", "", "export formats: csv,json,sqlite (empty string disables exports)")
	fs.StringVar(&flagSort, "sort", "", "report order and console grouping: sequence, label, length or record")
	fs.BoolVar(&flagNoHeader, "no-header", false, "input CSV has no header row")
	fs.StringVar(&flagLabelCol, "label-col", "", "label column, by 0-based position or header name")
	fs.StringVar(&flagTextCol, "text-col", "", "text column, by 0-based position or header name")
	fs.BoolVar(&flagQuiet, "quiet", false, "skip the console report and log only errors")
	fs.BoolVar(&flagNoColor, "no-color", false, "mark spans with [[ ]] instead of colour")
	fs.IntVar(&flagLimit, "limit", 0, "print at most this many groups to the console")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: repeatscan [flags] <file.csv|file.docx|file.pdf>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	input := fs.Arg(0)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["mode"] {
		cfg.Detect.Mode = flagMode
	}
	if set["min"] {
		cfg.Detect.MinLength = flagMin
	}
	if set["thresholds"] {
		thresholds, err := bucket.Parse(flagThresholds)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid thresholds: %v\n", err)
			return 1
		}
		cfg.Detect.Thresholds = thresholds
	}
	if set["shards"] {
		cfg.Detect.Shards = flagShards
	}
	if set["workers"] {
		cfg.Detect.Workers = flagWorkers
	}
	if set["out"] {
		cfg.Output.Dir = flagOut
	}
	if set["format"] {
		cfg.Output.Formats = splitList(flagFormat)
	}
	if set["sort"] {
		cfg.Output.Sort = flagSort
	}
	if flagNoHeader {
		cfg.Input.Header = false
	}
	if set["label-col"] {
		setColumn(flagLabelCol, &cfg.Input.LabelColumn, &cfg.Input.LabelName)
	}
	if set["text-col"] {
		setColumn(flagTextCol, &cfg.Input.TextColumn, &cfg.Input.TextName)
	}
	if flagQuiet {
		cfg.Output.Console = false
		cfg.Logging.Level = "error"
	}
	if flagNoColor {
		cfg.Output.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return fail(stderr, err)
	}

	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	csvOpts := ingest.CSVOptions{
		Header:      cfg.Input.Header,
		LabelColumn: cfg.Input.LabelColumn,
		TextColumn:  cfg.Input.TextColumn,
		LabelName:   cfg.Input.LabelName,
		TextName:    cfg.Input.TextName,
		NullMarkers: cfg.Input.NullMarkers,
		Comma:       []rune(cfg.Input.Comma)[0],
	}
	parsed, err := ingest.ParseFile(input, csvOpts)
	if err != nil {
		return fail(stderr, err)
	}
	batch := record.Normalize(parsed.Rows, record.Options{HeaderRows: parsed.HeaderRows, NFC: cfg.Normalize.NFC})
	for _, w := range batch.Warnings {
		fmt.Fprintf(stderr, "Row %d skipped: %v\n", w.Row, w.Err)
	}

	mode, _ := engine.ParseMode(cfg.Detect.Mode)
	res, err := pipeline.Run(ctx, batch, pipeline.Options{
		Mode:       mode,
		MinLength:  cfg.Detect.MinLength,
		Thresholds: cfg.Detect.Thresholds,
		Shards:     cfg.Detect.Shards,
		Workers:    cfg.Detect.Workers,
		MaxRunes:   cfg.Detect.MaxRunes,
		Timeout:    cfg.Detect.Timeout,
		Logger:     log.With("source", parsed.Title),
	})
	if err != nil {
		return fail(stderr, err)
	}
	if res.Empty {
		fmt.Fprintf(stdout, "No usable records found in %s.\n", input)
		return 0
	}

	key, _ := report.ParseSortKey(cfg.Output.Sort)
	report.Sort(res.Rows, key)

	if len(res.Findings) == 0 {
		fmt.Fprintf(stdout, "No repeated sequences of %d or more characters found across %d records.\n", res.MinLength, res.Records)
	} else if cfg.Output.Console {
		fmt.Fprintf(stdout, "Found %d repeated sequences across %d records.\n\n", len(res.Findings), res.Records)
		if err := render.Report(stdout, res.Rows, render.Options{Color: cfg.Output.Color, Context: 40, Group: key, Limit: flagLimit}); err != nil {
			return fail(stderr, err)
		}
	}

	if len(cfg.Output.Formats) == 0 || cfg.Output.Dir == "" {
		return 0
	}
	outputs, err := export(cfg, input, res)
	if err != nil {
		return fail(stderr, err)
	}
	if !flagQuiet {
		for _, p := range outputs {
			fmt.Fprintf(stdout, "wrote %s\n", p)
		}
	}
	return 0
}

// export writes the configured formats and the run summary into a fresh run
// directory and returns the written paths.
func export(cfg config.Config, input string, res *pipeline.Result) ([]string, error) {
	root, err := workspace.EnsureAt(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	runInfo, err := workspace.CreateRun(root, input)
	if err != nil {
		return nil, err
	}

	var outputs []string
	for _, format := range cfg.Output.Formats {
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "csv":
			if err := writeFile(runInfo.CSVPath, func(w io.Writer) error {
				return report.WriteCSV(w, res.Rows, cfg.Output.BOM)
			}); err != nil {
				return nil, err
			}
			outputs = append(outputs, runInfo.CSVPath)
		case "json":
			if err := writeFile(runInfo.JSONPath, func(w io.Writer) error {
				return report.WriteJSON(w, res.Rows)
			}); err != nil {
				return nil, err
			}
			outputs = append(outputs, runInfo.JSONPath)
		case "sqlite":
			run := db.Run{
				ID:        runInfo.ID,
				Source:    input,
				Mode:      string(res.Mode),
				MinLength: res.MinLength,
				CreatedAt: time.Now(),
			}
			if err := db.PersistReport(runInfo.DBPath, run, res.Findings); err != nil {
				return nil, err
			}
			outputs = append(outputs, runInfo.DBPath)
		}
	}

	summary := workspace.Report{
		RunID:       runInfo.ID.String(),
		Source:      input,
		Mode:        string(res.Mode),
		MinLength:   res.MinLength,
		Thresholds:  res.Buckets,
		Records:     res.Records,
		Runes:       res.Runes,
		SkippedRows: len(res.Warnings),
		Summary:     report.Summarize(res.Findings),
		Outputs:     outputs,
		Traces:      res.Traces,
		CreatedAt:   time.Now().UTC(),
	}
	if err := workspace.SaveReport(runInfo.ReportPath, summary); err != nil {
		return nil, err
	}
	return append(outputs, runInfo.ReportPath), nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func fail(stderr io.Writer, err error) int {
	var engErr *engine.Error
	switch {
	case errors.Is(err, engine.ErrInvalidThreshold):
		fmt.Fprintf(stderr, "Invalid threshold: %v\n", err)
	case errors.Is(err, engine.ErrResourceExhausted):
		fmt.Fprintf(stderr, "Input too large: %v\nRaise detect.max_runes or split the input.\n", err)
	case errors.Is(err, ingest.ErrColumnNotFound):
		fmt.Fprintf(stderr, "Column error: %v\n", err)
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(stderr, "Detection timed out: %v\n", err)
	case errors.As(err, &engErr):
		fmt.Fprintf(stderr, "Detection failed in %s on %d records (%d characters): %v\n", engErr.Op, engErr.Records, engErr.Runes, engErr.Err)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

func setColumn(v string, pos *int, name *string) {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*pos = n
		*name = ""
		return
	}
	*name = strings.TrimSpace(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
