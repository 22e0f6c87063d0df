package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"repeatscan/internal/bucket"
	"repeatscan/internal/engine"
	"repeatscan/internal/locate"
	"repeatscan/internal/logger"
	"repeatscan/internal/record"
	"repeatscan/internal/report"
	"repeatscan/internal/shard"
)

type Options struct {
	Mode engine.Mode
	// MinLength is the global minimum; 0 means the smallest threshold.
	MinLength  int
	Thresholds []int
	Shards     int
	Workers    int
	MaxRunes   int
	Timeout    time.Duration
	Logger     *logger.Logger
}

type SpanTrace struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status"`
}

type Result struct {
	Mode      engine.Mode      `json:"mode"`
	MinLength int              `json:"min_length"`
	Buckets   bucket.Set       `json:"buckets"`
	Records   int              `json:"records"`
	Runes     int              `json:"runes"`
	Empty     bool             `json:"empty"`
	Findings  []report.Finding `json:"findings"`
	Rows      []report.Row     `json:"-"`
	Warnings  []record.Warning `json:"-"`
	Traces    []SpanTrace      `json:"traces"`
}

// Categorized returns the findings that reached a bucket, keyed by threshold.
func (r *Result) Categorized() map[int][]report.Finding {
	out := map[int][]report.Finding{}
	for _, f := range r.Findings {
		if f.Bucket > 0 {
			out[f.Bucket] = append(out[f.Bucket], f)
		}
	}
	return out
}

// Run detects repeats in batch and materializes occurrences, buckets and export rows.
// A batch without records yields a Result with Empty set, not an error.
func Run(ctx context.Context, batch record.Batch, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	var buckets bucket.Set
	if len(opts.Thresholds) > 0 {
		set, err := bucket.New(opts.Thresholds)
		if err != nil {
			return nil, err
		}
		buckets = set
	}
	minLength := opts.MinLength
	if minLength == 0 {
		minLength = buckets.Min()
	}
	detectOpts := engine.Options{MinLength: minLength, Mode: opts.Mode}
	if err := detectOpts.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Mode:      opts.Mode,
		MinLength: minLength,
		Buckets:   buckets,
		Records:   len(batch.Records),
		Warnings:  batch.Warnings,
	}
	for _, w := range batch.Warnings {
		log.Warn("row skipped", "row", w.Row, "error", w.Err)
	}
	if len(batch.Records) == 0 {
		res.Empty = true
		log.Warn("no usable records after normalization", "warnings", len(batch.Warnings))
		return res, nil
	}

	runes, err := engine.CheckBudget(batch.Records, opts.MaxRunes)
	res.Runes = runes
	if err != nil {
		log.Error("resource budget exceeded", "records", len(batch.Records), "runes", runes, "limit", opts.MaxRunes)
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []engine.Match
	for _, length := range passLengths(opts.Mode, minLength, buckets) {
		var found []engine.Match
		err := withSpan(res, log, fmt.Sprintf("detect_%s_%d", opts.Mode, length), func() error {
			var err error
			found, err = detect(ctx, batch.Records, length, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Info("detection pass finished", "mode", opts.Mode, "length", length, "records", len(batch.Records), "shards", max(opts.Shards, 1), "matches", len(found))
		matches = append(matches, found...)
	}

	err = withSpan(res, log, "locate", func() error {
		res.Findings = make([]report.Finding, 0, len(matches))
		for i, m := range matches {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			f := report.Finding{Match: m, Occurrences: occurrences(batch, m)}
			if t, ok := buckets.Assign(m.Length); ok {
				f.Bucket = t
			}
			res.Findings = append(res.Findings, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = withSpan(res, log, "aggregate", func() error {
		res.Rows = report.Build(res.Findings)
		return nil
	})
	return res, nil
}

// occurrences resolves a match's hits against the batch. Matches built without
// hits are located by scanning their supporting records.
func occurrences(batch record.Batch, m engine.Match) []locate.Occurrence {
	if m.Hits == nil {
		supporting := make([]record.Record, 0, len(m.Records))
		for _, id := range m.Records {
			if r, ok := batch.ByID(id); ok {
				supporting = append(supporting, r)
			}
		}
		return locate.All(m.Sequence, supporting)
	}
	out := make([]locate.Occurrence, 0, len(m.Hits))
	for _, h := range m.Hits {
		r, ok := batch.ByID(h.Record)
		if !ok {
			continue
		}
		out = append(out, locate.Occurrence{RecordID: r.ID, Row: r.Row, Label: r.Label, Text: r.Text, Offset: h.Offset})
	}
	return out
}

// passLengths lists the window lengths to scan. Maximal mode needs one pass at the
// global minimum; fixed-window mode scans every threshold at or above it.
func passLengths(mode engine.Mode, minLength int, buckets bucket.Set) []int {
	if mode != engine.ModeFixedWindow {
		return []int{minLength}
	}
	out := []int{minLength}
	for _, t := range buckets {
		if t >= minLength {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// detectPass is the single-pass engine entry point.
var detectPass = engine.Detect

func detect(ctx context.Context, records []record.Record, length int, opts Options) ([]engine.Match, error) {
	if opts.Shards <= 1 {
		return detectPass(ctx, records, engine.Options{MinLength: length, Mode: opts.Mode})
	}

	parts := shard.Partition(records, opts.Shards)
	indexes := make([]engine.WindowIndex, len(parts))
	err := forEach(ctx, len(parts), opts.Workers, func(_ context.Context, i int) error {
		indexes[i] = engine.BuildWindowIndex(parts[i], length)
		return nil
	})
	if err != nil {
		return nil, err
	}
	merged := engine.MergeWindowIndexes(indexes...)
	if opts.Mode == engine.ModeFixedWindow {
		matches := engine.SharedWindows(merged, length)
		engine.AttachWindowHits(records, matches)
		return matches, nil
	}

	groups := components(records, merged)
	found := make([][]engine.Match, len(groups))
	err = forEach(ctx, len(groups), opts.Workers, func(ctx context.Context, i int) error {
		ms, err := detectPass(ctx, groups[i], engine.Options{MinLength: length, Mode: engine.ModeMaximal})
		found[i] = ms
		return err
	})
	if err != nil {
		return nil, err
	}
	var out []engine.Match
	for _, ms := range found {
		out = append(out, ms...)
	}
	engine.SortMatches(out)
	return out, nil
}

func withSpan(res *Result, log *logger.Logger, name string, fn func() error) error {
	start := time.Now()
	status := "ok"
	err := fn()
	if err != nil {
		status = "error"
		log.Error("stage failed", "stage", name, "error", err)
	}
	res.Traces = append(res.Traces, SpanTrace{
		Name:       name,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
	})
	return err
}
