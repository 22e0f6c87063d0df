package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"repeatscan/internal/record"
)

type Mode string

const (
	ModeMaximal     Mode = "maximal"
	ModeFixedWindow Mode = "fixed-window"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "maximal", "max":
		return ModeMaximal, nil
	case "fixed-window", "fixed", "window":
		return ModeFixedWindow, nil
	default:
		return "", fmt.Errorf("unknown detection mode %q", s)
	}
}

type Options struct {
	MinLength int
	Mode      Mode
	// MaxRunes bounds the total number of code points indexed; 0 disables the check.
	MaxRunes int
}

// Match is a sequence shared verbatim by at least two distinct records.
type Match struct {
	Sequence string `json:"sequence"`
	Length   int    `json:"length"`
	Records  []int  `json:"records"`
	// Hits lists every start of Sequence, overlapping ones included, ordered by
	// record id then offset.
	Hits []Hit `json:"-"`
}

// Hit is one start position, in code points, inside the record with id Record.
type Hit struct {
	Record int
	Offset int
}

func (o Options) Validate() error {
	if o.MinLength < 1 {
		return fmt.Errorf("%w: minimum length %d < 1", ErrInvalidThreshold, o.MinLength)
	}
	switch o.Mode {
	case ModeMaximal, ModeFixedWindow:
		return nil
	default:
		return fmt.Errorf("unknown detection mode %q", o.Mode)
	}
}

// CheckBudget returns the total code point count of records, or ErrResourceExhausted
// when it exceeds maxRunes.
func CheckBudget(records []record.Record, maxRunes int) (int, error) {
	total := record.Batch{Records: records}.TotalRunes()
	if maxRunes > 0 && total > maxRunes {
		return total, &Error{
			Op:      "check budget",
			Records: len(records),
			Runes:   total,
			Err:     fmt.Errorf("%w: %d code points > limit %d", ErrResourceExhausted, total, maxRunes),
		}
	}
	return total, nil
}

// Detect runs one detection pass over records. Records must carry distinct ids.
func Detect(ctx context.Context, records []record.Record, opts Options) ([]Match, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	runes, err := CheckBudget(records, opts.MaxRunes)
	if err != nil {
		return nil, err
	}

	switch opts.Mode {
	case ModeFixedWindow:
		matches := SharedWindows(BuildWindowIndex(records, opts.MinLength), opts.MinLength)
		AttachWindowHits(records, matches)
		return matches, nil
	default:
		matches, err := maximalRepeats(ctx, records, opts.MinLength)
		if err != nil {
			return nil, &Error{Op: "maximal repeats", Records: len(records), Runes: runes, Err: err}
		}
		return matches, nil
	}
}

// SortMatches orders by length descending, then sequence.
func SortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Length, a.Length); c != 0 {
			return c
		}
		return strings.Compare(a.Sequence, b.Sequence)
	})
}
