package report

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"repeatscan/internal/engine"
	"repeatscan/internal/locate"
)

// Finding is one reported match with its bucket and every occurrence.
type Finding struct {
	Match       engine.Match        `json:"match"`
	Bucket      int                 `json:"bucket"`
	Occurrences []locate.Occurrence `json:"occurrences"`
}

// Row is one export line. Bucket is 0 when the match falls below every threshold.
type Row struct {
	Sequence  string `json:"sequence"`
	Length    int    `json:"length"`
	RecordID  int    `json:"record_id"`
	SourceRow int    `json:"source_row"`
	Label     string `json:"label"`
	Text      string `json:"text"`
	Offset    int    `json:"start_offset"`
	Bucket    int    `json:"bucket"`
}

// Build flattens findings into rows, dropping exact duplicates while keeping the
// first-seen order.
func Build(findings []Finding) []Row {
	seen := make(map[Row]struct{})
	var out []Row
	for _, f := range findings {
		for _, occ := range f.Occurrences {
			row := Row{
				Sequence:  f.Match.Sequence,
				Length:    f.Match.Length,
				RecordID:  occ.RecordID,
				SourceRow: occ.Row,
				Label:     occ.Label,
				Text:      occ.Text,
				Offset:    occ.Offset,
				Bucket:    f.Bucket,
			}
			if _, ok := seen[row]; ok {
				continue
			}
			seen[row] = struct{}{}
			out = append(out, row)
		}
	}
	return out
}

type SortKey string

const (
	BySequence SortKey = "sequence"
	ByLabel    SortKey = "label"
	ByLength   SortKey = "length"
	ByRecord   SortKey = "record"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return BySequence, nil
	case BySequence, ByLabel, ByLength, ByRecord:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Sort orders rows in place by key, falling back to a full-tuple order so the
// result is deterministic.
func Sort(rows []Row, key SortKey) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		var c int
		switch key {
		case ByLabel:
			c = strings.Compare(a.Label, b.Label)
		case ByLength:
			c = cmp.Compare(b.Length, a.Length)
		case ByRecord:
			c = cmp.Compare(a.RecordID, b.RecordID)
		default:
			c = strings.Compare(a.Sequence, b.Sequence)
		}
		if c != 0 {
			return c
		}
		return compareRows(a, b)
	})
}

func compareRows(a, b Row) int {
	return cmp.Or(
		strings.Compare(a.Sequence, b.Sequence),
		cmp.Compare(a.RecordID, b.RecordID),
		cmp.Compare(a.Offset, b.Offset),
		strings.Compare(a.Label, b.Label),
		cmp.Compare(a.Bucket, b.Bucket),
	)
}

type Group struct {
	Key  string
	Rows []Row
}

// GroupBy partitions rows by key in first-seen order without reordering rows
// inside a group.
func GroupBy(rows []Row, key SortKey) []Group {
	index := map[string]int{}
	var out []Group
	for _, r := range rows {
		k := groupKey(r, key)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Group{Key: k})
		}
		out[i].Rows = append(out[i].Rows, r)
	}
	return out
}

func groupKey(r Row, key SortKey) string {
	switch key {
	case ByLabel:
		return r.Label
	case ByLength:
		return strconv.Itoa(r.Length)
	case ByRecord:
		return strconv.Itoa(r.RecordID)
	default:
		return r.Sequence
	}
}

type Summary struct {
	Matches     int         `json:"matches"`
	Occurrences int         `json:"occurrences"`
	Records     int         `json:"records"`
	Buckets     map[int]int `json:"buckets"`
	Unbucketed  int         `json:"unbucketed"`
}

func Summarize(findings []Finding) Summary {
	s := Summary{Buckets: map[int]int{}}
	records := map[int]struct{}{}
	for _, f := range findings {
		s.Matches++
		s.Occurrences += len(f.Occurrences)
		for _, id := range f.Match.Records {
			records[id] = struct{}{}
		}
		if f.Bucket > 0 {
			s.Buckets[f.Bucket]++
		} else {
			s.Unbucketed++
		}
	}
	s.Records = len(records)
	return s
}
