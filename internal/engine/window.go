package engine

import (
	"slices"

	"repeatscan/internal/record"
)

// WindowIndex maps every window of a fixed number of code points to the ids of
// the records containing it. It applies no support filter.
type WindowIndex map[string][]int

func BuildWindowIndex(records []record.Record, length int) WindowIndex {
	idx := WindowIndex{}
	if length < 1 {
		return idx
	}
	offsets := make([]int, 0, 256)
	for _, r := range records {
		offsets = runeOffsets(r.Text, offsets[:0])
		count := len(offsets) - 1
		for j := 0; j+length <= count; j++ {
			w := r.Text[offsets[j]:offsets[j+length]]
			ids := idx[w]
			if k := len(ids); k > 0 && ids[k-1] == r.ID {
				continue
			}
			idx[w] = append(ids, r.ID)
		}
	}
	return idx
}

// MergeWindowIndexes unions per-shard indexes into a fresh one; the inputs are
// left untouched.
func MergeWindowIndexes(parts ...WindowIndex) WindowIndex {
	size := 0
	for _, p := range parts {
		size = max(size, len(p))
	}
	out := make(WindowIndex, size)
	for _, p := range parts {
		for w, ids := range p {
			out[w] = append(out[w], ids...)
		}
	}
	for w, ids := range out {
		slices.Sort(ids)
		out[w] = slices.Compact(ids)
	}
	return out
}

// SharedWindows keeps the windows held by at least two distinct records.
func SharedWindows(idx WindowIndex, length int) []Match {
	var out []Match
	for w, ids := range idx {
		if len(ids) < 2 {
			continue
		}
		recs := slices.Clone(ids)
		slices.Sort(recs)
		recs = slices.Compact(recs)
		if len(recs) < 2 {
			continue
		}
		out = append(out, Match{Sequence: w, Length: length, Records: recs})
	}
	SortMatches(out)
	return out
}

// AttachWindowHits fills the Hits of fixed-window matches, which must all share
// one length, with a single pass over the windows of records.
func AttachWindowHits(records []record.Record, matches []Match) {
	if len(matches) == 0 {
		return
	}
	length := matches[0].Length
	pos := make(map[string]int, len(matches))
	for i, m := range matches {
		pos[m.Sequence] = i
	}
	offsets := make([]int, 0, 256)
	for _, r := range records {
		offsets = runeOffsets(r.Text, offsets[:0])
		for j := 0; j+length < len(offsets); j++ {
			if i, ok := pos[r.Text[offsets[j]:offsets[j+length]]]; ok {
				matches[i].Hits = append(matches[i].Hits, Hit{Record: r.ID, Offset: j})
			}
		}
	}
	for i := range matches {
		sortHits(matches[i].Hits)
	}
}

// runeOffsets appends the byte offset of every code point of s, then len(s).
func runeOffsets(s string, dst []int) []int {
	for i := range s {
		dst = append(dst, i)
	}
	return append(dst, len(s))
}
