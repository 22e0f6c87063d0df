package engine

import (
	"cmp"
	"context"
	"slices"

	"repeatscan/internal/record"
)

// interval is an lcp-interval [lb, rb] of the suffix array: the suffixes in it share
// exactly lcp leading symbols.
type interval struct {
	lcp, lb, rb int32
	parent      int32
	support     int32 // distinct owning records
	maxChild    int32 // largest support among child intervals
}

// afterIndex runs once the suffix and lcp arrays exist. Tests use it to expire
// the context between index construction and extraction.
var afterIndex = func(context.Context) {}

func maximalRepeats(ctx context.Context, records []record.Record, minLength int) ([]Match, error) {
	idx, err := buildIndex(ctx, records)
	if err != nil {
		return nil, err
	}
	afterIndex(ctx)
	ivs := idx.intervals(minLength)
	if len(ivs) == 0 {
		return nil, nil
	}
	idx.countSupport(ivs, len(records))
	for i := range ivs {
		if p := ivs[i].parent; p >= 0 && ivs[i].support > ivs[p].maxChild {
			ivs[p].maxChild = ivs[i].support
		}
	}

	stamp := make([]int32, len(records))
	for i := range stamp {
		stamp[i] = -1
	}
	lx := newLeftCounter()
	var out []Match
	for i, iv := range ivs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// A child with the same support means the sequence extends to the right
		// without losing a record.
		if iv.support < 2 || iv.maxChild == iv.support {
			continue
		}
		if idx.extendsLeft(iv, lx) {
			continue
		}
		ids := make([]int, 0, iv.support)
		hits := make([]Hit, 0, iv.rb-iv.lb+1)
		for k := iv.lb; k <= iv.rb; k++ {
			p := idx.sa[k]
			o := idx.owner[p]
			hits = append(hits, Hit{Record: records[o].ID, Offset: int(p - idx.start[o])})
			if stamp[o] != int32(i) {
				stamp[o] = int32(i)
				ids = append(ids, records[o].ID)
			}
		}
		slices.Sort(ids)
		sortHits(hits)
		start := idx.sa[iv.lb]
		out = append(out, Match{
			Sequence: string(idx.runes[start : start+iv.lcp]),
			Length:   int(iv.lcp),
			Records:  ids,
			Hits:     hits,
		})
	}
	SortMatches(out)
	return out, nil
}

// leftCounter counts, per preceding symbol, the distinct records of one interval.
type leftCounter struct {
	seen  map[int64]struct{}
	count map[int32]int32
}

func newLeftCounter() *leftCounter {
	return &leftCounter{seen: map[int64]struct{}{}, count: map[int32]int32{}}
}

// extendsLeft reports whether some single symbol precedes the interval's sequence
// in every one of its supporting records. The cost is the interval size.
func (x *textIndex) extendsLeft(iv interval, lx *leftCounter) bool {
	clear(lx.seen)
	clear(lx.count)
	separators := int32(len(x.start))
	for k := iv.lb; k <= iv.rb; k++ {
		p := x.sa[k]
		if p == 0 {
			continue
		}
		c := x.text[p-1]
		if c <= separators {
			continue
		}
		key := int64(c)<<32 | int64(x.owner[p])
		if _, ok := lx.seen[key]; ok {
			continue
		}
		lx.seen[key] = struct{}{}
		lx.count[c]++
		if lx.count[c] == iv.support {
			return true
		}
	}
	return false
}

func sortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		return cmp.Or(cmp.Compare(a.Record, b.Record), cmp.Compare(a.Offset, b.Offset))
	})
}

// intervals enumerates lcp-intervals with lcp >= minLength bottom-up, linking each
// to its parent when the parent also qualifies.
func (x *textIndex) intervals(minLength int) []interval {
	type frame struct {
		lcp, lb  int32
		children []int32
	}
	var out []interval
	stack := []frame{{lcp: 0, lb: 0}}
	n := len(x.sa)
	for i := 1; i <= n; i++ {
		cur := int32(0)
		if i < n {
			cur = x.lcp[i]
		}
		lb := int32(i - 1)
		last := int32(-1)
		for cur < stack[len(stack)-1].lcp {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			id := int32(-1)
			if int(top.lcp) >= minLength {
				id = int32(len(out))
				out = append(out, interval{lcp: top.lcp, lb: top.lb, rb: int32(i - 1), parent: -1})
				for _, c := range top.children {
					out[c].parent = id
				}
			}
			lb = top.lb
			if cur <= stack[len(stack)-1].lcp {
				if id >= 0 {
					stack[len(stack)-1].children = append(stack[len(stack)-1].children, id)
				}
				last = -1
			} else {
				last = id
			}
		}
		if cur > stack[len(stack)-1].lcp {
			f := frame{lcp: cur, lb: lb}
			if last >= 0 {
				f.children = []int32{last}
			}
			stack = append(stack, f)
		}
	}
	return out
}

// countSupport fills the distinct-record count of every interval with an offline
// sweep over right bounds.
func (x *textIndex) countSupport(ivs []interval, records int) {
	order := make([]int32, len(ivs))
	for i := range order {
		order[i] = int32(i)
	}
	slices.SortFunc(order, func(a, b int32) int { return int(ivs[a].rb) - int(ivs[b].rb) })

	tree := newFenwick(len(x.sa))
	last := make([]int32, records)
	for i := range last {
		last[i] = -1
	}
	j := 0
	for _, q := range order {
		rb := int(ivs[q].rb)
		for ; j <= rb; j++ {
			o := x.owner[x.sa[j]]
			if o < 0 {
				continue
			}
			if last[o] >= 0 {
				tree.add(int(last[o]), -1)
			}
			tree.add(j, 1)
			last[o] = int32(j)
		}
		ivs[q].support = tree.sum(rb) - tree.sum(int(ivs[q].lb)-1)
	}
}

type fenwick []int32

func newFenwick(n int) fenwick { return make(fenwick, n+1) }

func (f fenwick) add(i int, delta int32) {
	for i++; i < len(f); i += i & -i {
		f[i] += delta
	}
}

// sum returns the prefix sum over [0, i].
func (f fenwick) sum(i int) int32 {
	var s int32
	for i++; i > 0; i -= i & -i {
		s += f[i]
	}
	return s
}
