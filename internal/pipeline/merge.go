package pipeline

import (
	"repeatscan/internal/engine"
	"repeatscan/internal/record"
)

// components groups records that share at least one window of the merged index.
// Every maximal repeat of at least the window length has all its supporting
// records inside a single component.
func components(records []record.Record, idx engine.WindowIndex) [][]record.Record {
	pos := make(map[int]int, len(records))
	for i, r := range records {
		pos[r.ID] = i
	}
	uf := newUnionFind(len(records))
	linked := make([]bool, len(records))
	for _, ids := range idx {
		if len(ids) < 2 {
			continue
		}
		first, ok := pos[ids[0]]
		if !ok {
			continue
		}
		for _, id := range ids[1:] {
			p, ok := pos[id]
			if !ok {
				continue
			}
			uf.union(first, p)
			linked[first] = true
			linked[p] = true
		}
	}

	slot := map[int]int{}
	var out [][]record.Record
	for i, r := range records {
		if !linked[i] {
			continue
		}
		root := uf.find(i)
		k, ok := slot[root]
		if !ok {
			k = len(out)
			slot[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], r)
	}
	return out
}

type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}
