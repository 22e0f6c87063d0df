package engine

import (
	"context"
	"slices"

	"repeatscan/internal/record"
)

// textIndex is a generalized suffix array over all record texts. Every text is
// followed by a separator symbol unique to its record, and the whole string ends
// with a sentinel that sorts before everything else.
type textIndex struct {
	text  []int32
	runes []rune
	owner []int32 // arena index of the record owning each position, -1 on separators
	start []int32 // position of each record's first code point
	sa    []int32
	lcp   []int32 // lcp[i] = common prefix length of suffixes sa[i-1] and sa[i]
}

func buildIndex(ctx context.Context, records []record.Record) (*textIndex, error) {
	total := len(records) + 1
	for _, r := range records {
		total += len(r.Text)
	}
	runes := make([]rune, 0, total)
	owner := make([]int32, 0, total)
	start := make([]int32, len(records))
	for i, r := range records {
		start[i] = int32(len(runes))
		for _, c := range r.Text {
			runes = append(runes, c)
			owner = append(owner, int32(i))
		}
		runes = append(runes, -1)
		owner = append(owner, -1)
	}
	runes = append(runes, -1)
	owner = append(owner, -1)

	alphabet := make([]rune, 0, 256)
	seen := make(map[rune]struct{})
	for _, c := range runes {
		if c < 0 {
			continue
		}
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			alphabet = append(alphabet, c)
		}
	}
	slices.Sort(alphabet)
	rank := make(map[rune]int32, len(alphabet))
	for i, c := range alphabet {
		rank[c] = int32(i)
	}

	// Symbols: 0 sentinel, 1..m separators, m+1.. characters.
	m := int32(len(records))
	n := len(runes)
	text := make([]int32, n)
	sep := int32(0)
	for i, c := range runes {
		switch {
		case i == n-1:
			text[i] = 0
		case c < 0:
			sep++
			text[i] = sep
		default:
			text[i] = m + 1 + rank[c]
		}
	}

	sa, err := suffixArray(ctx, text, int(m)+1+len(alphabet))
	if err != nil {
		return nil, err
	}
	return &textIndex{
		text:  text,
		runes: runes,
		owner: owner,
		start: start,
		sa:    sa,
		lcp:   lcpArray(text, sa),
	}, nil
}

// suffixArray sorts the cyclic shifts of s by prefix doubling with counting sort.
// s must end with a unique minimal symbol so cyclic order equals suffix order.
func suffixArray(ctx context.Context, s []int32, alphabet int) ([]int32, error) {
	n := len(s)
	p := make([]int32, n)
	c := make([]int32, n)
	cnt := make([]int32, max(alphabet, n))

	for _, v := range s {
		cnt[v]++
	}
	for i := 1; i < alphabet; i++ {
		cnt[i] += cnt[i-1]
	}
	for i := n - 1; i >= 0; i-- {
		cnt[s[i]]--
		p[cnt[s[i]]] = int32(i)
	}
	classes := int32(1)
	c[p[0]] = 0
	for i := 1; i < n; i++ {
		if s[p[i]] != s[p[i-1]] {
			classes++
		}
		c[p[i]] = classes - 1
	}

	pn := make([]int32, n)
	cn := make([]int32, n)
	for h := 1; h < n && int(classes) < n; h <<= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			v := int(p[i]) - h
			if v < 0 {
				v += n
			}
			pn[i] = int32(v)
		}
		clear(cnt[:classes])
		for i := 0; i < n; i++ {
			cnt[c[pn[i]]]++
		}
		for i := 1; i < int(classes); i++ {
			cnt[i] += cnt[i-1]
		}
		for i := n - 1; i >= 0; i-- {
			k := c[pn[i]]
			cnt[k]--
			p[cnt[k]] = pn[i]
		}
		cn[p[0]] = 0
		classes = 1
		for i := 1; i < n; i++ {
			a, b := int(p[i]), int(p[i-1])
			if c[a] != c[b] || c[(a+h)%n] != c[(b+h)%n] {
				classes++
			}
			cn[p[i]] = classes - 1
		}
		c, cn = cn, c
	}
	return p, nil
}

// lcpArray is Kasai's algorithm.
func lcpArray(s []int32, sa []int32) []int32 {
	n := len(s)
	rank := make([]int32, n)
	for i, p := range sa {
		rank[p] = int32(i)
	}
	lcp := make([]int32, n)
	h := 0
	for i := 0; i < n; i++ {
		r := rank[i]
		if r == 0 {
			h = 0
			continue
		}
		j := int(sa[r-1])
		for i+h < n && j+h < n && s[i+h] == s[j+h] {
			h++
		}
		lcp[r] = int32(h)
		if h > 0 {
			h--
		}
	}
	return lcp
}
