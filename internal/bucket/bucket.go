package bucket

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"repeatscan/internal/engine"
)

// Set is an ascending list of minimum-length thresholds.
type Set []int

func New(thresholds []int) (Set, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: empty threshold set", engine.ErrInvalidThreshold)
	}
	out := slices.Clone(thresholds)
	for _, t := range out {
		if t < 1 {
			return nil, fmt.Errorf("%w: threshold %d < 1", engine.ErrInvalidThreshold, t)
		}
	}
	slices.Sort(out)
	return Set(slices.Compact(out)), nil
}

// Parse reads a comma separated threshold list such as "20,40,60".
func Parse(s string) (Set, error) {
	var values []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", engine.ErrInvalidThreshold, part)
		}
		values = append(values, v)
	}
	return New(values)
}

func (s Set) Min() int {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Assign returns the greatest threshold not exceeding length.
func (s Set) Assign(length int) (int, bool) {
	i := sort.SearchInts(s, length+1)
	if i == 0 {
		return 0, false
	}
	return s[i-1], true
}

// Categorize groups matches by bucket; matches below the smallest threshold are left out.
func (s Set) Categorize(matches []engine.Match) map[int][]engine.Match {
	out := make(map[int][]engine.Match, len(s))
	for _, m := range matches {
		if t, ok := s.Assign(m.Length); ok {
			out[t] = append(out[t], m)
		}
	}
	return out
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, ",")
}
