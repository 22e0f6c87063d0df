package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"repeatscan/internal/record"
)

func recs(texts ...string) []record.Record {
	out := make([]record.Record, len(texts))
	for i, t := range texts {
		out[i] = record.Record{ID: i + 1, Row: i + 2, Label: "r", Text: t}
	}
	return out
}

// detect runs Detect, checks every match's hits against a plain scan and returns
// the matches without hits.
func detect(t *testing.T, records []record.Record, opts Options) []Match {
	t.Helper()
	got, err := Detect(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for i, m := range got {
		if want := scanHits(records, m.Sequence); !reflect.DeepEqual(m.Hits, want) {
			t.Fatalf("hits of %q: expected %+v, got %+v", m.Sequence, want, m.Hits)
		}
		got[i].Hits = nil
	}
	return got
}

func scanHits(records []record.Record, seq string) []Hit {
	needle := []rune(seq)
	var out []Hit
	for _, r := range records {
		text := []rune(r.Text)
		for j := 0; j+len(needle) <= len(text); j++ {
			if string(text[j:j+len(needle)]) == seq {
				out = append(out, Hit{Record: r.ID, Offset: j})
			}
		}
	}
	return out
}

func TestDetectMaximalExtendsToFullFragment(t *testing.T) {
	got := detect(t, recs("abcdefghij0123456789", "xxxabcdefghij0123456789yyy"), Options{MinLength: 10, Mode: ModeMaximal})
	want := []Match{{Sequence: "abcdefghij0123456789", Length: 20, Records: []int{1, 2}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDetectShorterThanMinimum(t *testing.T) {
	for _, mode := range []Mode{ModeMaximal, ModeFixedWindow} {
		got := detect(t, recs("ZZZZZ", "ZZZZZ"), Options{MinLength: 6, Mode: mode})
		if len(got) != 0 {
			t.Fatalf("%s: expected no matches, got %+v", mode, got)
		}
	}
}

func TestDetectIgnoresRepeatWithinOneRecord(t *testing.T) {
	fragment := "the quick brown fox jumps"
	got := detect(t, recs(fragment+" and then "+fragment, "nothing shared here at all"), Options{MinLength: 10, Mode: ModeMaximal})
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
	got = detect(t, recs(fragment+" and then "+fragment, "nothing shared here at all"), Options{MinLength: 10, Mode: ModeFixedWindow})
	if len(got) != 0 {
		t.Fatalf("expected no fixed-window matches, got %+v", got)
	}
}

func TestDetectOverlappingRun(t *testing.T) {
	got := detect(t, recs("aaaaa", "aaa"), Options{MinLength: 3, Mode: ModeMaximal})
	want := []Match{{Sequence: "aaa", Length: 3, Records: []int{1, 2}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDetectKeepsShorterRepeatWithWiderSupport(t *testing.T) {
	got := detect(t, recs("xxHELLO WORLDyy", "zzHELLO WORLDqq", "HELLO there"), Options{MinLength: 5, Mode: ModeMaximal})
	want := []Match{
		{Sequence: "HELLO WORLD", Length: 11, Records: []int{1, 2}},
		{Sequence: "HELLO ", Length: 6, Records: []int{1, 2, 3}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDetectThaiText(t *testing.T) {
	shared := "สวัสดีครับยินดีต้อนรับ"
	got := detect(t, recs("ก"+shared+"ข", shared+"ค"), Options{MinLength: 5, Mode: ModeMaximal})
	if len(got) != 1 || got[0].Sequence != shared {
		t.Fatalf("expected %q, got %+v", shared, got)
	}
	if got[0].Length != len([]rune(shared)) {
		t.Fatalf("expected length in code points %d, got %d", len([]rune(shared)), got[0].Length)
	}
}

func TestDetectFixedWindow(t *testing.T) {
	got := detect(t, recs("abcdef", "zabcdz", "bcd"), Options{MinLength: 3, Mode: ModeFixedWindow})
	want := []Match{
		{Sequence: "abc", Length: 3, Records: []int{1, 2}},
		{Sequence: "bcd", Length: 3, Records: []int{1, 2, 3}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDetectErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Detect(ctx, recs("abc"), Options{MinLength: 0, Mode: ModeMaximal}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := Detect(ctx, nil, Options{MinLength: 3, Mode: ModeMaximal}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	_, err := Detect(ctx, recs("abcdef", "abcdef"), Options{MinLength: 3, Mode: ModeMaximal, MaxRunes: 10})
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
	var detErr *Error
	if !errors.As(err, &detErr) || detErr.Runes != 12 || detErr.Records != 2 {
		t.Fatalf("expected sized engine error, got %#v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Detect(cancelled, recs("abcdefgh", "abcdefgh"), Options{MinLength: 2, Mode: ModeMaximal}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDetectHonoursContextAfterIndex(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	afterIndex = func(ctx context.Context) { <-ctx.Done() }
	defer func() { afterIndex = func(context.Context) {} }()

	_, err := Detect(ctx, recs("shared fragment one", "shared fragment two"), Options{MinLength: 5, Mode: ModeMaximal})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	var detErr *Error
	if !errors.As(err, &detErr) || detErr.Op != "maximal repeats" || detErr.Records != 2 {
		t.Fatalf("expected sized engine error, got %#v", err)
	}
}

func TestDetectManyDisjointFragments(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const k = 3000
	var a, b strings.Builder
	for i := 0; i < k; i++ {
		frag := fmt.Sprintf("%05d", i) + randomText(rng, "กขคงจฉช", 11+rng.Intn(5))
		fmt.Fprintf(&a, "%s|a%d|", frag, i)
		fmt.Fprintf(&b, "%s#b%d#", frag, i)
	}
	records := recs(a.String(), b.String())
	got, err := Detect(context.Background(), records, Options{MinLength: 14, Mode: ModeMaximal})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != k {
		t.Fatalf("expected %d fragments, got %d", k, len(got))
	}
	for _, m := range got {
		if len(m.Hits) != 2 || m.Hits[0].Record != 1 || m.Hits[1].Record != 2 {
			t.Fatalf("unexpected hits for %q: %+v", m.Sequence, m.Hits)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeMaximal, "maximal": ModeMaximal, "Fixed-Window": ModeFixedWindow, "fixed": ModeFixedWindow} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("fuzzy"); err == nil {
		t.Fatal("expected unknown mode error")
	}
}

func TestMaximalMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := 2 + rng.Intn(4)
		texts := make([]string, n)
		for i := range texts {
			texts[i] = randomText(rng, "abc", rng.Intn(14))
		}
		minLength := 1 + rng.Intn(4)
		records := recs(texts...)

		got := detect(t, records, Options{MinLength: minLength, Mode: ModeMaximal})
		want := bruteForceClosed(records, minLength)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("texts=%q L=%d\nexpected %+v\n     got %+v", texts, minLength, want, got)
		}
		checkProperties(t, records, got, minLength)

		again := detect(t, records, Options{MinLength: minLength, Mode: ModeMaximal})
		if !reflect.DeepEqual(got, again) {
			t.Fatalf("expected identical results on rerun")
		}
	}
}

func TestSharedWindowsMergeMatchesSinglePass(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for iter := 0; iter < 50; iter++ {
		texts := make([]string, 6)
		for i := range texts {
			texts[i] = randomText(rng, "xyz", 5+rng.Intn(10))
		}
		records := recs(texts...)
		whole := SharedWindows(BuildWindowIndex(records, 3), 3)
		merged := SharedWindows(MergeWindowIndexes(
			BuildWindowIndex(records[4:], 3),
			BuildWindowIndex(records[:2], 3),
			BuildWindowIndex(records[2:4], 3),
		), 3)
		if !reflect.DeepEqual(whole, merged) {
			t.Fatalf("expected merged shards to equal single pass\nwhole  %+v\nmerged %+v", whole, merged)
		}
	}
}

func randomText(rng *rand.Rand, alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

// bruteForceClosed enumerates every substring and keeps the ones no single-character
// extension can grow without losing a supporting record.
func bruteForceClosed(records []record.Record, minLength int) []Match {
	support := map[string]map[int]bool{}
	for _, r := range records {
		for i := 0; i < len(r.Text); i++ {
			for j := i + minLength; j <= len(r.Text); j++ {
				s := r.Text[i:j]
				if support[s] == nil {
					support[s] = map[int]bool{}
				}
				support[s][r.ID] = true
			}
		}
	}
	open := map[string]bool{}
	for s, ids := range support {
		if len(s)-1 < minLength {
			continue
		}
		for _, shorter := range []string{s[1:], s[:len(s)-1]} {
			if len(support[shorter]) == len(ids) {
				open[shorter] = true
			}
		}
	}
	var out []Match
	for s, ids := range support {
		if len(ids) < 2 || open[s] {
			continue
		}
		m := Match{Sequence: s, Length: len(s)}
		for _, r := range records {
			if ids[r.ID] {
				m.Records = append(m.Records, r.ID)
			}
		}
		out = append(out, m)
	}
	SortMatches(out)
	return out
}

func checkProperties(t *testing.T, records []record.Record, matches []Match, minLength int) {
	t.Helper()
	for _, m := range matches {
		if m.Length < minLength {
			t.Fatalf("match %q shorter than %d", m.Sequence, minLength)
		}
		if len(m.Records) < 2 {
			t.Fatalf("match %q supported by %v", m.Sequence, m.Records)
		}
		for _, id := range m.Records {
			if !strings.Contains(records[id-1].Text, m.Sequence) {
				t.Fatalf("record %d does not contain %q", id, m.Sequence)
			}
		}
		for _, other := range matches {
			if other.Length > m.Length && strings.Contains(other.Sequence, m.Sequence) && reflect.DeepEqual(other.Records, m.Records) {
				t.Fatalf("%q is contained in %q with the same support", m.Sequence, other.Sequence)
			}
		}
	}
}
