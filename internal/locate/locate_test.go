package locate

import (
	"reflect"
	"testing"

	"repeatscan/internal/record"
)

func TestOffsetsOverlapping(t *testing.T) {
	got := Offsets("aaaaa", "aaa")
	if want := []int{0, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOffsetsCountCodePoints(t *testing.T) {
	text := "ภาษาไทยภาษา"
	got := Offsets(text, "ภาษา")
	if want := []int{0, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, off := range got {
		if s := Slice(text, off, 4); s != "ภาษา" {
			t.Fatalf("slice at %d = %q", off, s)
		}
	}
}

func TestOffsetsMissing(t *testing.T) {
	if got := Offsets("abc", "zz"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := Offsets("abc", ""); got != nil {
		t.Fatalf("expected nil for empty sequence, got %v", got)
	}
}

func TestAll(t *testing.T) {
	records := []record.Record{
		{ID: 1, Row: 2, Label: "t1", Text: "abcdefghij0123456789"},
		{ID: 2, Row: 3, Label: "t2", Text: "xxxabcdefghij0123456789yyy"},
	}
	got := All("abcdefghij0123456789", records)
	want := []Occurrence{
		{RecordID: 1, Row: 2, Label: "t1", Text: records[0].Text, Offset: 0},
		{RecordID: 2, Row: 3, Label: "t2", Text: records[1].Text, Offset: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSlice(t *testing.T) {
	cases := []struct {
		text           string
		offset, length int
		want           string
	}{
		{"hello", 1, 3, "ell"},
		{"hello", 2, 3, "llo"},
		{"hello", 4, 3, ""},
		{"สวัสดี", 1, 2, "วั"},
	}
	for _, c := range cases {
		if got := Slice(c.text, c.offset, c.length); got != c.want {
			t.Fatalf("Slice(%q, %d, %d) = %q, want %q", c.text, c.offset, c.length, got, c.want)
		}
	}
}
