package record

import (
	"errors"
	"testing"
)

func TestNormalizeAssignsIdentity(t *testing.T) {
	rows := []RawRow{
		{Index: 0, Fields: []any{"t1", "first sentence"}},
		{Index: 1, Fields: []any{"t2"}},
		{Index: 2, Fields: []any{"t3", nil}},
		{Index: 3, Fields: []any{42, "fourth"}},
		{Index: 4, Fields: []any{"t5", ""}},
	}
	batch := Normalize(rows, DefaultOptions())

	if len(batch.Records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(batch.Records), batch.Records)
	}
	want := []Record{
		{ID: 1, Row: 2, Label: "t1", Text: "first sentence"},
		{ID: 2, Row: 5, Label: "42", Text: "fourth"},
		{ID: 3, Row: 6, Label: "t5", Text: ""},
	}
	for i, w := range want {
		if batch.Records[i] != w {
			t.Fatalf("record %d: expected %+v, got %+v", i, w, batch.Records[i])
		}
	}

	if len(batch.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(batch.Warnings))
	}
	if batch.Warnings[0].Row != 3 {
		t.Fatalf("expected warning for row 3, got %d", batch.Warnings[0].Row)
	}
	if !errors.Is(batch.Warnings[0], ErrMalformedRow) {
		t.Fatalf("expected ErrMalformedRow, got %v", batch.Warnings[0].Err)
	}

	if r, ok := batch.ByID(2); !ok || r.Label != "42" {
		t.Fatalf("ByID(2) = %+v, %v", r, ok)
	}
	if _, ok := batch.ByID(4); ok {
		t.Fatal("expected ByID(4) to miss")
	}
}

func TestNormalizeRepairsAndComposes(t *testing.T) {
	decomposed := "e\u0301te\u0301"
	rows := []RawRow{
		{Index: 0, Fields: []any{"a", decomposed}},
		{Index: 1, Fields: []any{"b", "ok\xffok"}},
	}
	batch := Normalize(rows, Options{HeaderRows: 0, NFC: true})
	if batch.Records[0].Text != "\u00e9t\u00e9" {
		t.Fatalf("expected NFC composed text, got %q", batch.Records[0].Text)
	}
	if batch.Records[1].Text != "ok\uFFFDok" {
		t.Fatalf("expected invalid byte replaced, got %q", batch.Records[1].Text)
	}
	if batch.Records[0].Row != 1 {
		t.Fatalf("expected row 1 without header, got %d", batch.Records[0].Row)
	}
	if got := batch.TotalRunes(); got != 3+5 {
		t.Fatalf("expected 8 runes, got %d", got)
	}
}
