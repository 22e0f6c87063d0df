package shard

import (
	"strings"
	"testing"

	"repeatscan/internal/record"
)

func makeRecords(sizes ...int) []record.Record {
	out := make([]record.Record, len(sizes))
	for i, n := range sizes {
		out[i] = record.Record{ID: i + 1, Text: strings.Repeat("ก", n)}
	}
	return out
}

func TestPartitionCoversEveryRecord(t *testing.T) {
	records := makeRecords(100, 5, 5, 5, 80, 1, 1, 1, 1, 50, 30, 0)
	for n := 1; n <= 15; n++ {
		shards := Partition(records, n)
		if len(shards) == 0 || len(shards) > n {
			t.Fatalf("n=%d: got %d shards", n, len(shards))
		}
		next := 1
		for _, s := range shards {
			if len(s) == 0 {
				t.Fatalf("n=%d: empty shard", n)
			}
			for _, r := range s {
				if r.ID != next {
					t.Fatalf("n=%d: data loss or reorder at record %d (got %d)", n, next, r.ID)
				}
				next++
			}
		}
		if next != len(records)+1 {
			t.Fatalf("n=%d: covered %d records, want %d", n, next-1, len(records))
		}
	}
}

func TestPartitionBalancesWeight(t *testing.T) {
	records := makeRecords(10, 10, 10, 10, 10, 10, 10, 10, 10)
	shards := Partition(records, 3)
	if len(shards) != 3 {
		t.Fatalf("expected 3 shards, got %d", len(shards))
	}
	for _, s := range shards {
		if len(s) != 3 {
			t.Fatalf("expected shards of 3 records, got %d", len(s))
		}
	}
}

func TestPartitionEdgeCases(t *testing.T) {
	if got := Partition(nil, 4); got != nil {
		t.Fatalf("expected nil for no records, got %v", got)
	}
	one := makeRecords(3)
	if got := Partition(one, 4); len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("expected single shard, got %v", got)
	}
	if got := Partition(makeRecords(1, 2, 3), 0); len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("expected single shard for n=0, got %v", got)
	}
}
