package shard

import (
	"unicode/utf8"

	"repeatscan/internal/record"
)

// Partition splits records into at most n contiguous, non-empty shards of roughly
// equal code point weight. Shards share the backing array of records.
func Partition(records []record.Record, n int) [][]record.Record {
	if len(records) == 0 {
		return nil
	}
	if n <= 1 || len(records) == 1 {
		return [][]record.Record{records}
	}
	n = min(n, len(records))

	total := 0
	for _, r := range records {
		total += weight(r)
	}

	out := make([][]record.Record, 0, n)
	start, acc := 0, 0
	for i, r := range records {
		remainingShards := n - len(out) - 1
		if remainingShards == 0 {
			break
		}
		acc += weight(r)
		remainingRecords := len(records) - i - 1
		if acc*n >= total*(len(out)+1) || remainingRecords == remainingShards {
			out = append(out, records[start:i+1])
			start = i + 1
		}
	}
	return append(out, records[start:])
}

func weight(r record.Record) int {
	return utf8.RuneCountInString(r.Text) + 1
}
