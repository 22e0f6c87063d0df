package locate

import (
	"strings"
	"unicode/utf8"

	"repeatscan/internal/record"
)

// Occurrence is one position, in code points, where a sequence starts inside a record.
type Occurrence struct {
	RecordID int    `json:"record_id"`
	Row      int    `json:"row"`
	Label    string `json:"label"`
	Text     string `json:"text"`
	Offset   int    `json:"offset"`
}

// Offsets scans text left to right, advancing one character past each hit, so
// overlapping occurrences are all reported in ascending order.
func Offsets(text, seq string) []int {
	if seq == "" {
		return nil
	}
	var out []int
	byteOff, runeOff := 0, 0
	for {
		i := strings.Index(text[byteOff:], seq)
		if i < 0 {
			return out
		}
		runeOff += utf8.RuneCountInString(text[byteOff : byteOff+i])
		byteOff += i
		out = append(out, runeOff)
		_, size := utf8.DecodeRuneInString(text[byteOff:])
		byteOff += size
		runeOff++
	}
}

func All(seq string, records []record.Record) []Occurrence {
	var out []Occurrence
	for _, r := range records {
		for _, off := range Offsets(r.Text, seq) {
			out = append(out, Occurrence{
				RecordID: r.ID,
				Row:      r.Row,
				Label:    r.Label,
				Text:     r.Text,
				Offset:   off,
			})
		}
	}
	return out
}

// Slice returns length code points of text starting at code point offset, or ""
// when the range runs past the end.
func Slice(text string, offset, length int) string {
	start, idx := -1, 0
	for i := range text {
		if idx == offset {
			start = i
		}
		if start >= 0 && idx == offset+length {
			return text[start:i]
		}
		idx++
	}
	if start >= 0 && idx == offset+length {
		return text[start:]
	}
	return ""
}
