package record

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var ErrMalformedRow = errors.New("malformed row")

// Record is one normalized (label, text) unit. ID is its 1-based position in the
// retained batch; Row is the display row in the source file.
type Record struct {
	ID    int    `json:"id"`
	Row   int    `json:"row"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// RawRow is an ordered tuple of opaque field values. A nil field is null.
type RawRow struct {
	Index  int
	Fields []any
}

type Warning struct {
	Row int
	Err error
}

func (w Warning) Error() string {
	return fmt.Sprintf("row %d skipped: %v", w.Row, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

type Options struct {
	// HeaderRows is the number of source lines preceding the first data row.
	HeaderRows int
	NFC        bool
}

func DefaultOptions() Options {
	return Options{HeaderRows: 1, NFC: true}
}

type Batch struct {
	Records  []Record
	Warnings []Warning
}

func (b Batch) TotalRunes() int {
	total := 0
	for _, r := range b.Records {
		total += utf8.RuneCountInString(r.Text)
	}
	return total
}

// ByID returns the record with the given id from an arena built by Normalize.
func (b Batch) ByID(id int) (Record, bool) {
	if id < 1 || id > len(b.Records) {
		return Record{}, false
	}
	return b.Records[id-1], true
}

func Normalize(rows []RawRow, opts Options) Batch {
	out := Batch{Records: make([]Record, 0, len(rows))}
	for _, raw := range rows {
		row := raw.Index + opts.HeaderRows + 1
		if len(raw.Fields) < 2 {
			out.Warnings = append(out.Warnings, Warning{
				Row: row,
				Err: fmt.Errorf("%w: expected at least 2 fields, got %d", ErrMalformedRow, len(raw.Fields)),
			})
			continue
		}
		if raw.Fields[1] == nil {
			continue
		}
		out.Records = append(out.Records, Record{
			ID:    len(out.Records) + 1,
			Row:   row,
			Label: coerce(raw.Fields[0], false),
			Text:  coerce(raw.Fields[1], opts.NFC),
		})
	}
	return out
}

func coerce(v any, nfc bool) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		s = fmt.Sprint(t)
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	if nfc {
		s = norm.NFC.String(s)
	}
	return s
}
