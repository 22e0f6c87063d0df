package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{"sequence", "length", "record_id", "source_row", "label", "text", "start_offset", "bucket"}

const utf8BOM = "\uFEFF"

// WriteCSV writes rows as UTF-8 CSV. The BOM lets spreadsheet tools detect the
// encoding of non-Latin text.
func WriteCSV(w io.Writer, rows []Row, bom bool) error {
	if bom {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		bucket := ""
		if r.Bucket > 0 {
			bucket = strconv.Itoa(r.Bucket)
		}
		rec := []string{
			r.Sequence,
			strconv.Itoa(r.Length),
			strconv.Itoa(r.RecordID),
			strconv.Itoa(r.SourceRow),
			r.Label,
			r.Text,
			strconv.Itoa(r.Offset),
			bucket,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
