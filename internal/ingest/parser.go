package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"repeatscan/internal/record"
)

var ErrColumnNotFound = errors.New("column not found")

type Format string

const (
	FormatCSV  Format = "csv"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// CSVOptions selects the label and text columns. Names win over positions and
// require a header row.
type CSVOptions struct {
	Header      bool
	LabelColumn int
	TextColumn  int
	LabelName   string
	TextName    string
	NullMarkers []string
	Comma       rune
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Header:      true,
		LabelColumn: 0,
		TextColumn:  1,
		NullMarkers: []string{"NaN", "nan", "NULL"},
		Comma:       ',',
	}
}

type Parsed struct {
	Title      string
	SourcePath string
	Format     Format
	// HeaderRows is the number of source lines before the first data row.
	HeaderRows int
	Rows       []record.RawRow
}

func ParseFile(path string, opts CSVOptions) (*Parsed, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parsed := &Parsed{
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SourcePath: path,
	}
	switch ext {
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		if ext == ".tsv" && opts.Comma == ',' {
			opts.Comma = '\t'
		}
		rows, err := ReadCSV(f, opts)
		if err != nil {
			return nil, err
		}
		parsed.Format = FormatCSV
		parsed.Rows = rows
		if opts.Header {
			parsed.HeaderRows = 1
		}
	case ".docx":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		paragraphs, err := parseDOCX(raw)
		if err != nil {
			return nil, err
		}
		parsed.Format = FormatDOCX
		parsed.Rows = labelled(paragraphs, "p")
	case ".pdf":
		pages, err := parsePDF(path)
		if err != nil {
			return nil, err
		}
		parsed.Format = FormatPDF
		parsed.Rows = labelled(pages, "page ")
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	return parsed, nil
}

// ReadCSV returns one row per data line holding the label and text fields in that
// order. A missing label column reads as null. Lines missing the text column keep
// fewer than two fields, so the normalizer reports them as malformed.
func ReadCSV(r io.Reader, opts CSVOptions) ([]record.RawRow, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	labelCol, textCol := opts.LabelColumn, opts.TextColumn
	if opts.Header {
		header, err := cr.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if opts.LabelName != "" {
			if labelCol, err = columnIndex(header, opts.LabelName); err != nil {
				return nil, err
			}
		}
		if opts.TextName != "" {
			if textCol, err = columnIndex(header, opts.TextName); err != nil {
				return nil, err
			}
		}
	} else if opts.LabelName != "" || opts.TextName != "" {
		return nil, fmt.Errorf("%w: column names need a header row", ErrColumnNotFound)
	}
	if labelCol < 0 || textCol < 0 {
		return nil, fmt.Errorf("%w: negative column position", ErrColumnNotFound)
	}

	var rows []record.RawRow
	for i := 0; ; i++ {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", i+1, err)
		}
		var label any
		if labelCol < len(line) {
			label = nullable(line[labelCol], opts.NullMarkers)
		}
		var fields []any
		switch {
		case textCol < len(line):
			fields = []any{label, nullable(line[textCol], opts.NullMarkers)}
		case label != nil:
			fields = []any{label}
		default:
			fields = []any{}
		}
		rows = append(rows, record.RawRow{Index: i, Fields: fields})
	}
	return rows, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		h = strings.TrimPrefix(h, "\uFEFF")
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// nullable maps a configured null marker to nil. Empty fields stay empty strings.
func nullable(v string, markers []string) any {
	if slices.Contains(markers, strings.TrimSpace(v)) {
		return nil
	}
	return v
}

func labelled(texts []string, prefix string) []record.RawRow {
	rows := make([]record.RawRow, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			continue
		}
		rows = append(rows, record.RawRow{Index: i, Fields: []any{prefix + strconv.Itoa(i+1), t}})
	}
	return rows
}

func parseDOCX(raw []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open docx zip: %w", err)
	}

	var xmlData []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, openErr := f.Open()
			if openErr != nil {
				return nil, fmt.Errorf("open document.xml: %w", openErr)
			}
			defer rc.Close()
			xmlData, err = io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}
			break
		}
	}
	if len(xmlData) == 0 {
		return nil, fmt.Errorf("word/document.xml not found")
	}

	decoder := xml.NewDecoder(bytes.NewReader(xmlData))
	var paragraphs []string
	var b strings.Builder
	inText := false
	for {
		tok, tokenErr := decoder.Token()
		if tokenErr == io.EOF {
			break
		}
		if tokenErr != nil {
			return nil, fmt.Errorf("decode document.xml: %w", tokenErr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				b.Reset()
			case "tab":
				b.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, normalizeWhitespace(b.String()))
				b.Reset()
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return paragraphs, nil
}

func parsePDF(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, total)
	found := false
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		pages[i-1] = normalizeWhitespace(content)
		found = found || pages[i-1] != ""
	}
	if !found {
		return nil, fmt.Errorf("no extractable text found in pdf")
	}
	return pages, nil
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Join(strings.Fields(line), " ")
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
