package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"repeatscan/internal/locate"
	"repeatscan/internal/report"
)

var (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorWarning = lipgloss.Color("#F59E0B")
)

type Options struct {
	// Color enables terminal styling; without it spans are wrapped in [[ ]].
	Color bool
	// Context is the number of code points shown on each side of a span.
	Context int
	// Group selects the heading rows are grouped under.
	Group report.SortKey
	// Limit caps the number of groups printed; 0 prints all.
	Limit int
}

func DefaultOptions() Options {
	return Options{Color: true, Context: 40, Group: report.BySequence}
}

type styles struct {
	header  lipgloss.Style
	bucket  lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
	match   lipgloss.Style
	plain   bool
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true),
		bucket: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F9FAFB")).
			Background(ColorPrimary).
			Padding(0, 1),
		muted:   r.NewStyle().Foreground(ColorMuted),
		warning: r.NewStyle().Foreground(ColorWarning),
		match: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FCD34D")).
			Background(lipgloss.Color("#78350F")),
		plain: !color,
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return st.Render(text)
}

// Report writes rows grouped by opts.Group in the order given: a heading per
// group, then one line per occurrence with the matched span highlighted.
func Report(w io.Writer, rows []report.Row, opts Options) error {
	st := newStyles(w, opts.Color)
	if opts.Context <= 0 {
		opts.Context = DefaultOptions().Context
	}
	if opts.Group == "" {
		opts.Group = report.BySequence
	}
	groups := report.GroupBy(rows, opts.Group)
	shown := groups
	if opts.Limit > 0 && len(shown) > opts.Limit {
		shown = shown[:opts.Limit]
	}

	var b strings.Builder
	for i, g := range shown {
		if i > 0 {
			b.WriteString("\n")
		}
		st.heading(&b, g, opts.Group)
		for _, r := range g.Rows {
			fmt.Fprintf(&b, "  %s %s  %s", st.render(st.muted, fmt.Sprintf("row %d", r.SourceRow)), r.Label,
				st.excerpt(r.Text, r.Offset, r.Length, opts.Context))
			if opts.Group != report.BySequence {
				fmt.Fprintf(&b, "  %s", st.render(st.muted, fmt.Sprintf("(%s, length %d)", bucketLabel(r.Bucket), r.Length)))
			}
			b.WriteString("\n")
		}
	}
	if hidden := len(groups) - len(shown); hidden > 0 {
		fmt.Fprintf(&b, "\n%s\n", st.render(st.warning, fmt.Sprintf("... %d more groups not shown", hidden)))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (st styles) heading(b *strings.Builder, g report.Group, key report.SortKey) {
	first := g.Rows[0]
	records := map[int]struct{}{}
	for _, r := range g.Rows {
		records[r.RecordID] = struct{}{}
	}
	switch key {
	case report.ByLabel:
		fmt.Fprintf(b, "%s\n", st.render(st.header, "label "+quote(g.Key)))
	case report.ByLength:
		fmt.Fprintf(b, "%s\n", st.render(st.header, "length "+g.Key))
	case report.ByRecord:
		fmt.Fprintf(b, "%s\n", st.render(st.header, fmt.Sprintf("record %s (row %d, %s)", g.Key, first.SourceRow, first.Label)))
	default:
		fmt.Fprintf(b, "%s %s\n", st.render(st.bucket, bucketLabel(first.Bucket)), st.render(st.header, quote(first.Sequence)))
		fmt.Fprintf(b, "  %s\n", st.render(st.muted, fmt.Sprintf("length %d, %d records, %d occurrences", first.Length, len(records), len(g.Rows))))
		return
	}
	fmt.Fprintf(b, "  %s\n", st.render(st.muted, fmt.Sprintf("%d occurrences in %d records", len(g.Rows), len(records))))
}

func bucketLabel(bucket int) string {
	if bucket > 0 {
		return fmt.Sprintf(">= %d", bucket)
	}
	return "below thresholds"
}

// excerpt cuts text to the span plus context code points on each side and
// marks the span.
func (st styles) excerpt(text string, offset, length, context int) string {
	n := utf8.RuneCountInString(text)
	from := max(0, offset-context)
	to := min(n, offset+length+context)

	pre := locate.Slice(text, from, offset-from)
	span := locate.Slice(text, offset, length)
	post := locate.Slice(text, offset+length, to-offset-length)

	var b strings.Builder
	if from > 0 {
		b.WriteString("…")
	}
	b.WriteString(flatten(pre))
	if st.plain {
		b.WriteString("[[" + flatten(span) + "]]")
	} else {
		b.WriteString(st.match.Render(flatten(span)))
	}
	b.WriteString(flatten(post))
	if to < n {
		b.WriteString("…")
	}
	return b.String()
}

func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
}

func quote(s string) string {
	return `"` + flatten(s) + `"`
}
