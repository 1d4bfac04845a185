// Package report renders summary tables for people and for other tools.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"godex/domain/core"
	"godex/domain/detest"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format selects the output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts the format names and the usual file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", core.NewConfigError("format", strconv.Quote(s)+" not recognized")
	}
}

// Report is one rendered test result.
type Report struct {
	RunID     core.RunID     `json:"run_id"`
	Title     string         `json:"title"`
	Test      string         `json:"test"`
	Generated core.Timestamp `json:"generated"`
	Table     *detest.Table  `json:"-"`
}

// New stamps a report with a fresh run ID.
func New(title, test string, t *detest.Table) *Report {
	return &Report{RunID: core.NewRunID(), Title: title, Test: test, Generated: core.Now(), Table: t}
}

// Write renders the report in the given format.
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatText:
		return writeText(w, r)
	case FormatCSV:
		return writeCSV(w, r.Table)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		_, err := w.Write(HTML(r))
		return err
	default:
		return core.NewConfigError("format", strconv.Quote(string(format))+" not recognized")
	}
}

func writeText(w io.Writer, r *Report) error {
	if r.Title != "" {
		fmt.Fprintf(w, "%s (%s, run %s)\n\n", r.Title, r.Test, r.RunID)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.Table.ColumnNames(), "\t"))
	for i := 0; i < r.Table.Len(); i++ {
		fmt.Fprintln(tw, strings.Join(cells(r.Table.Row(i)), "\t"))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, t *detest.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		if err := cw.Write(cells(t.Row(i))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonReport struct {
	*Report
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// writeJSON emits one object per gene. NaN and infinities become null.
func writeJSON(w io.Writer, r *Report) error {
	out := jsonReport{Report: r, Columns: r.Table.ColumnNames()}
	for i := 0; i < r.Table.Len(); i++ {
		row := make(map[string]any, len(out.Columns))
		for k, v := range r.Table.Row(i) {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				v = nil
			}
			row[out.Columns[k]] = v
		}
		out.Rows = append(out.Rows, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Markdown renders the report as a heading and a pipe table.
func Markdown(r *Report) string {
	var b strings.Builder
	title := r.Title
	if title == "" {
		title = "Differential expression"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Test: `%s`  \nRun: `%s`  \nGenerated: %s\n\n", r.Test, r.RunID, r.Generated)

	names := r.Table.ColumnNames()
	b.WriteString("| " + strings.Join(names, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(names)) + "\n")
	for i := 0; i < r.Table.Len(); i++ {
		b.WriteString("| " + strings.Join(cells(r.Table.Row(i)), " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\n%d genes\n", r.Table.Len())
	return b.String()
}

// HTML renders the markdown report as a complete page.
func HTML(r *Report) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: r.Title,
	})
	return markdown.ToHTML([]byte(Markdown(r)), p, renderer)
}

// Bytes renders the report into memory.
func Bytes(format Format, r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, format, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cells(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(x, 'g', 6, 64)
		case string:
			out[i] = x
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}
