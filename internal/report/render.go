package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects a table writer.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name. The empty string selects markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatText, FormatHTML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

// Write renders t in the given format.
func Write(w io.Writer, t Table, f Format) error {
	switch f {
	case FormatMarkdown, "":
		return WriteMarkdown(w, t)
	case FormatText:
		return WriteText(w, t)
	case FormatHTML:
		return WriteHTML(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	default:
		return fmt.Errorf("report: unknown format %q", f)
	}
}

func tableWriter(t Table) table.Writer {
	tw := table.NewWriter()
	header := make(table.Row, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		tw.AppendRow(row)
	}
	return tw
}

// WriteMarkdown writes the table as a markdown heading and pipe table.
func WriteMarkdown(w io.Writer, t Table) error {
	if _, err := fmt.Fprintf(w, "## %s\n\n%s\n", t.Title, tableWriter(t).RenderMarkdown()); err != nil {
		return fmt.Errorf("report: write markdown: %w", err)
	}
	return nil
}

// WriteText writes the table with box-drawing borders for terminals.
func WriteText(w io.Writer, t Table) error {
	tw := tableWriter(t)
	tw.SetTitle(t.Title)
	tw.SetStyle(table.StyleLight)
	if _, err := fmt.Fprintln(w, tw.Render()); err != nil {
		return fmt.Errorf("report: write text: %w", err)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: write json: %w", err)
	}
	return nil
}

var htmlTable = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
  th { background: #eaeaea; }
  td.unknown { color: #999; }
</style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>生成时间：{{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
  <table>
    <tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
    {{- range .Rows}}
    <tr>{{range $i, $c := .}}{{if eq $i 0}}<th>{{$c}}</th>{{else if eq $c "未知"}}<td class="unknown">{{$c}}</td>{{else}}<td>{{$c}}</td>{{end}}{{end}}</tr>
    {{- end}}
  </table>
</body>
</html>
`))

// WriteHTML writes a standalone HTML page containing the table.
func WriteHTML(w io.Writer, t Table) error {
	if err := htmlTable.Execute(w, t); err != nil {
		return fmt.Errorf("report: write html: %w", err)
	}
	return nil
}
