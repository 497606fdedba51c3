package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jakubkozera/mssqlmgr/pkg/core"
	"github.com/jedib0t/go-pretty/v6/table"
)

// renderQueryResult renders every recordset of a query result, followed by
// execution statistics. Non-select statements report affected rows instead.
func renderQueryResult(w io.Writer, result *core.QueryResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for i, rs := range result.Recordsets {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if err := renderRows(w, rs.Columns, rs.Rows, format); err != nil {
			return err
		}
		if md := metadataFor(result, i); md != nil && md.IsEditable {
			_, _ = fmt.Fprintf(w, "editable (key: %s)\n", strings.Join(md.PrimaryKeyColumns, ", "))
		}
	}

	if !result.IsSelect {
		for _, n := range result.RowsAffected {
			_, _ = fmt.Fprintf(w, "(%d rows affected)\n", n)
		}
	}
	_, _ = fmt.Fprintf(w, "Completed in %d ms\n", result.ExecutionMs)
	return nil
}

func metadataFor(result *core.QueryResult, i int) *core.ResultSetMetadata {
	if i < len(result.Metadata) {
		return result.Metadata[i]
	}
	return nil
}

// renderRows renders a single recordset in the requested format.
func renderRows(w io.Writer, cols []string, rows []core.Row, format string) error {
	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, cols, rows)
	case "md", "markdown":
		return renderMarkdown(w, cols, rows)
	default:
		return renderTable(w, cols, rows)
	}
}

func renderTable(w io.Writer, cols []string, rows []core.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(w io.Writer, rows []core.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []core.Row{}
	}
	return enc.Encode(rows)
}

func renderCSV(w io.Writer, cols []string, rows []core.Row) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(r[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, cols []string, rows []core.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(r[col])
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
