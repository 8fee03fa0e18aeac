package main

// ---------------------------------------------------------------------------
// output.go — output format flag, table rendering, CSV export
// ---------------------------------------------------------------------------

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/loginlens-project/loginlens/internal/report"
	"github.com/loginlens-project/loginlens/internal/schema"
)

// OutputFormat enumerates supported output formats.
type OutputFormat int

const (
	FormatTable OutputFormat = iota
	FormatJSON
	FormatCSV
)

// parseOutputFormat converts a --output string to an OutputFormat.
func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "csv":
		return FormatCSV
	default:
		return FormatTable
	}
}

// ---------------------------------------------------------------------------
// Table renderer — auto-sized columns with box-drawing borders
// ---------------------------------------------------------------------------

// Table renders aligned, bordered tables to a writer.
type Table struct {
	headers []string
	rows    [][]string
	w       io.Writer
}

// NewTable creates a table with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{headers: headers, w: w}
}

// AddRow appends a row. Values are matched positionally to headers.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	t.rows = append(t.rows, row)
}

// ansiRe matches terminal escape sequences so colored cells measure by
// their visible width.
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func visibleLen(s string) int {
	return len(ansiRe.ReplaceAllString(s, ""))
}

// Render writes the table with box-drawing borders.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, v := range row {
			if l := visibleLen(v); l > widths[i] {
				widths[i] = l
			}
		}
	}

	sep := func(l, m, r string) {
		fmt.Fprint(t.w, l)
		for i, w := range widths {
			fmt.Fprint(t.w, strings.Repeat("─", w+2))
			if i < len(widths)-1 {
				fmt.Fprint(t.w, m)
			}
		}
		fmt.Fprintln(t.w, r)
	}
	line := func(vals []string) {
		fmt.Fprint(t.w, "│")
		for i, v := range vals {
			pad := widths[i] - visibleLen(v)
			if pad < 0 {
				pad = 0
			}
			fmt.Fprintf(t.w, " %s%s │", v, strings.Repeat(" ", pad))
		}
		fmt.Fprintln(t.w)
	}

	sep("┌", "┬", "┐")
	line(t.headers)
	sep("├", "┼", "┤")
	for _, row := range t.rows {
		line(row)
	}
	sep("└", "┴", "┘")
}

// ---------------------------------------------------------------------------
// Bundle rendering
// ---------------------------------------------------------------------------

// renderBundle prints a result bundle in the requested format.
func renderBundle(b *report.Bundle, format OutputFormat, maxAlerts int) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			errorf("encoding bundle: %v", err)
		}
	case FormatCSV:
		if err := writeAlertsCSV(os.Stdout, b.Alerts); err != nil {
			errorf("writing CSV: %v", err)
		}
	default:
		renderSummary(b)
		renderAlerts(b, maxAlerts)
		renderTopEntities(b)
	}
}

func renderSummary(b *report.Bundle) {
	s := b.Summary
	fmt.Printf("Events: %d   Users: %d   Mean score: %.1f\n", s.TotalEvents, s.UniqueUsers, s.MeanScore)
	fmt.Printf("Severity: %s %d   %s %d   %s %d\n\n",
		red("high"), s.HighCount, yellow("medium"), s.MediumCount, green("low"), s.LowCount)
}

func renderAlerts(b *report.Bundle, maxAlerts int) {
	if len(b.Alerts) == 0 {
		fmt.Println(dim("no alerts"))
		return
	}
	tbl := NewTable(os.Stdout, "ID", "SEVERITY", "USER", "SCORE", "DESCRIPTION")
	shown := 0
	for _, a := range b.Alerts {
		if maxAlerts > 0 && shown >= maxAlerts {
			break
		}
		tbl.AddRow(a.ID, severityColor(a.Severity), a.UserID, strconv.Itoa(a.Score), a.Description)
		shown++
	}
	tbl.Render()
	if maxAlerts > 0 && len(b.Alerts) > maxAlerts {
		fmt.Println(dim(fmt.Sprintf("… %d more alerts (use --limit 0 for all)", len(b.Alerts)-maxAlerts)))
	}
}

func renderTopEntities(b *report.Bundle) {
	if len(b.TopEntities) == 0 {
		return
	}
	fmt.Println("\nTop risk users:")
	tbl := NewTable(os.Stdout, "USER", "MAX SCORE", "ALERTS")
	for _, e := range b.TopEntities {
		tbl.AddRow(e.UserID, strconv.Itoa(e.MaxScore), strconv.Itoa(e.AlertCount))
	}
	tbl.Render()
}

// renderMapping prints a schema mapping in declared field order.
func renderMapping(fields map[string]string, defaults, ignored, notes []string) {
	tbl := NewTable(os.Stdout, "CANONICAL FIELD", "SOURCE COLUMN")
	for _, spec := range schema.CanonicalFields() {
		if header, ok := fields[spec.Name]; ok {
			tbl.AddRow(spec.Name, header)
		}
	}
	tbl.Render()
	if len(defaults) > 0 {
		fmt.Printf("using defaults: %s\n", strings.Join(defaults, ", "))
	}
	if len(ignored) > 0 {
		fmt.Printf("ignored columns: %s\n", strings.Join(ignored, ", "))
	}
	for _, note := range notes {
		fmt.Println(dim("  " + note))
	}
}

// writeAlertsCSV exports the alert list as CSV.
func writeAlertsCSV(w io.Writer, alerts []report.Alert) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "severity", "user_id", "title", "description", "timestamp", "score"}); err != nil {
		return err
	}
	for _, a := range alerts {
		rec := []string{a.ID, a.Severity.String(), a.UserID, a.Title, a.Description, a.Timestamp, strconv.Itoa(a.Score)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
