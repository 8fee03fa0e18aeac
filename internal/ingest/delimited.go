package ingest

import (
	"errors"
	"strings"
)

// parseDelimited ingests comma-delimited text. The first non-blank line is
// the header row. Quoting follows RFC 4180: a quote toggles quoted state, a
// doubled quote inside a quoted field is a literal quote, and commas inside
// quotes are data. Malformed rows are tolerated rather than fatal: a row
// with fewer than half the expected fields is skipped, as is a row that
// repeats the header text (paginated exports re-emit header lines).
func parseDelimited(text string) (*Dataset, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, errors.New("delimited input needs a header line and at least one data row")
	}

	headers := splitDelimitedLine(lines[0])
	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := splitDelimitedLine(line)
		if len(fields)*2 < len(headers) {
			continue
		}
		if isHeaderEcho(fields, headers) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(fields) {
				row[h] = fields[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("delimited input has a header line but no usable data rows")
	}
	return buildDataset(headers, rows)
}

// splitDelimitedLine splits one line on unquoted commas.
func splitDelimitedLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

func isHeaderEcho(fields, headers []string) bool {
	return len(fields) > 0 && len(headers) > 0 &&
		strings.EqualFold(strings.TrimSpace(fields[0]), strings.TrimSpace(headers[0]))
}
