package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loginlens-project/loginlens/internal/schema"
)

// looseTokenRe splits extracted-text lines on tabs, vertical bars, or runs
// of two or more spaces.
var looseTokenRe = regexp.MustCompile(`[\t|]+| {2,}`)

// headerScanLimit bounds how many leading non-blank lines the columnar
// fallback scans for a header candidate.
const headerScanLimit = 20

// parseLoose extracts tabular data from unstructured text (e.g. text pulled
// out of a document) that may still contain a delimited or structured
// payload. Strategies run in order — delimited text, an embedded JSON span,
// then alias-scored columnar lines — and their failures accumulate silently;
// an error surfaces only when every strategy fails.
func parseLoose(text string) (*Dataset, error) {
	var failures []string

	if strings.Contains(firstNonBlankLine(text), ",") {
		ds, err := parseDelimited(text)
		if err == nil {
			return ds, nil
		}
		failures = append(failures, "delimited: "+err.Error())
	}

	if span, ok := locateJSONSpan(text); ok {
		ds, err := parseRecords([]byte(span))
		if err == nil {
			return ds, nil
		}
		failures = append(failures, "embedded records: "+err.Error())
	}

	ds, err := parseColumnarText(text)
	if err == nil {
		return ds, nil
	}
	failures = append(failures, "columnar: "+err.Error())

	return nil, fmt.Errorf("could not extract tabular login data: %s", strings.Join(failures, "; "))
}

// locateJSONSpan finds a bracket-delimited structure anywhere in the text.
// Lists are preferred over objects since a record list is what we want.
func locateJSONSpan(text string) (string, bool) {
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			return text[start : end+1], true
		}
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1], true
		}
	}
	return "", false
}

// parseColumnarText scans the first lines of the text for the one that looks
// most like a header: each line splits into tokens, each token is checked
// against the known alias dictionary, and the line with the most alias hits
// wins (minimum two). Subsequent lines with at least half as many tokens as
// the header become data rows.
func parseColumnarText(text string) (*Dataset, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("need at least a header line and one data line, got %d non-blank lines", len(lines))
	}

	bestIdx, bestScore := -1, 0
	for i, line := range lines {
		if i >= headerScanLimit {
			break
		}
		score := 0
		for _, token := range splitLooseTokens(line) {
			if schema.IsKnownAlias(token) {
				score++
			}
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 || bestScore < 2 {
		return nil, fmt.Errorf("no line in the first %d looked like a recognizable header", headerScanLimit)
	}

	headers := splitLooseTokens(lines[bestIdx])
	rows := make([]map[string]string, 0, len(lines)-bestIdx-1)
	for _, line := range lines[bestIdx+1:] {
		fields := splitLooseTokens(line)
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
		return nil, fmt.Errorf("header line found (%d alias matches) but no data rows survived", bestScore)
	}
	return buildDataset(headers, rows)
}

func splitLooseTokens(line string) []string {
	var out []string
	for _, t := range looseTokenRe.Split(strings.TrimSpace(line), -1) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
