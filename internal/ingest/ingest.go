// Package ingest turns raw input bytes into canonical login events. Three
// parsers — delimited text, structured JSON records, and loosely structured
// extracted text — all converge on the schema mapper and row normalizer.
package ingest

import (
	"fmt"
	"strings"

	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/schema"
)

// Format selects a parser. FormatAuto sniffs the input shape.
type Format int

const (
	FormatAuto Format = iota
	FormatDelimited
	FormatRecords
	FormatLoose
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatRecords:
		return "records"
	case FormatLoose:
		return "loose"
	default:
		return "auto"
	}
}

// ParseFormat converts a format hint string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "delimited", "csv":
		return FormatDelimited, nil
	case "records", "json":
		return FormatRecords, nil
	case "loose", "text":
		return FormatLoose, nil
	default:
		return FormatAuto, fmt.Errorf("unknown input format %q (want auto, csv, json, or text)", s)
	}
}

// Dataset is the ingestion result handed back to callers: the canonical
// events plus the raw headers and resolved mapping for transparency.
type Dataset struct {
	Events  []core.CanonicalEvent `json:"events"`
	Headers []string              `json:"headers"`
	Mapping *schema.Mapping       `json:"mapping"`
}

// Parse ingests raw bytes under the given format hint.
func Parse(data []byte, format Format) (*Dataset, error) {
	if format == FormatAuto {
		format = sniffFormat(data)
	}
	switch format {
	case FormatDelimited:
		return parseDelimited(string(data))
	case FormatRecords:
		return parseRecords(data)
	default:
		return parseLoose(string(data))
	}
}

// sniffFormat guesses the input shape: a JSON-looking leading byte means
// structured records, a comma in the first non-blank line means delimited
// text, anything else goes through the loose-text extractor.
func sniffFormat(data []byte) Format {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return FormatRecords
	}
	if strings.Contains(firstNonBlankLine(trimmed), ",") {
		return FormatDelimited
	}
	return FormatLoose
}

func firstNonBlankLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// buildDataset is the convergence point for all parsers: map the headers,
// then normalize every raw row into a canonical event.
func buildDataset(headers []string, rows []map[string]string) (*Dataset, error) {
	mapping, err := schema.MapHeaders(headers)
	if err != nil {
		return nil, err
	}
	events := make([]core.CanonicalEvent, 0, len(rows))
	for i, row := range rows {
		events = append(events, schema.NormalizeRow(row, mapping, i))
	}
	return &Dataset{Events: events, Headers: headers, Mapping: mapping}, nil
}
