package schema

import (
	"fmt"
	"strings"
)

// Mapping is the resolved reconciliation between a dataset's raw headers and
// the canonical schema. Fields maps canonical field name to the raw header
// that supplies it. Defaults lists canonical fields that fell back to their
// declared default. Ignored lists raw headers no field claimed.
type Mapping struct {
	Fields   map[string]string `json:"fields"`
	Defaults []string          `json:"defaults,omitempty"`
	Ignored  []string          `json:"ignored,omitempty"`
	Notes    []string          `json:"notes,omitempty"`
}

// NormalizeHeader canonicalizes a raw header for matching: trimmed,
// lower-cased, with every non-alphanumeric, non-underscore run replaced by
// an underscore.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// ExtrasKey canonicalizes a raw header for the preserved-column table:
// lower-cased with everything but letters and digits stripped.
func ExtrasKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matcher is one fallback strategy for pairing a field alias with a
// normalized header.
type matcher struct {
	name  string
	match func(alias, header string) bool
}

// matchers are tried in order of decreasing exactness. Substring matching
// skips single-character headers, and token overlap accepts when the shared
// token count reaches half the alias's token count (catches reordered
// multi-word headers like "Name User" vs "user_name").
var matchers = []matcher{
	{"exact", func(alias, header string) bool {
		return header == alias
	}},
	{"substring", func(alias, header string) bool {
		if len(header) <= 1 {
			return false
		}
		return strings.Contains(header, alias) || strings.Contains(alias, header)
	}},
	{"token overlap", func(alias, header string) bool {
		aliasTokens := splitTokens(alias)
		if len(aliasTokens) == 0 {
			return false
		}
		headerTokens := make(map[string]bool)
		for _, t := range splitTokens(header) {
			headerTokens[t] = true
		}
		shared := 0
		for _, t := range aliasTokens {
			if headerTokens[t] {
				shared++
			}
		}
		return shared*2 >= len(aliasTokens)
	}},
}

func splitTokens(s string) []string {
	var out []string
	for _, t := range strings.Split(s, "_") {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MapHeaders resolves raw dataset headers against the canonical schema.
// Each canonical field, in declared order, runs the exact, substring, and
// token-overlap passes over the headers no earlier field has claimed; the
// first hit wins and removes the header from the pool. It fails when a
// required field stays unmatched, naming the aliases that were tried so the
// caller can fix the source data.
func MapHeaders(headers []string) (*Mapping, error) {
	m := &Mapping{Fields: make(map[string]string)}

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}
	claimed := make([]bool, len(headers))

	var missing []string
	for _, spec := range CanonicalFields() {
		idx, how := claimHeader(spec, normalized, claimed)
		if idx >= 0 {
			claimed[idx] = true
			m.Fields[spec.Name] = headers[idx]
			m.Notes = append(m.Notes, fmt.Sprintf("%s <- %q (%s match)", spec.Name, headers[idx], how))
			continue
		}
		if spec.Required {
			missing = append(missing, fmt.Sprintf("%s (tried: %s)", spec.Name, strings.Join(spec.Aliases, ", ")))
			continue
		}
		// Fields whose default is the empty string resolve silently; only a
		// substantive default is worth flagging to the caller.
		if spec.Default != "" {
			m.Defaults = append(m.Defaults, spec.Name)
			m.Notes = append(m.Notes, fmt.Sprintf("%s: no matching column, using default %q", spec.Name, spec.Default))
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required columns not found in input: %s", strings.Join(missing, "; "))
	}

	for i, h := range headers {
		if !claimed[i] {
			m.Ignored = append(m.Ignored, h)
		}
	}
	return m, nil
}

// claimHeader runs the matcher passes for one field over the unclaimed
// headers and returns the winning header index, or -1.
func claimHeader(spec FieldSpec, normalized []string, claimed []bool) (int, string) {
	for _, pass := range matchers {
		for _, alias := range spec.Aliases {
			for i, header := range normalized {
				if claimed[i] || header == "" {
					continue
				}
				if pass.match(alias, header) {
					return i, pass.name
				}
			}
		}
	}
	return -1, ""
}
