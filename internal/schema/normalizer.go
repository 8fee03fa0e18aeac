package schema

import (
	"strconv"
	"strings"

	"github.com/loginlens-project/loginlens/internal/core"
)

// NormalizeRow applies a resolved mapping to one raw row and produces a
// canonical event. Canonical fields fall back to their declared default when
// the mapped column is absent or blank; numeric fields parse with a fallback
// of 0. Every original column is preserved in the extras table regardless of
// whether the mapper claimed it — unclaimed columns may still carry
// behavioral signal.
func NormalizeRow(row map[string]string, m *Mapping, rowID int) core.CanonicalEvent {
	resolved := make(map[string]string)
	for _, spec := range CanonicalFields() {
		val := ""
		if header, ok := m.Fields[spec.Name]; ok {
			val = strings.TrimSpace(row[header])
		}
		if val == "" {
			val = spec.Default
		}
		resolved[spec.Name] = val
	}

	extras := make(map[string]string, len(row))
	for k, v := range row {
		if key := ExtrasKey(k); key != "" {
			extras[key] = v
		}
	}

	return core.CanonicalEvent{
		Row:       rowID,
		UserID:    resolved[FieldUserID],
		Timestamp: resolved[FieldTimestamp],
		Lat:       parseFloat(resolved[FieldLat]),
		Long:      parseFloat(resolved[FieldLong]),
		DeviceID:  resolved[FieldDeviceID],
		IPAddress: resolved[FieldIPAddress],
		Status:    resolved[FieldStatus],
		Extras:    extras,
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
