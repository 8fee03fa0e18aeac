// Package schema reconciles arbitrary input headers against the canonical
// login-event schema and normalizes raw rows into canonical events.
package schema

import (
	"strconv"
	"strings"
)

// Canonical field names. Declaration order below is the order fields claim
// headers in; earlier fields win contested headers.
const (
	FieldUserID    = "user_id"
	FieldTimestamp = "timestamp"
	FieldLat       = "lat"
	FieldLong      = "long"
	FieldDeviceID  = "device_id"
	FieldIPAddress = "ip_address"
	FieldStatus    = "status"
)

// FieldSpec describes one canonical field: its known header spellings in
// preference order, the default used when no header matches, and whether the
// pipeline can function without it.
type FieldSpec struct {
	Name     string
	Aliases  []string
	Default  string
	Required bool
}

// CanonicalFields returns the canonical schema in declared matching order.
func CanonicalFields() []FieldSpec {
	return []FieldSpec{
		{
			Name:     FieldUserID,
			Required: true,
			Aliases: []string{
				"user_id", "userid", "user", "username", "user_name", "uid",
				"account", "account_id", "subject", "login", "email",
				"employee_id", "name",
			},
		},
		{
			Name:     FieldTimestamp,
			Required: true,
			Aliases: []string{
				"timestamp", "time", "datetime", "date_time", "event_time",
				"login_time", "logged_at", "access_time", "event_date",
				"date", "ts",
			},
		},
		{
			Name:    FieldLat,
			Default: "0",
			Aliases: []string{"lat", "latitude", "geo_lat", "location_lat"},
		},
		{
			Name:    FieldLong,
			Default: "0",
			Aliases: []string{
				"long", "lng", "lon", "longitude", "geo_long", "geo_lon",
				"location_long", "location_lon",
			},
		},
		{
			Name:    FieldDeviceID,
			Default: "unknown",
			Aliases: []string{
				"device_id", "device", "deviceid", "device_name",
				"device_type", "machine", "host", "hostname", "user_agent",
				"agent",
			},
		},
		{
			Name:    FieldIPAddress,
			Default: "",
			Aliases: []string{
				"ip_address", "ip", "ipaddress", "source_ip", "client_ip",
				"src_ip", "remote_addr", "origin_ip",
			},
		},
		{
			Name:    FieldStatus,
			Default: "",
			Aliases: []string{
				"status", "login_status", "result", "outcome", "success",
				"auth_result", "login_result",
			},
		},
	}
}

// Behavioral signal names. These are not canonical fields; they resolve on
// demand against an event's preserved original columns.
const (
	SignalAnomaly             = "anomaly_flag"
	SignalSensitiveAccess     = "sensitive_access"
	SignalMFA                 = "mfa_enabled"
	SignalFailedLogins        = "failed_logins"
	SignalIncidentReports     = "incident_reports"
	SignalPasswordResets      = "password_resets"
	SignalFailedTransactions  = "failed_transactions"
	SignalDeviceConsistency   = "device_consistency"
	SignalLocationConsistency = "location_consistency"
	SignalLoginConsistency    = "login_consistency"
)

// behavioralAliases maps each behavioral signal to its known column
// spellings. Keys are in extras form (lower-cased, alphanumeric only) since
// lookups run against the preserved-column table.
var behavioralAliases = map[string][]string{
	SignalAnomaly: {
		"isanomalous", "anomaly", "isanomaly", "anomalous", "flagged",
		"anomalyflag",
	},
	SignalSensitiveAccess: {
		"accesssensitivedata", "sensitiveaccess", "accessedsensitive",
		"sensitivedata", "sensitivedataaccess",
	},
	SignalMFA: {
		"mfaenabled", "mfa", "usedmfa", "multifactor", "twofactor", "2fa",
	},
	SignalFailedLogins: {
		"failedlogins", "failedloginattempts", "loginfailures",
		"failedattempts", "numfailedlogins", "failedlogincount",
	},
	SignalIncidentReports: {
		"incidentreports", "incidents", "incidentcount", "securityincidents",
		"reportcount",
	},
	SignalPasswordResets: {
		"passwordresets", "pwresets", "passwordresetcount", "resetcount",
	},
	SignalFailedTransactions: {
		"failedtransactions", "declinedtransactions", "txfailures",
		"failedtransactioncount",
	},
	SignalDeviceConsistency: {
		"deviceconsistency", "samedevice", "knowndevice", "devicematch",
	},
	SignalLocationConsistency: {
		"locationconsistency", "knownlocation", "locationmatch",
		"samelocation",
	},
	SignalLoginConsistency: {
		"loginconsistency", "loginconsistencyscore", "consistencyscore",
		"loginpattern",
	},
}

// BehavioralValue resolves a behavioral signal against an event's preserved
// columns. The first matching alias wins. Non-numeric values coerce to 0.
// The second return value reports whether any alias was present at all,
// which several rules treat differently from a zero value.
func BehavioralValue(extras map[string]string, signal string) (float64, bool) {
	if len(extras) == 0 {
		return 0, false
	}
	for _, alias := range behavioralAliases[signal] {
		raw, ok := extras[alias]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, true
		}
		return v, true
	}
	return 0, false
}

// IsKnownAlias reports whether a raw token matches any canonical or
// behavioral alias. The loose-text parser uses this to score candidate
// header lines.
func IsKnownAlias(token string) bool {
	norm := NormalizeHeader(token)
	stripped := ExtrasKey(token)
	if norm == "" && stripped == "" {
		return false
	}
	for _, spec := range CanonicalFields() {
		for _, alias := range spec.Aliases {
			if norm == alias || stripped == strings.ReplaceAll(alias, "_", "") {
				return true
			}
		}
	}
	for _, aliases := range behavioralAliases {
		for _, alias := range aliases {
			if stripped == alias {
				return true
			}
		}
	}
	return false
}
