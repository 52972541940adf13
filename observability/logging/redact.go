package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields.
const RedactedValue = "[REDACTED]"

// redactionAllowlist mirrors the teacher's allowlist, extended with the
// identity/tier fields this substrate is willing to log in the clear.
// Public keys, signatures, and raw performance payloads are never
// allowlisted: they are redacted by default.
var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"identityId":    {},
	"agentId":       {},
	"tier":          {},
	"strictness":    {},
	"result":        {},
	"correlationId": {},
	"detailsDigest": {},
}

// IsAllowlisted reports whether key is exempt from redaction by MaskField.
// Setup's handler does not call it; only values passed through MaskField
// are redacted.
func IsAllowlisted(key string) bool {
	trimmed := strings.TrimSpace(key)
	if _, ok := redactionAllowlist[trimmed]; ok {
		return true
	}
	_, ok := redactionAllowlist[strings.ToLower(trimmed)]
	return ok
}

// RedactionAllowlist returns a sorted copy of keys exempt from redaction.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the canonical redacted placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts value unless key is
// explicitly allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
