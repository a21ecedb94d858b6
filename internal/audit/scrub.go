package audit

import (
	"regexp"
	"strings"
)

// scrubbedKeys are field names whose values must never reach the audit
// trail. Matching is exact on the lowercased key.
var scrubbedKeys = map[string]struct{}{
	"ssn":            {},
	"tax_id":         {},
	"bank_account":   {},
	"routing_number": {},
	"password":       {},
	"token":          {},
	"authorization":  {},
	"secret":         {},
}

var (
	bearerRE = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`)
	ssnRE    = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// Scrub returns a copy of detail with sensitive keys replaced by a marker
// and token/SSN shaped substrings masked inside remaining string values.
// The input map is never mutated.
func Scrub(detail map[string]any) map[string]any {
	if detail == nil {
		return nil
	}
	out := make(map[string]any, len(detail))
	for k, v := range detail {
		if _, hit := scrubbedKeys[strings.ToLower(k)]; hit {
			out[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = ScrubText(s)
			continue
		}
		out[k] = v
	}
	return out
}

// ScrubText masks token and SSN shaped substrings in free text. Every
// free-text field on a record passes through here before it is enqueued.
func ScrubText(s string) string {
	s = bearerRE.ReplaceAllString(s, "[REDACTED]")
	return ssnRE.ReplaceAllString(s, "[REDACTED]")
}
