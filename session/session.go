package session

import (
	"math"
	"strings"
)

// hasParticipant reports whether name is in the participant set. Matching is
// case-insensitive since participant names arrive from free-form chat text.
func hasParticipant(participants []string, name string) bool {
	for _, p := range participants {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// normalizeParticipants trims, lowercases and de-duplicates a participant
// list, preserving first-seen order.
func normalizeParticipants(participants []string) []string {
	seen := make(map[string]bool, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// normalizeName trims and lowercases a single participant name.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// equalFold is a short alias used by participant lookups.
func equalFold(a, b string) bool { return strings.EqualFold(a, b) }

// roundCurrency rounds a monetary amount half-up to the currency's minor
// unit (two decimal places). This is the fixed rounding rule for all split
// and expense arithmetic.
func roundCurrency(x float64) float64 {
	return math.Round(x*100) / 100
}
