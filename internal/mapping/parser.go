package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	pairSeparator = regexp.MustCompile(`[,\r\n]+`)
	keyStrip      = regexp.MustCompile(`[^a-z0-9_\-]`)
	ctrlStrip     = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ParseFieldMap parses a flat "source=dest" pair specification separated by
// commas and/or newlines. Malformed tokens (no "=", or an empty side) are
// collected and returned alongside the valid pairs; they never fail the parse.
// Destination values may contain "=" since only the first one splits the pair.
func ParseFieldMap(spec string) (*FieldMap, []string) {
	fields := NewFieldMap()
	var malformed []string

	for _, piece := range pairSeparator.Split(spec, -1) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		eq := strings.Index(piece, "=")
		if eq < 0 {
			malformed = append(malformed, piece)
			continue
		}
		source := strings.TrimSpace(piece[:eq])
		dest := strings.TrimSpace(piece[eq+1:])
		if source == "" || dest == "" {
			malformed = append(malformed, piece)
			continue
		}
		fields.Set(NormalizeKey(source), SanitizeText(dest))
	}

	return fields, malformed
}

// FieldMapFromPairs builds a FieldMap from structured key/value pairs. Keys
// are sorted so the resulting order is stable across configuration loads.
// Pairs whose source normalizes to nothing, or whose destination is empty,
// are reported as malformed like their flat-string counterparts.
func FieldMapFromPairs(pairs map[string]string) (*FieldMap, []string) {
	fields := NewFieldMap()
	var malformed []string

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		source := NormalizeKey(k)
		dest := SanitizeText(pairs[k])
		if source == "" || dest == "" {
			malformed = append(malformed, fmt.Sprintf("%s=%s", k, pairs[k]))
			continue
		}
		fields.Set(source, dest)
	}

	return fields, malformed
}

// NormalizeKey lowercases a field name and strips everything outside
// [a-z0-9_-], matching how the settings store slugs keys.
func NormalizeKey(s string) string {
	return keyStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// SanitizeText trims a destination value and removes control characters.
func SanitizeText(s string) string {
	return strings.TrimSpace(ctrlStrip.ReplaceAllString(s, ""))
}

// UniqueMalformed deduplicates malformed tokens across any number of rows,
// preserving first-seen order. The caller emits exactly one warning for the
// whole set.
func UniqueMalformed(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
