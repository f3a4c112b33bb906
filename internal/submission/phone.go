package submission

import (
	"strings"

	"bloomreach-forms/internal/mapping"
)

// Destination property names that mark a mapped field as a phone number.
var phoneDestinations = map[string]struct{}{
	"phone":        {},
	"phone_number": {},
	"telephone":    {},
	"mobile":       {},
	"mobile_phone": {},
	"tel":          {},
}

// Common source field names tried when no mapping entry points at a phone.
// Forms are free-form; this list covers the names seen in the wild, including
// non-English variants.
var phoneFallbackFields = []string{
	"phone", "tel", "telephone", "mobile", "movil", "mövil",
	"telefono", "teléfono", "phone-number", "contact-phone",
}

// ExtractPhone finds and normalizes a phone number from the submitted fields.
// Mapping hints win: any field whose destination names a phone property is
// tried first, in mapping order. Otherwise the raw submission is scanned with
// the fixed fallback list. Returns "" when nothing normalizes to a non-empty
// value.
func ExtractPhone(fields map[string][]string, form mapping.FormMapping) string {
	for _, pair := range form.Fields.Pairs() {
		if _, ok := phoneDestinations[strings.ToLower(pair.Dest)]; !ok {
			continue
		}
		if values, ok := fields[pair.Source]; ok {
			if phone := NormalizePhone(firstValue(values)); phone != "" {
				return phone
			}
		}
	}

	for _, name := range phoneFallbackFields {
		for fieldName, values := range fields {
			if !strings.EqualFold(fieldName, name) {
				continue
			}
			if phone := NormalizePhone(firstValue(values)); phone != "" {
				return phone
			}
		}
	}

	return ""
}

// NormalizePhone strips everything except digits and "+". When more than one
// "+" survives, only the first occurrence is kept.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.Count(s, "+") > 1 {
		first := strings.Index(s, "+")
		s = s[:first+1] + strings.ReplaceAll(s[first+1:], "+", "")
	}
	return s
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
