package logger

import "strings"

// MaskEmail hides the local part of an email address, keeping the domain.
// "steve@example.com" becomes "s***e@example.com". Values that don't look
// like an email are masked entirely.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return maskMiddle(email)
	}
	local := email[:at]
	domain := email[at+1:]
	return maskMiddle(local) + "@" + domain
}

// MaskSecret hides the middle of a credential or token, keeping at most the
// first and last two characters. Short secrets are replaced outright.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

func maskMiddle(s string) string {
	switch {
	case len(s) == 0:
		return ""
	case len(s) <= 2:
		return "***"
	default:
		return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
	}
}
