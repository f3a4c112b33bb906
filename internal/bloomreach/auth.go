package bloomreach

import (
	"encoding/base64"
	"strings"
)

// Recognized Authorization scheme prefixes. Credentials already carrying one
// are passed through unchanged.
var schemePrefixes = []string{"Token ", "Bearer ", "Basic "}

// AuthorizationHeader derives the Authorization header value from the stored
// credential's shape: a recognized scheme prefix passes through, a
// "key_id:secret" pair becomes a basic credential, and anything else is a
// bare API token.
func AuthorizationHeader(credential string) string {
	cred := strings.TrimSpace(credential)
	for _, prefix := range schemePrefixes {
		if strings.HasPrefix(cred, prefix) {
			return cred
		}
	}
	if strings.Contains(cred, ":") {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
	}
	return "Token " + cred
}
