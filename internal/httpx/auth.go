package httpx

import "strings"

// ExtractBearerToken returns the token of an "Authorization: Bearer" header.
func ExtractBearerToken(authz string) (string, bool) {
	const prefix = "Bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(authz[len(prefix):])
	return tok, tok != ""
}
