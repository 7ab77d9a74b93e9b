package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
)

// randomBase64URL returns n random bytes base64url-encoded without padding.
// n is clamped to a 16 byte floor.
func randomBase64URL(n int) string {
	if n < 16 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand no falla en plataformas soportadas.
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// randomWalletSub mints a fresh wallet subject.
func randomWalletSub() string {
	return "wallet_" + strings.ToLower(randomBase64URL(18))
}

// sha256Base64URL is the PKCE S256 transform.
func sha256Base64URL(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// isAllowedRedirect accepts only absolute URIs matching an allowlisted prefix.
// An empty allowlist rejects everything.
func isAllowedRedirect(uri string, prefixes []string) bool {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" || len(prefixes) == 0 {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
