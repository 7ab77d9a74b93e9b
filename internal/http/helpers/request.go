// Package helpers agrupa utilidades de request compartidas por controllers.
package helpers

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resuelve la IP del cliente detrás de proxies: primer salto de
// X-Forwarded-For, luego X-Real-IP, luego RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return fwd
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// DeviceID lee el identificador opcional de dispositivo.
func DeviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Device-Id"))
}
