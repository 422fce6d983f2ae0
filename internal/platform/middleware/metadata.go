package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, raw User-Agent and a normalized
// device string from the request and adds them to the context. Audit events
// attach these to OTP and card operations. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)
		rawUA := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, rawUA, normalizeDevice(rawUA))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// normalizeDevice reduces a raw User-Agent to "Browser version / OS" so audit
// rows stay short and comparable.
func normalizeDevice(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return rawUA
	}
	os := ua.OS()
	if os == "" {
		os = "unknown"
	}
	return fmt.Sprintf("%s %s / %s", name, version, os)
}

// clientIPFromRequest extracts the real client IP, handling proxies and load
// balancers.
func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		// "ip:port" for IPv4, "[::1]:port" for IPv6.
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}
	return ""
}
