package admission

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the ClientKey for a request.
type KeyFunc func(r *http.Request) ClientKey

// DefaultKeyFunc keys by caller address. With trustForwarded it prefers the
// first X-Forwarded-For hop, then X-Real-IP; it always falls back to the
// RemoteAddr host.
func DefaultKeyFunc(trustForwarded bool) KeyFunc {
	return func(r *http.Request) ClientKey {
		if trustForwarded {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ClientKey(ip)
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ClientKey(ip)
			}
		}

		remote := strings.TrimSpace(r.RemoteAddr)
		host, _, err := net.SplitHostPort(remote)
		if err == nil && host != "" {
			return ClientKey(host)
		}
		if remote != "" {
			return ClientKey(remote)
		}
		return "unknown"
	}
}
