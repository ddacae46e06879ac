package httpapi

import (
	"net"
	"net/http"
	"strings"

	"github.com/Mintimate/open-kounter/internal/passkey"
)

// relyingParty derives the ceremony binding from the request. The RP id
// is the bare hostname and the expected origin is the Origin header,
// falling back to scheme://host.
func (s *Server) relyingParty(r *http.Request) passkey.RelyingParty {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if s.cfg.TrustProxy {
		if v := firstHeaderValue(r, "X-Forwarded-Proto"); v != "" {
			scheme = v
		}
		if v := firstHeaderValue(r, "X-Forwarded-Host"); v != "" {
			host = v
		}
	}
	if host == "" {
		host = "localhost"
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = scheme + "://" + host
	}

	return passkey.RelyingParty{
		Name:   s.cfg.RPName,
		ID:     hostname(host),
		Origin: origin,
	}
}

func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

func firstHeaderValue(r *http.Request, name string) string {
	v := r.Header.Get(name)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
