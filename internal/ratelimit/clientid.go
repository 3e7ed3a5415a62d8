package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// forwardedForHeader is the proxy-appended client address header.
const forwardedForHeader = "X-Forwarded-For"

// ClientID resolves the identifier a request is rate-limited under.
//
// Behind a trusted proxy the leftmost forwarded address is used, but
// only when the header carries no more addresses than trustedHops and
// the address is syntactically valid; anything else falls back to the
// transport peer. This keeps a client from spoofing the header to
// evade limits or attribute requests to someone else.
func ClientID(r *http.Request, trustProxy bool, trustedHops int) string {
	if trustProxy {
		if id := forwardedClient(r.Header.Get(forwardedForHeader), trustedHops); id != "" {
			return id
		}
	}
	return peerAddress(r)
}

func forwardedClient(header string, trustedHops int) string {
	if header == "" {
		return ""
	}
	parts := strings.Split(header, ",")
	if len(parts) > trustedHops {
		return ""
	}
	addr := strings.TrimSpace(parts[0])
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}

func peerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
