package router

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// middlewareIP replaces RemoteAddr with the resolved client IP so later
// middlewares and handlers see one address.
func middlewareIP(trusted []netip.Prefix) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := realIP(r, trusted); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseTrustedProxies accepts IPs and CIDRs. Invalid entries are logged and
// skipped.
func parseTrustedProxies(entries []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if ip, err := netip.ParseAddr(entry); err == nil {
			ip = ip.Unmap()
			out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
			continue
		}
		slog.Warn("router: ignoring invalid trusted proxy", "entry", entry)
	}
	return out
}

// realIP returns the client address of r, or "" when nothing parses as an
// IP. Proxy headers are read only when the connection itself comes from a
// trusted proxy; any other peer is keyed by its own address.
func realIP(r *http.Request, trusted []netip.Prefix) string {
	peer, ok := remoteIP(r.RemoteAddr)
	if !ok {
		return ""
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}

	for _, name := range []string{"True-Client-IP", "X-Real-IP"} {
		if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get(name))); err == nil {
			return ip.Unmap().String()
		}
	}

	// Each hop appends to X-Forwarded-For, so only the entries to the right
	// of the last untrusted one were written by our own proxies.
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if ip = ip.Unmap(); !isTrusted(ip, trusted) {
			return ip.String()
		}
	}

	return peer.String()
}

func remoteIP(addr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.Unmap(), true
	}
	return netip.Addr{}, false
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
