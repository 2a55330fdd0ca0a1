package server

import (
	"net"
	"net/http"
	"strings"
)

// clientIP extracts the client address for per-IP session limits.
// X-Forwarded-For is honored only when Config.TrustProxyHeaders is set,
// and then the first valid entry wins.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := firstForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip.String()
		}
	}
	ip := remoteIP(r)
	if ip == nil {
		return ""
	}
	return ip.String()
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return parseForwardedIP(host)
}

func firstForwardedIP(header string) net.IP {
	if header == "" {
		return nil
	}
	for _, part := range strings.Split(header, ",") {
		if ip := parseForwardedIP(part); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(value string) net.IP {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"")
	if value == "" || strings.EqualFold(value, "unknown") {
		return nil
	}

	host := value
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end != -1 {
			host = host[1:end]
		}
	} else if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if zone := strings.Index(host, "%"); zone != -1 {
		host = host[:zone]
	}
	return net.ParseIP(host)
}
