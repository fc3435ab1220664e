package aeris

import (
	"net"
	"strings"
)

// ForwardedPolicy is the trust-bounded rewriting policy for
// X-Forwarded-Host/-Proto/-For described in spec.md §6. Forwarded headers
// are only honored when the immediate peer (RemoteAddr) is a recognized
// proxy; otherwise they are a spoofing vector and are ignored outright.
type ForwardedPolicy struct {
	AllowedHosts  map[string]bool
	KnownProxies  []net.IP
	KnownNetworks []*net.IPNet
	ForwardLimit  int
}

// NewForwardedPolicy parses allowedHosts and knownProxies (IPs or CIDRs)
// into a ready-to-use policy.
func NewForwardedPolicy(allowedHosts []string, knownProxies []string, forwardLimit int) (*ForwardedPolicy, error) {
	p := &ForwardedPolicy{ForwardLimit: forwardLimit}
	if forwardLimit <= 0 {
		p.ForwardLimit = 1
	}

	for _, h := range allowedHosts {
		if p.AllowedHosts == nil {
			p.AllowedHosts = map[string]bool{}
		}
		p.AllowedHosts[strings.ToLower(h)] = true
	}

	for _, raw := range knownProxies {
		if strings.Contains(raw, "/") {
			_, network, err := net.ParseCIDR(raw)
			if err != nil {
				return nil, err
			}
			p.KnownNetworks = append(p.KnownNetworks, network)
			continue
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, &HTTPError{Status: 400, Message: "invalid known_proxies entry: " + raw}
		}
		p.KnownProxies = append(p.KnownProxies, ip)
	}

	return p, nil
}

func (p *ForwardedPolicy) isTrustedProxy(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, known := range p.KnownProxies {
		if known.Equal(ip) {
			return true
		}
	}
	for _, network := range p.KnownNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolved carries the rewritten scheme/host/client-IP after a successful
// Resolve call.
type Resolved struct {
	Scheme   string
	Host     string
	ClientIP string
}

// Resolve applies the trust policy to header against the connection's
// original scheme/host/remoteAddr, returning the values Request should
// adopt. An untrusted immediate peer makes forwarded headers a no-op: the
// original values pass through unchanged. A trusted peer that still
// violates the policy (unknown host, too many hops, duplicate or malformed
// headers) yields a 400 *HTTPError.
func (p *ForwardedPolicy) Resolve(header Header, remoteAddr, originalScheme, originalHost string) (*Resolved, error) {
	result := &Resolved{Scheme: originalScheme, Host: originalHost, ClientIP: remoteAddr}

	if !p.isTrustedProxy(remoteAddr) {
		return result, nil
	}

	if header.Count("X-Forwarded-Host") > 1 {
		return nil, &HTTPError{Status: 400, Message: "duplicate X-Forwarded-Host header"}
	}
	if header.Count("X-Forwarded-Proto") > 1 {
		return nil, &HTTPError{Status: 400, Message: "duplicate X-Forwarded-Proto header"}
	}

	if proto := header.Get("X-Forwarded-Proto"); proto != "" {
		if strings.Contains(proto, ",") {
			return nil, &HTTPError{Status: 400, Message: "X-Forwarded-Proto must carry a single value"}
		}
		result.Scheme = proto
	}

	if host := header.Get("X-Forwarded-Host"); host != "" {
		if p.AllowedHosts != nil && !p.AllowedHosts[strings.ToLower(host)] {
			return nil, &HTTPError{Status: 400, Message: "unknown forwarded host: " + host}
		}
		result.Host = host
	}

	if xff := header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := range hops {
			hops[i] = strings.TrimSpace(hops[i])
		}
		if len(hops) > p.ForwardLimit {
			return nil, &HTTPError{Status: 400, Message: "too many forwarded hops"}
		}
		result.ClientIP = hops[0]
	}

	return result, nil
}
