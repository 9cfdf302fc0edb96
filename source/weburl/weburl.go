// Package weburl decides which article URLs the pipeline may fetch.
// It blocks loopback, private and link-local targets, including after DNS
// resolution, so a story link cannot reach internal services.
package weburl

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

var reservedNets = mustParseCIDRs(
	"100.64.0.0/10", // carrier-grade NAT
	"fc00::/7",      // IPv6 unique local
	"fe80::/10",     // IPv6 link-local
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, len(cidrs))
	for i, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("invalid CIDR " + c + ": " + err.Error())
		}
		nets[i] = n
	}
	return nets
}

// Policy controls which URLs are acceptable.
type Policy struct {
	// AllowHTTP permits plain http URLs. Many catalog links are still http.
	AllowHTTP bool

	// AllowPrivate permits loopback, private and local targets.
	AllowPrivate bool
}

// Validate checks rawURL against the policy without resolving DNS.
func (p Policy) Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !p.AllowHTTP {
			return fmt.Errorf("only HTTPS URLs are allowed")
		}
	default:
		return fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if p.AllowPrivate {
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("local domain URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

// IsPrivateIP reports whether ip is loopback, private, link-local or in a
// reserved range. IPv4-mapped IPv6 addresses are checked as IPv4.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// DialContext returns a dial function that resolves the host itself and
// refuses private addresses, closing the DNS-rebinding gap left by Validate.
// With AllowPrivate set it dials directly.
func (p Policy) DialContext(timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if p.AllowPrivate {
		return dialer.DialContext
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		var lastErr error
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("connect %s: %w", host, lastErr)
	}
}
