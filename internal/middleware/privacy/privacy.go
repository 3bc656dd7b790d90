// Package privacy resolves the real client address behind trusted
// proxies and masks it before anything downstream can log it.
package privacy

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/courier-http/courier/internal/middleware"
)

type clientIPKey struct{}
type maskedIPKey struct{}

// Resolver extracts the client IP from trusted proxy chains.
type Resolver struct {
	trustedNets []*net.IPNet
	headers     []string
}

// New creates a Resolver from a list of trusted proxy CIDRs. Bare IPs
// are accepted and widened to host-sized networks.
func New(cidrs []string) (*Resolver, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if !strings.Contains(cidr, "/") {
			ip := net.ParseIP(cidr)
			if ip == nil {
				return nil, &net.ParseError{Type: "IP address", Text: cidr}
			}
			if ip.To4() != nil {
				cidr += "/32"
			} else {
				cidr += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		nets = append(nets, ipNet)
	}
	return &Resolver{
		trustedNets: nets,
		headers:     []string{"X-Forwarded-For", "X-Real-IP"},
	}, nil
}

// Middleware returns the chainable privacy stage. It runs first in the
// stack so every later stage sees the resolved, masked address.
func (p *Resolver) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := p.Extract(r)
			ctx := context.WithValue(r.Context(), clientIPKey{}, client)
			ctx = context.WithValue(ctx, maskedIPKey{}, Mask(client))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the resolved client address, or "".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// MaskedIP returns the privacy-masked client address, or "".
func MaskedIP(ctx context.Context) string {
	if ip, ok := ctx.Value(maskedIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// Extract determines the client IP. Forwarding headers are honored only
// when the direct peer is a trusted proxy; the X-Forwarded-For chain is
// walked right to left and the first untrusted hop wins.
func (p *Resolver) Extract(r *http.Request) string {
	remoteIP := extractHost(r.RemoteAddr)
	if len(p.trustedNets) == 0 || !p.isTrusted(remoteIP) {
		return remoteIP
	}

	for _, header := range p.headers {
		val := r.Header.Get(header)
		if val == "" {
			continue
		}
		if strings.EqualFold(header, "X-Forwarded-For") {
			if ip := p.walkChain(val); ip != "" {
				return ip
			}
			continue
		}
		if ip := strings.TrimSpace(val); ip != "" {
			return ip
		}
	}
	return remoteIP
}

func (p *Resolver) walkChain(xff string) string {
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(parts[i])
		if ip == "" {
			continue
		}
		if !p.isTrusted(ip) {
			return ip
		}
	}
	return strings.TrimSpace(parts[0])
}

func (p *Resolver) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range p.trustedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Mask redacts the host part of an address: the last IPv4 octet is
// zeroed, IPv6 keeps only its /48 prefix.
func Mask(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ipStr
	}
	if v4 := ip.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}
	masked := ip.Mask(net.CIDRMask(48, 128))
	return masked.String()
}

func extractHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
