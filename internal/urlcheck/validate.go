// Package urlcheck validates user-submitted URLs before any outbound
// connection is made. It is the SSRF gate for the fetch pipeline:
// protocol allowlist, hostname blocklist, private-IP-literal rejection,
// and a DNS-rebinding check that resolves public-looking hostnames and
// rejects any that resolve to a private address.
package urlcheck

import (
	"context"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// Category classifies why a URL was rejected.
type Category int

const (
	CategoryNone Category = iota
	CategoryInvalidURL
	CategoryDisallowedProtocol
	CategoryBlockedHostname
	CategoryPrivateIPTarget
)

// String returns the lowercase category name (used for audit storage).
func (c Category) String() string {
	switch c {
	case CategoryInvalidURL:
		return "invalid_url"
	case CategoryDisallowedProtocol:
		return "disallowed_protocol"
	case CategoryBlockedHostname:
		return "blocked_hostname"
	case CategoryPrivateIPTarget:
		return "private_ip_target"
	default:
		return "none"
	}
}

// Outcome is the result of validating a single URL. Produced fresh for
// every hop of a fetch; never persisted.
type Outcome struct {
	Allowed  bool
	Category Category
	Reason   string
}

func rejected(cat Category, reason string) Outcome {
	return Outcome{Allowed: false, Category: cat, Reason: reason}
}

// Resolver abstracts DNS resolution for testability.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Hostnames that always refer to the local machine, rejected exactly.
var blockedHostnames = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
}

// Suffixes reserved for non-public name resolution (mDNS, site-internal).
var blockedSuffixes = []string{".local", ".internal", ".localhost"}

// Validator runs the URL security checks. Side-effect-free except for
// the DNS lookup in the rebinding check.
type Validator struct {
	resolver Resolver
	logger   *zap.Logger
}

// NewValidator creates a Validator. A nil resolver falls back to
// net.DefaultResolver.
func NewValidator(resolver Resolver, logger *zap.Logger) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Validator{resolver: resolver, logger: logger}
}

// Validate runs all checks against rawURL in order, short-circuiting on
// the first failure:
//
//  1. must parse as an absolute URL
//  2. scheme must be http or https
//  3. must carry a hostname
//  4. hostname must not be a localhost variant or carry a blocked suffix
//  5. IP-literal hostnames must not be in a private range
//  6. name hostnames must not resolve to any private address
//
// DNS resolution failure (other than a private-IP hit) is logged as a
// warning and allowed through: the subsequent connection attempt fails
// safely on its own, and treating lookup flakiness as an attack would
// reject legitimate URLs.
func (v *Validator) Validate(ctx context.Context, rawURL string) Outcome {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return rejected(CategoryInvalidURL, "not an absolute URL")
	}

	// Scheme is checked before the hostname so that hostname-less URLs
	// on a forbidden scheme (file:///etc/passwd) report the protocol
	// violation, not a parse problem.
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return rejected(CategoryDisallowedProtocol, "scheme "+scheme+" is not allowed")
	}

	if u.Hostname() == "" {
		return rejected(CategoryInvalidURL, "URL has no hostname")
	}

	host := normalizeHostname(u.Hostname())

	if _, blocked := blockedHostnames[host]; blocked {
		return rejected(CategoryBlockedHostname, "hostname "+host+" is not allowed")
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return rejected(CategoryBlockedHostname, "hostname suffix "+suffix+" is not allowed")
		}
	}

	// IP-literal hostname: check the address directly, no DNS involved.
	if addr, err := netip.ParseAddr(host); err == nil {
		if IsPrivateAddr(addr) {
			return rejected(CategoryPrivateIPTarget, "private IP address is not allowed")
		}
		return Outcome{Allowed: true}
	}

	return v.checkResolved(ctx, host)
}

// checkResolved is the anti-rebinding check: a hostname that looks
// public must not resolve to a private address.
func (v *Validator) checkResolved(ctx context.Context, host string) Outcome {
	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		// Soft-fail: resolution failure is not itself a security
		// signal. The connect attempt will fail on its own.
		v.logger.Warn("dns resolution failed, allowing fetch to proceed",
			zap.String("hostname", host),
			zap.Error(err),
		)
		return Outcome{Allowed: true}
	}

	for _, ipAddr := range addrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok {
			continue
		}
		if IsPrivateAddr(addr) {
			return rejected(CategoryPrivateIPTarget,
				"hostname "+host+" resolves to a private address")
		}
	}

	return Outcome{Allowed: true}
}

// normalizeHostname lowercases and IDNA-normalizes a hostname so that
// unicode or punycode spellings of blocked names cannot slip past the
// exact-match blocklist. Brackets around IPv6 literals are stripped by
// url.Hostname before we get here.
func normalizeHostname(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}
