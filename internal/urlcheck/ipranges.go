package urlcheck

import "net/netip"

// Address ranges that are never legitimate fetch targets: loopback,
// RFC1918 private, link-local, unique-local, and the all-zeros /
// all-ones addresses. Parsed once at startup.
var blockedRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/32"),
	netip.MustParsePrefix("255.255.255.255/32"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// IsPrivateAddr reports whether addr falls in a loopback, private,
// link-local, unique-local, or all-zeros/all-ones range. IPv4-mapped
// IPv6 addresses (::ffff:10.0.0.1) are unmapped first so they match
// the IPv4 ranges.
func IsPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// isPrivateIP parses s as an IP literal (surrounding brackets allowed)
// and reports whether it is a blocked address. Returns false for
// anything that does not parse as an IP.
func isPrivateIP(s string) bool {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = s[1 : len(s)-1]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return IsPrivateAddr(addr)
}
