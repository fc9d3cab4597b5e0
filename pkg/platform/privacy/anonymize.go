// Package privacy masks personal data before it reaches diagnostic logs, and
// produces the replacement values used when a user exercises GDPR erasure.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"
)

// AnonymizedEmail replaces user emails on erased audit entries.
const AnonymizedEmail = "erased@anonymized.invalid"

// AnonymizeIP masks an address to its network prefix: /24 for IPv4 and /48
// for IPv6. "unknown" and "" map to "unknown"; unparseable input to "invalid".
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// AnonymizeUserID derives a stable pseudonym for an erased user so their
// remaining audit entries still correlate without naming them.
func AnonymizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userID))
	return "anon_" + hex.EncodeToString(sum[:8])
}
