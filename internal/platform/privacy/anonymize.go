// Package privacy reduces client identifiers before they are persisted.
package privacy

import (
	"fmt"
	"net"
)

// AnonymizeIP drops the host-identifying part of an address before storage.
// IPv4 keeps the /24 network ("192.168.1.47" becomes "192.168.1.0"); IPv6
// keeps the /48 prefix ("2001:db8:85a3::8a2e:370:7334" becomes
// "2001:0db8:85a3::"). Empty input yields "unknown", unparseable input
// "invalid"; the raw address is never returned.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	// To4 also catches IPv4-mapped IPv6.
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	// /48 prefix = first 6 of the 16 bytes.
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}
