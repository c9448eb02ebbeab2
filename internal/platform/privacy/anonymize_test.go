package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"ipv4", "192.168.1.47", "192.168.1.0"},
		{"ipv4 already zeroed", "10.0.0.0", "10.0.0.0"},
		{"ipv4 high octet", "172.16.50.255", "172.16.50.0"},
		{"ipv4 loopback", "127.0.0.1", "127.0.0.0"},
		{"ipv6 full", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:0db8:85a3::"},
		{"ipv6 compressed", "2001:db8:85a3::8a2e:370:7334", "2001:0db8:85a3::"},
		{"ipv6 loopback", "::1", "0000:0000:0000::"},
		{"ipv6 link-local", "fe80::1", "fe80:0000:0000::"},
		{"empty", "", "unknown"},
		{"unknown passthrough", "unknown", "unknown"},
		{"not an ip", "not-an-ip", "invalid"},
		{"partial ip", "192.168.1", "invalid"},
		{"ip with port", "192.168.1.1:8080", "invalid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AnonymizeIP(tc.input))
		})
	}
}

func TestAnonymizeIP_SameNetworkCollapses(t *testing.T) {
	// Everything in one /24 maps to the same value; neighbors in another
	// network do not.
	for _, ip := range []string{"192.168.1.1", "192.168.1.100", "192.168.1.255"} {
		assert.Equal(t, "192.168.1.0", AnonymizeIP(ip))
	}
	assert.NotEqual(t, AnonymizeIP("192.168.1.47"), AnonymizeIP("192.168.2.47"))
}
