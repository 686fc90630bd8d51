// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

func TestVerifyIdentity(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{CommonName: "cn-is-ignored.example"},
		DNSNames: []string{
			"www.example.com",
			"*.Example.NET",
			"xn--bcher-kva.example",
			"*.com",
			"trailing.example.org.",
		},
		IPAddresses: []net.IP{net.ParseIP("192.0.2.10"), net.ParseIP("2001:db8::1")},
	}

	tests := []struct {
		name     string
		identity string
		match    bool
	}{
		{name: "Exact", identity: "www.example.com", match: true},
		{name: "Case Insensitive", identity: "WWW.Example.COM", match: true},
		{name: "Trailing Dot On Identity", identity: "www.example.com.", match: true},
		{name: "Trailing Dot On SAN", identity: "trailing.example.org", match: true},
		{name: "Wildcard Single Label", identity: "api.example.net", match: true},
		{name: "Wildcard Mixed Case", identity: "API.EXAMPLE.net", match: true},
		{name: "Wildcard Does Not Span Labels", identity: "a.b.example.net", match: false},
		{name: "Wildcard Does Not Match Apex", identity: "example.net", match: false},
		{name: "Wildcard Under Single Label Refused", identity: "example.com", match: false},
		{name: "IDNA Unicode Identity", identity: "bücher.example", match: true},
		{name: "IDNA Uppercase Unicode Identity", identity: "BÜCHER.example", match: true},
		{name: "Wildcard Identity Rejected", identity: "*.example.net", match: false},
		{name: "Common Name Not Consulted", identity: "cn-is-ignored.example", match: false},
		{name: "Unrelated", identity: "evil.example", match: false},
		{name: "IPv4", identity: "192.0.2.10", match: true},
		{name: "IPv6 Bracketed", identity: "[2001:db8::1]", match: true},
		{name: "IP Not In SANs", identity: "192.0.2.11", match: false},
		{name: "Empty Label", identity: ".example.net", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := x509chain.VerifyIdentity(cert, tt.identity)
			if tt.match {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, x509chain.ErrIdentityMismatch)
		})
	}
}
