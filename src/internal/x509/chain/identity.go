// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/x509"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// VerifyIdentity checks that cert's subject alternative names cover identity.
//
// IP literals (optionally bracketed) match IP SANs. Anything else is treated
// as a DNS name: compared case-insensitively after IDNA conversion to its
// ASCII form, either exactly or against a wildcard SAN whose "*" stands for
// exactly one left-most label. The subject common name is never consulted.
func VerifyIdentity(cert *x509.Certificate, identity string) error {
	candidate := strings.TrimSuffix(strings.TrimPrefix(identity, "["), "]")
	if ip := net.ParseIP(candidate); ip != nil {
		for _, san := range cert.IPAddresses {
			if san.Equal(ip) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s not in IP SANs of %s", ErrIdentityMismatch, identity, describe(cert))
	}

	host, ok := normalizeName(identity)
	if !ok || strings.Contains(host, "*") {
		return fmt.Errorf("%w: invalid identity %q", ErrIdentityMismatch, identity)
	}

	for _, san := range cert.DNSNames {
		pattern, ok := normalizeName(san)
		if ok && matchHostname(pattern, host) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not in DNS SANs of %s", ErrIdentityMismatch, identity, describe(cert))
}

// normalizeName lowercases name, drops a trailing dot and converts each
// label to its ASCII form. A leading "*." is preserved.
func normalizeName(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "" {
		return "", false
	}

	prefix := ""
	if strings.HasPrefix(name, "*.") {
		prefix, name = "*.", name[2:]
	}

	ascii, err := idna.ToASCII(name)
	if err != nil || ascii == "" {
		return "", false
	}
	return prefix + strings.ToLower(ascii), true
}

// matchHostname matches a normalized SAN pattern against a normalized host.
func matchHostname(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}

	suffix := pattern[1:]
	// Refuse wildcards directly under a single label such as "*.com".
	if !strings.Contains(suffix[1:], ".") {
		return false
	}
	if !strings.HasSuffix(host, suffix) {
		return false
	}
	label := host[:len(host)-len(suffix)]
	return label != "" && !strings.Contains(label, ".")
}
