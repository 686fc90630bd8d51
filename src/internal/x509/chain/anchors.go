// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"crypto/x509"
	"fmt"
)

// AnchorSet is an immutable set of trust anchors indexed by subject.
//
// A certificate is considered present in the set when it is byte-identical to
// an anchor or carries the same subject and public key (a re-issued root). In
// the latter case evaluation continues with the stored anchor, never with the
// presented copy.
//
// Thread Safety: Safe for concurrent use once constructed.
type AnchorSet struct {
	certs     []*x509.Certificate
	bySubject map[string][]*x509.Certificate
}

// NewAnchorSet builds an anchor set from certs.
//
// Nil entries are ignored; duplicates are stored once.
//
// Returns:
//   - *AnchorSet: The new set
//   - error: [ErrNoTrustAnchors] when no certificate remains
func NewAnchorSet(certs ...*x509.Certificate) (*AnchorSet, error) {
	set := &AnchorSet{bySubject: make(map[string][]*x509.Certificate)}
	for _, cert := range certs {
		if cert == nil || set.Contains(cert) {
			continue
		}
		set.certs = append(set.certs, cert)
		set.bySubject[string(cert.RawSubject)] = append(set.bySubject[string(cert.RawSubject)], cert)
	}
	if len(set.certs) == 0 {
		return nil, fmt.Errorf("%w: anchor set is empty", ErrNoTrustAnchors)
	}
	return set, nil
}

// Len returns the number of anchors.
func (a *AnchorSet) Len() int {
	if a == nil {
		return 0
	}
	return len(a.certs)
}

// Certificates returns a copy of the anchors in insertion order.
func (a *AnchorSet) Certificates() []*x509.Certificate {
	if a == nil {
		return nil
	}
	return append([]*x509.Certificate(nil), a.certs...)
}

// Contains reports whether cert is one of the anchors.
func (a *AnchorSet) Contains(cert *x509.Certificate) bool {
	return a.match(cert) != nil
}

// match returns the stored anchor that cert stands for, or nil. Callers must
// use the returned certificate rather than cert: a presented copy only shares
// the anchor's subject and key, and its other fields are unauthenticated.
func (a *AnchorSet) match(cert *x509.Certificate) *x509.Certificate {
	if a == nil || cert == nil {
		return nil
	}
	for _, anchor := range a.bySubject[string(cert.RawSubject)] {
		if bytes.Equal(anchor.Raw, cert.Raw) ||
			bytes.Equal(anchor.RawSubjectPublicKeyInfo, cert.RawSubjectPublicKeyInfo) {
			return anchor
		}
	}
	return nil
}

// issuersOf returns the anchors whose subject equals the issuer of cert.
func (a *AnchorSet) issuersOf(cert *x509.Certificate) []*x509.Certificate {
	return a.bySubject[string(cert.RawIssuer)]
}
