// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

const version = "1.3.3.7-testing"

// issued is a certificate together with its key.
type issued struct {
	cert *x509.Certificate
	key  *x509certs.KeyMaterial
}

// testPKI is a three level hierarchy: root -> intermediate -> leaf.
type testPKI struct {
	root, inter, leaf issued
}

func caTemplate(name string) *x509.Certificate {
	return &x509.Certificate{
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
}

func leafTemplate(name string, dnsNames ...string) *x509.Certificate {
	return &x509.Certificate{
		Subject:     pkix.Name{CommonName: name},
		DNSNames:    dnsNames,
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(12 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
}

// issue signs template with parent, or self-signs it when parent is nil.
func issue(t testing.TB, template *x509.Certificate, parent *issued) issued {
	t.Helper()

	key, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
	require.NoError(t, err)
	t.Cleanup(key.Release)

	var cert *x509.Certificate
	if parent == nil {
		cert, err = x509certs.SelfSign(template, key)
	} else {
		cert, err = x509certs.Issue(template, key.Public(), parent.cert, parent.key)
	}
	require.NoError(t, err)
	return issued{cert: cert, key: key}
}

// newTestPKI builds a fresh hierarchy. The mutators, when non-nil, adjust the
// root, intermediate and leaf templates before signing.
func newTestPKI(t testing.TB, mutate ...func(root, inter, leaf *x509.Certificate)) *testPKI {
	t.Helper()

	rootTmpl := caTemplate("Test Root CA")
	interTmpl := caTemplate("Test Intermediate CA")
	leafTmpl := leafTemplate("server.example.com", "server.example.com", "*.api.example.com")
	for _, m := range mutate {
		m(rootTmpl, interTmpl, leafTmpl)
	}

	pki := &testPKI{}
	pki.root = issue(t, rootTmpl, nil)
	pki.inter = issue(t, interTmpl, &pki.root)
	pki.leaf = issue(t, leafTmpl, &pki.inter)
	return pki
}

func (p *testPKI) chain() []*x509.Certificate {
	return []*x509.Certificate{p.leaf.cert, p.inter.cert}
}

func (p *testPKI) anchors(t testing.TB) *x509chain.AnchorSet {
	t.Helper()
	set, err := x509chain.NewAnchorSet(p.root.cert)
	require.NoError(t, err)
	return set
}
