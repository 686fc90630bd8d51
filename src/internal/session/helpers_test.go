// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

// identity is a CA-issued leaf with its key and the root that issued it.
type identity struct {
	root    *x509.Certificate
	leaf    *x509.Certificate
	key     *x509certs.KeyMaterial
	rootKey *x509certs.KeyMaterial
}

func newIdentity(t *testing.T) *identity {
	t.Helper()

	rootKey, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
	require.NoError(t, err)
	root, err := x509certs.SelfSign(&x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Session Test Root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}, rootKey)
	require.NoError(t, err)

	key, err := x509certs.GenerateKey(x509certs.KeyEd25519)
	require.NoError(t, err)
	leaf, err := x509certs.Issue(&x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "server.example.com"},
		DNSNames:     []string{"server.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}, key.Public(), root, rootKey)
	require.NoError(t, err)

	t.Cleanup(func() {
		key.Release()
		rootKey.Release()
	})

	return &identity{root: root, leaf: leaf, key: key, rootKey: rootKey}
}

func (id *identity) anchors(t *testing.T) *x509chain.AnchorSet {
	t.Helper()
	anchors, err := x509chain.NewAnchorSet(id.root)
	require.NoError(t, err)
	return anchors
}

// writeFiles stores the identity as PEM files in dir. A non-empty passphrase encrypts the key.
func (id *identity) writeFiles(t *testing.T, dir string, passphrase []byte) {
	t.Helper()

	codec := x509certs.New()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.pem"), codec.EncodePEM(id.root), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.pem"), codec.EncodePEM(id.leaf), 0o600))

	keyPEM, err := x509certs.EncodeKeyPEM(id.key, passphrase)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.key"), keyPEM, 0o600))
}
