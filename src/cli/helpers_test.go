// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
)

const (
	version    = "1.3.3.7-testing"
	passphrase = "correct horse battery staple"
)

// pkiFiles names the PEM files written by writePKI.
type pkiFiles struct {
	dir          string
	root         string
	otherRoot    string
	serverCert   string
	serverKey    string
	clientCert   string
	clientKey    string
	encryptedKey string
}

// writePKI issues a root, a server leaf for localhost and a client leaf, and
// stores them in a temporary directory.
func writePKI(t *testing.T) pkiFiles {
	t.Helper()

	dir := t.TempDir()
	codec := x509certs.New()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}
	writeKey := func(name string, key *x509certs.KeyMaterial, pass []byte) string {
		data, err := x509certs.EncodeKeyPEM(key, pass)
		require.NoError(t, err)
		return write(name, data)
	}

	newRoot := func(cn string) (*x509.Certificate, *x509certs.KeyMaterial) {
		key, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
		require.NoError(t, err)
		t.Cleanup(key.Release)
		cert, err := x509certs.SelfSign(&x509.Certificate{
			Subject:               pkix.Name{CommonName: cn},
			NotBefore:             time.Now().Add(-time.Hour),
			NotAfter:              time.Now().Add(48 * time.Hour),
			IsCA:                  true,
			BasicConstraintsValid: true,
			KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		}, key)
		require.NoError(t, err)
		return cert, key
	}
	issue := func(cn string, usage x509.ExtKeyUsage, root *x509.Certificate, rootKey *x509certs.KeyMaterial) (*x509.Certificate, *x509certs.KeyMaterial) {
		key, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
		require.NoError(t, err)
		t.Cleanup(key.Release)
		cert, err := x509certs.Issue(&x509.Certificate{
			Subject:     pkix.Name{CommonName: cn},
			DNSNames:    []string{cn},
			IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1)},
			NotBefore:   time.Now().Add(-time.Hour),
			NotAfter:    time.Now().Add(12 * time.Hour),
			KeyUsage:    x509.KeyUsageDigitalSignature,
			ExtKeyUsage: []x509.ExtKeyUsage{usage},
		}, key.Public(), root, rootKey)
		require.NoError(t, err)
		return cert, key
	}

	root, rootKey := newRoot("CLI Test Root")
	other, _ := newRoot("Unrelated Root")
	server, serverKey := issue("localhost", x509.ExtKeyUsageServerAuth, root, rootKey)
	client, clientKey := issue("cli-client", x509.ExtKeyUsageClientAuth, root, rootKey)

	return pkiFiles{
		dir:          dir,
		root:         write("root.pem", codec.EncodePEM(root)),
		otherRoot:    write("other-root.pem", codec.EncodePEM(other)),
		serverCert:   write("server.pem", codec.EncodePEM(server)),
		serverKey:    writeKey("server-key.pem", serverKey, nil),
		clientCert:   write("client.pem", codec.EncodePEM(client)),
		clientKey:    writeKey("client-key.pem", clientKey, nil),
		encryptedKey: writeKey("client-key.enc.pem", clientKey, []byte(passphrase)),
	}
}

// writeSession stores a YAML session file in the PKI directory.
func (p pkiFiles) writeSession(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(p.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
