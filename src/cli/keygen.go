// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
)

type keygenOptions struct {
	algorithm     string
	outDir        string
	ca            bool
	hosts         []string
	usage         string
	validFor      time.Duration
	issuerCert    string
	issuerKey     string
	issuerPassEnv string
	passphraseEnv string
}

// issuedUsages differs from the verify table for "any": an issued leaf gets
// both purposes instead of none.
var issuedUsages = map[string][]x509.ExtKeyUsage{
	"server": {x509.ExtKeyUsageServerAuth},
	"client": {x509.ExtKeyUsageClientAuth},
	"any":    {x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
}

func (a *app) keygenCommand() *cobra.Command {
	opts := &keygenOptions{}

	cmd := &cobra.Command{
		Use:   "keygen NAME",
		Short: "Generate a key and a certificate for use with serve and connect",
		Long: `Generate a key and a certificate named NAME.

Without --issuer-cert the certificate is self-signed; pass --ca to mint a
root for --anchors. With --issuer-cert and --issuer-key the certificate is
signed by that issuer. The files NAME.pem and NAME-key.pem are written to
--out-dir; the key is encrypted when --passphrase-env names a set variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeygen(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.algorithm, "algorithm", "a", x509certs.KeyECDSAP256.String(), "ecdsa-p256, ecdsa-p384, ed25519, rsa-2048 or rsa-3072")
	f.StringVarP(&opts.outDir, "out-dir", "o", ".", "directory for the generated files")
	f.BoolVar(&opts.ca, "ca", false, "mint a certificate authority")
	f.StringSliceVar(&opts.hosts, "host", nil, "DNS name or IP address to include as a SAN (repeatable)")
	f.StringVar(&opts.usage, "usage", "server", "leaf purpose: server, client or any")
	f.DurationVar(&opts.validFor, "valid-for", 365*24*time.Hour, "certificate lifetime")
	f.StringVar(&opts.issuerCert, "issuer-cert", "", "certificate of the issuing authority")
	f.StringVar(&opts.issuerKey, "issuer-key", "", "key of the issuing authority")
	f.StringVar(&opts.issuerPassEnv, "issuer-passphrase-env", "", "environment variable holding the issuer key passphrase")
	f.StringVar(&opts.passphraseEnv, "passphrase-env", "", "environment variable holding the passphrase for the new key")
	cmd.MarkFlagsRequiredTogether("issuer-cert", "issuer-key")
	return cmd
}

func (a *app) runKeygen(cmd *cobra.Command, name string, opts *keygenOptions) error {
	log, err := a.loggerFor(cmd)
	if err != nil {
		return err
	}

	alg, err := x509certs.ParseKeyAlgorithm(opts.algorithm)
	if err != nil {
		return err
	}
	extUsages, ok := issuedUsages[opts.usage]
	if !ok {
		return fmt.Errorf("unknown usage %q", opts.usage)
	}

	key, err := x509certs.GenerateKey(alg)
	if err != nil {
		return err
	}
	defer key.Release()

	now := time.Now()
	tmpl := &x509.Certificate{
		Subject:   pkix.Name{CommonName: name},
		NotBefore: now.Add(-5 * time.Minute),
		NotAfter:  now.Add(opts.validFor),
	}
	for _, h := range opts.hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	if opts.ca {
		tmpl.IsCA = true
		tmpl.BasicConstraintsValid = true
		tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
	} else {
		tmpl.KeyUsage = x509.KeyUsageDigitalSignature
		tmpl.ExtKeyUsage = extUsages
	}

	var chain []*x509.Certificate
	if opts.issuerCert == "" {
		cert, err := x509certs.SelfSign(tmpl, key)
		if err != nil {
			return err
		}
		chain = []*x509.Certificate{cert}
	} else {
		chain, err = issueFromFiles(tmpl, key, opts)
		if err != nil {
			return err
		}
	}

	passphrase := passphraseFromEnv(opts.passphraseEnv)
	defer memguard.WipeBytes(passphrase)
	keyPEM, err := x509certs.EncodeKeyPEM(key, passphrase)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(keyPEM)

	certPath := filepath.Join(opts.outDir, name+".pem")
	keyPath := filepath.Join(opts.outDir, name+"-key.pem")
	if err := os.WriteFile(certPath, x509certs.New().EncodeMultiplePEM(chain), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", certPath, err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", keyPath, err)
	}

	log.Printf("generated %s key, certificate %s (serial %s)", key, certPath, chain[0].SerialNumber)
	fmt.Fprintln(cmd.OutOrStdout(), certPath)
	fmt.Fprintln(cmd.OutOrStdout(), keyPath)
	return nil
}

// issueFromFiles signs tmpl with the issuer named in opts. The returned chain
// holds the new certificate followed by any non-root issuer certificates.
func issueFromFiles(tmpl *x509.Certificate, key *x509certs.KeyMaterial, opts *keygenOptions) ([]*x509.Certificate, error) {
	store := x509certs.NewStore()
	defer store.Close()

	if err := store.LoadChainFile("issuer", opts.issuerCert); err != nil {
		return nil, err
	}
	if err := store.LoadKeyFile("issuer", opts.issuerKey, passphraseFromEnv(opts.issuerPassEnv)); err != nil {
		return nil, err
	}

	issuerChain, err := store.Chain("issuer")
	if err != nil {
		return nil, err
	}
	issuerKey, err := store.Key("issuer")
	if err != nil {
		return nil, err
	}
	defer issuerKey.Release()

	if !x509certs.MatchesCertificate(issuerChain[0], issuerKey) {
		return nil, fmt.Errorf("%w: %s does not match %s", ErrIssuerKeyMismatch, opts.issuerKey, opts.issuerCert)
	}

	cert, err := x509certs.Issue(tmpl, key.Public(), issuerChain[0], issuerKey)
	if err != nil {
		return nil, err
	}

	chain := []*x509.Certificate{cert}
	for _, c := range issuerChain {
		if c.CheckSignatureFrom(c) != nil {
			chain = append(chain, c)
		}
	}
	return chain, nil
}
