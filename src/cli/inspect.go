// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
)

func (a *app) inspectCommand() *cobra.Command {
	var passphraseEnv string

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Describe the certificates or key stored in FILE",
		Long: `Describe the certificates or key stored in FILE.

FILE may hold PEM or DER certificates, a PKCS#7 bundle, or a private or
public key (PKCS#1, SEC 1, PKCS#8, encrypted PKCS#8 or PKIX).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return ErrInputFileRequired
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			if certs, err := x509certs.New().DecodeMultiple(data); err == nil && len(certs) > 0 {
				writeCertificates(cmd.OutOrStdout(), certs)
				return nil
			}

			passphrase := passphraseFromEnv(passphraseEnv)
			defer memguard.WipeBytes(passphrase)
			defer memguard.WipeBytes(data)

			key, err := x509certs.ParseKey(data, passphrase)
			if err != nil {
				return fmt.Errorf("%s holds neither certificates nor a key: %w", args[0], err)
			}
			defer key.Release()

			fmt.Fprintf(cmd.OutOrStdout(), "Key: %s\nExportable: %t\n", key, key.Exportable())
			return nil
		},
	}

	cmd.Flags().StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the key passphrase")
	return cmd
}

// writeCertificates prints one block per certificate.
func writeCertificates(w io.Writer, certs []*x509.Certificate) {
	for i, cert := range certs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Certificate %d\n", i)
		fmt.Fprintf(w, "  Subject:    %s\n", cert.Subject)
		fmt.Fprintf(w, "  Issuer:     %s\n", cert.Issuer)
		fmt.Fprintf(w, "  Serial:     %s\n", cert.SerialNumber)
		fmt.Fprintf(w, "  Not Before: %s\n", cert.NotBefore.UTC().Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "  Not After:  %s\n", cert.NotAfter.UTC().Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "  Key:        %s\n", publicKeyDescription(cert))
		fmt.Fprintf(w, "  CA:         %t\n", cert.IsCA)

		var names []string
		names = append(names, cert.DNSNames...)
		for _, ip := range cert.IPAddresses {
			names = append(names, ip.String())
		}
		if len(names) > 0 {
			fmt.Fprintf(w, "  SANs:       %s\n", strings.Join(names, ", "))
		}
	}
}

func publicKeyDescription(cert *x509.Certificate) string {
	key, err := x509certs.NewPublicKeyMaterial(cert.PublicKey)
	if err != nil {
		return cert.PublicKeyAlgorithm.String()
	}
	defer key.Release()
	return key.String()
}
