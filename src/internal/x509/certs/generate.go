// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"
)

// KeyAlgorithm enumerates the key types [GenerateKey] can create.
type KeyAlgorithm int

const (
	KeyECDSAP256 KeyAlgorithm = iota
	KeyECDSAP384
	KeyEd25519
	KeyRSA2048
	KeyRSA3072
)

// String returns the algorithm name used by the CLI.
func (a KeyAlgorithm) String() string {
	switch a {
	case KeyECDSAP256:
		return "ecdsa-p256"
	case KeyECDSAP384:
		return "ecdsa-p384"
	case KeyEd25519:
		return "ed25519"
	case KeyRSA2048:
		return "rsa-2048"
	case KeyRSA3072:
		return "rsa-3072"
	default:
		return fmt.Sprintf("KeyAlgorithm(%d)", int(a))
	}
}

// ParseKeyAlgorithm maps a name produced by [KeyAlgorithm.String] back to its value.
func ParseKeyAlgorithm(name string) (KeyAlgorithm, error) {
	for _, a := range []KeyAlgorithm{KeyECDSAP256, KeyECDSAP384, KeyEd25519, KeyRSA2048, KeyRSA3072} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedKey, name)
}

// GenerateKey creates fresh exportable key material.
func GenerateKey(alg KeyAlgorithm) (*KeyMaterial, error) {
	var (
		signer crypto.Signer
		err    error
	)

	switch alg {
	case KeyECDSAP256:
		signer, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyECDSAP384:
		signer, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case KeyEd25519:
		_, priv, gerr := ed25519.GenerateKey(rand.Reader)
		signer, err = priv, gerr
	case KeyRSA2048:
		signer, err = rsa.GenerateKey(rand.Reader, 2048)
	case KeyRSA3072:
		signer, err = rsa.GenerateKey(rand.Reader, 3072)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg, err)
	}

	return NewKeyMaterial(signer, true)
}

// randomSerial returns a positive 128-bit serial number.
func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, err
	}
	return serial.Add(serial, big.NewInt(1)), nil
}

// SelfSign creates a self-signed certificate for key from template.
// A zero SerialNumber in the template is replaced by a random one.
func SelfSign(template *x509.Certificate, key *KeyMaterial) (*x509.Certificate, error) {
	return Issue(template, key.Public(), nil, key)
}

// Issue signs a certificate for subjectPub using issuer and issuerKey.
// When issuer is nil the certificate is self-issued from template.
//
// Parameters:
//   - template: Certificate fields to encode
//   - subjectPub: Public key to certify
//   - issuer: Issuing certificate, or nil for self-signed
//   - issuerKey: Private key matching issuer (or subjectPub when self-signed)
//
// Returns:
//   - *x509.Certificate: The parsed certificate
//   - error: Error if signing or parsing fails
func Issue(template *x509.Certificate, subjectPub crypto.PublicKey, issuer *x509.Certificate, issuerKey *KeyMaterial) (*x509.Certificate, error) {
	tmpl := *template
	if tmpl.SerialNumber == nil || tmpl.SerialNumber.Sign() == 0 {
		serial, err := randomSerial()
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial number: %w", err)
		}
		tmpl.SerialNumber = serial
	}

	parent := issuer
	if parent == nil {
		parent = &tmpl
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, parent, subjectPub, issuerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return parseDER(der)
}
