// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"io"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
)

// Signature schemes carried by CertificateVerify.
const (
	schemeECDSAP256SHA256 uint16 = 0x0403
	schemeECDSAP384SHA384 uint16 = 0x0503
	schemeECDSAP521SHA512 uint16 = 0x0603
	schemeRSAPSSSHA256    uint16 = 0x0804
	schemeEd25519         uint16 = 0x0807
)

var supportedSchemes = []uint16{
	schemeEd25519,
	schemeECDSAP256SHA256,
	schemeECDSAP384SHA384,
	schemeECDSAP521SHA512,
	schemeRSAPSSSHA256,
}

const (
	serverSignatureContext = "SC server CertificateVerify"
	clientSignatureContext = "SC client CertificateVerify"
)

// schemeFor returns the scheme and prehash used with pub. Ed25519 signs the
// content itself and reports a zero hash.
func schemeFor(pub crypto.PublicKey) (uint16, crypto.Hash, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return schemeEd25519, 0, nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return schemeECDSAP256SHA256, crypto.SHA256, nil
		case elliptic.P384():
			return schemeECDSAP384SHA384, crypto.SHA384, nil
		case elliptic.P521():
			return schemeECDSAP521SHA512, crypto.SHA512, nil
		}
	case *rsa.PublicKey:
		return schemeRSAPSSSHA256, crypto.SHA256, nil
	}
	return 0, 0, fmt.Errorf("%w: %T", x509certs.ErrUnsupportedKey, pub)
}

// signedContent is the message covered by a CertificateVerify signature.
func signedContent(context string, transcriptSum []byte) []byte {
	content := bytes.Repeat([]byte{0x20}, 64)
	content = append(content, context...)
	content = append(content, 0)
	return append(content, transcriptSum...)
}

func digest(h crypto.Hash, content []byte) []byte {
	if h == 0 {
		return content
	}
	d := h.New()
	d.Write(content)
	return d.Sum(nil)
}

func signerOpts(scheme uint16, h crypto.Hash) crypto.SignerOpts {
	if scheme == schemeRSAPSSSHA256 {
		return &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h}
	}
	return h
}

// signTranscript produces a CertificateVerify message with key.
func signTranscript(key *x509certs.KeyMaterial, rand io.Reader, context string, transcriptSum []byte) (*certificateVerifyMsg, error) {
	scheme, h, err := schemeFor(key.Public())
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(rand, digest(h, signedContent(context, transcriptSum)), signerOpts(scheme, h))
	if err != nil {
		return nil, fmt.Errorf("failed to sign transcript: %w", err)
	}
	return &certificateVerifyMsg{signatureScheme: scheme, signature: sig}, nil
}

// verifyTranscript checks a CertificateVerify message against the peer's public key.
func verifyTranscript(pub crypto.PublicKey, msg *certificateVerifyMsg, context string, transcriptSum []byte) error {
	scheme, h, err := schemeFor(pub)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureFailure, err)
	}
	if msg.signatureScheme != scheme {
		return fmt.Errorf("%w: scheme 0x%04x does not match the certificate key", ErrSignatureFailure, msg.signatureScheme)
	}

	d := digest(h, signedContent(context, transcriptSum))
	ok := false
	switch k := pub.(type) {
	case ed25519.PublicKey:
		ok = ed25519.Verify(k, d, msg.signature)
	case *ecdsa.PublicKey:
		ok = ecdsa.VerifyASN1(k, d, msg.signature)
	case *rsa.PublicKey:
		ok = rsa.VerifyPSS(k, h, d, msg.signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}) == nil
	}
	if !ok {
		return ErrSignatureFailure
	}
	return nil
}
