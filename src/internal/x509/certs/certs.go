// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto/x509"
	"encoding/pem"

	"github.com/cloudflare/cfssl/crypto/pkcs7"
)

// PEM block types understood by the store.
const (
	PEMTypeCertificate         = "CERTIFICATE"
	PEMTypePKCS7               = "PKCS7"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypePublicKey           = "PUBLIC KEY"
	PEMTypeRSAPublicKey        = "RSA PUBLIC KEY"
)

// Certificate provides methods to decode and encode [X.509] certificates.
// It maintains internal configuration such as the certificate block type.
//
// [X.509]: https://en.wikipedia.org/wiki/X.509
type Certificate struct {
	certBlockType string
}

// New creates a new Certificate with default settings.
func New() *Certificate {
	return &Certificate{
		certBlockType: PEMTypeCertificate,
	}
}

// IsPEM checks if the data is in PEM format.
func (c *Certificate) IsPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}

// decodePEMBlock decodes a PEM block and checks its type.
func (c *Certificate) decodePEMBlock(data []byte) (*pem.Block, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMBlock
	}
	if block.Type != c.certBlockType && block.Type != PEMTypePKCS7 {
		return nil, ErrInvalidBlockType
	}
	return block, nil
}

// parseDER parses a single DER certificate and rejects unknown signature algorithms.
func parseDER(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, ErrParseCertificate
	}
	if cert.SignatureAlgorithm == x509.UnknownSignatureAlgorithm {
		return nil, ErrUnsupportedAlgorithm
	}
	return cert, nil
}

// parsePKCS7 extracts the certificates of a PKCS7 bundle using Cloudflare's library.
func parsePKCS7(der []byte) ([]*x509.Certificate, error) {
	p, err := pkcs7.ParsePKCS7(der)
	if err != nil {
		return nil, ErrParsePKCS7
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, ErrNoCertificatesInPKCS
	}
	for _, cert := range p.Content.SignedData.Certificates {
		if cert.SignatureAlgorithm == x509.UnknownSignatureAlgorithm {
			return nil, ErrUnsupportedAlgorithm
		}
	}
	return p.Content.SignedData.Certificates, nil
}

// DecodeMultiple decodes one or more certificates from data.
//
// PEM input may contain any number of CERTIFICATE or PKCS7 blocks. DER input
// may be a sequence of concatenated certificates or a PKCS7 bundle.
func (c *Certificate) DecodeMultiple(data []byte) ([]*x509.Certificate, error) {
	if c.IsPEM(data) {
		var certs []*x509.Certificate

		for len(data) > 0 {
			block, rest := pem.Decode(data)
			if block == nil {
				break
			}

			switch block.Type {
			case c.certBlockType:
				cert, err := parseDER(block.Bytes)
				if err != nil {
					return nil, err
				}
				certs = append(certs, cert)
			case PEMTypePKCS7:
				bundle, err := parsePKCS7(block.Bytes)
				if err != nil {
					return nil, err
				}
				certs = append(certs, bundle...)
			default:
				return nil, ErrInvalidBlockType
			}

			data = rest
		}

		return certs, nil
	}

	certs, err := x509.ParseCertificates(data)
	if err != nil {
		bundle, perr := parsePKCS7(data)
		if perr != nil {
			return nil, ErrParseCertificate
		}
		return bundle, nil
	}
	for _, cert := range certs {
		if cert.SignatureAlgorithm == x509.UnknownSignatureAlgorithm {
			return nil, ErrUnsupportedAlgorithm
		}
	}

	return certs, nil
}

// Decode decodes a single certificate from data.
//
// When data holds a PKCS7 bundle the first certificate of the bundle is returned.
func (c *Certificate) Decode(data []byte) (*x509.Certificate, error) {
	if c.IsPEM(data) {
		block, err := c.decodePEMBlock(data)
		if err != nil {
			return nil, err
		}

		data = block.Bytes
	}

	cert, err := parseDER(data)
	if err == nil {
		return cert, nil
	}
	if err == ErrUnsupportedAlgorithm {
		return nil, err
	}

	bundle, perr := parsePKCS7(data)
	if perr != nil {
		if perr == ErrParsePKCS7 {
			return nil, ErrParseCertificate
		}
		return nil, perr
	}

	return bundle[0], nil
}

// EncodePEM encodes a certificate to PEM format.
func (c *Certificate) EncodePEM(cert *x509.Certificate) []byte {
	block := pem.Block{
		Type:  c.certBlockType,
		Bytes: cert.Raw,
	}
	return pem.EncodeToMemory(&block)
}

// EncodeDER encodes a certificate to DER format.
func (c *Certificate) EncodeDER(cert *x509.Certificate) []byte { return cert.Raw }

// EncodeMultiplePEM encodes multiple certificates to PEM format.
func (c *Certificate) EncodeMultiplePEM(certs []*x509.Certificate) []byte {
	var data []byte

	for _, cert := range certs {
		data = append(data, c.EncodePEM(cert)...)
	}

	return data
}

// EncodeMultipleDER encodes multiple certificates to DER format.
func (c *Certificate) EncodeMultipleDER(certs []*x509.Certificate) []byte {
	var data []byte

	for _, cert := range certs {
		data = append(data, c.EncodeDER(cert)...)
	}

	return data
}
