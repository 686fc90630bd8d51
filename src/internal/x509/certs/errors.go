// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is the parent of every malformed-encoding failure reported by this package.
	ErrParse = errors.New("x509certs: malformed encoding")

	// ErrInvalidPEMBlock indicates that the provided data does not contain a valid PEM block.
	ErrInvalidPEMBlock = fmt.Errorf("%w: invalid PEM block", ErrParse)

	// ErrInvalidBlockType indicates that the PEM block type is not the expected type.
	ErrInvalidBlockType = fmt.Errorf("%w: invalid block type", ErrParse)

	// ErrParseCertificate indicates a failure to parse the certificate from the provided data.
	ErrParseCertificate = fmt.Errorf("%w: failed to parse certificate", ErrParse)

	// ErrParsePKCS7 indicates a failure to parse PKCS7 formatted data.
	ErrParsePKCS7 = fmt.Errorf("%w: failed to parse PKCS7 data", ErrParse)

	// ErrNoCertificatesInPKCS indicates that no certificates were found in the PKCS7 data.
	ErrNoCertificatesInPKCS = fmt.Errorf("%w: no certificates found in PKCS7 data", ErrParse)

	// ErrUnsupportedAlgorithm indicates a certificate signed with an unrecognized signature algorithm.
	ErrUnsupportedAlgorithm = fmt.Errorf("%w: unrecognized signature algorithm", ErrParse)

	// ErrParseKey indicates a failure to parse key material.
	ErrParseKey = fmt.Errorf("%w: failed to parse key", ErrParse)

	// ErrDecryption is the parent of every passphrase related failure.
	ErrDecryption = errors.New("x509certs: decryption failed")

	// ErrPassphraseRequired indicates encrypted key material was supplied without a passphrase.
	ErrPassphraseRequired = fmt.Errorf("%w: passphrase required", ErrDecryption)

	// ErrIncorrectPassphrase indicates the passphrase did not decrypt the key material.
	ErrIncorrectPassphrase = fmt.Errorf("%w: incorrect passphrase", ErrDecryption)

	// ErrKeyDestroyed is returned by operations on zeroized key material.
	ErrKeyDestroyed = errors.New("x509certs: key material destroyed")

	// ErrNotExportable is returned when encoding private key material marked non-exportable.
	ErrNotExportable = errors.New("x509certs: key material is not exportable")

	// ErrUnsupportedKey is returned for key types this package cannot handle.
	ErrUnsupportedKey = errors.New("x509certs: unsupported key type")

	// ErrNotFound is returned by [Store] lookups for unknown names.
	ErrNotFound = errors.New("x509certs: entry not found")
)
