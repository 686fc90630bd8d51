// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509certs provides specialized encoding and decoding operations for [X.509] certificates
// and the key material that goes with them.
// It supports multiple formats including [PEM], DER, and [PKCS7] for certificates, and
// PKCS#8 (plain or passphrase encrypted), PKCS#1, SEC1 and PKIX for keys.
//
// Key material is reference counted. Every holder calls [KeyMaterial.Retain] and
// [KeyMaterial.Release]; once the last reference is released the private components
// are zeroized and the key can no longer sign.
//
// All decoding is pure: malformed input yields an error wrapping [ErrParse] and never
// a partially populated value.
//
// [X.509]: https://grokipedia.com/page/X.509
// [PKCS7]: https://grokipedia.com/page/PKCS_7
// [PEM]: https://grokipedia.com/page/PEM#privacy-enhanced-mail
package x509certs
