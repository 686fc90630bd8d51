// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import "errors"

// Verdict failure kinds. Every rejected [Verdict] carries exactly one of these.
var (
	// ErrEmptyChain indicates that no certificates were supplied.
	ErrEmptyChain = errors.New("x509chain: empty certificate chain")

	// ErrNoTrustAnchors indicates evaluation without any trust anchor.
	ErrNoTrustAnchors = errors.New("x509chain: no trust anchors configured")

	// ErrSignature indicates a certificate whose signature does not verify under its issuer's key.
	ErrSignature = errors.New("x509chain: invalid certificate signature")

	// ErrUnknownAuthority indicates that the chain does not lead to a trust anchor.
	ErrUnknownAuthority = errors.New("x509chain: certificate signed by unknown authority")

	// ErrExpired indicates a certificate whose validity interval ended before the evaluation time.
	ErrExpired = errors.New("x509chain: certificate has expired")

	// ErrNotYetValid indicates a certificate whose validity interval starts after the evaluation time.
	ErrNotYetValid = errors.New("x509chain: certificate is not yet valid")

	// ErrInvalidBasicConstraints indicates an issuing certificate that is not a CA or may not sign certificates.
	ErrInvalidBasicConstraints = errors.New("x509chain: invalid basic constraints")

	// ErrPathLengthExceeded indicates a violated path length constraint.
	ErrPathLengthExceeded = errors.New("x509chain: path length constraint exceeded")

	// ErrInvalidKeyUsage indicates a leaf whose extended key usage does not allow the requested purpose.
	ErrInvalidKeyUsage = errors.New("x509chain: certificate not valid for the requested usage")

	// ErrRevoked indicates a certificate reported revoked by the revocation policy.
	ErrRevoked = errors.New("x509chain: certificate has been revoked")

	// ErrRevocationUnknown indicates an undetermined revocation status under a strict policy.
	ErrRevocationUnknown = errors.New("x509chain: revocation status unknown")

	// ErrIdentityMismatch indicates that the leaf does not cover the requested identity.
	ErrIdentityMismatch = errors.New("x509chain: certificate does not match identity")
)
