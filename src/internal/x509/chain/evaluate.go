// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"slices"
	"time"
)

// Status is the outcome of a chain evaluation.
type Status int

const (
	// StatusRejected is the zero value so an unset verdict never reads as trusted.
	StatusRejected Status = iota
	StatusTrusted
)

// String returns "trusted" or "rejected".
func (s Status) String() string {
	if s == StatusTrusted {
		return "trusted"
	}
	return "rejected"
}

// EvaluateOptions holds the inputs of [Evaluate] besides the chain itself.
type EvaluateOptions struct {
	// Anchors is the set of trust anchors. Required.
	Anchors *AnchorSet

	// Now is the evaluation time. The zero value means time.Now().
	Now time.Time

	// Revocation is consulted for every non-anchor certificate when set.
	Revocation *RevocationPolicy

	// Identity is a DNS name or IP address the leaf must cover. Empty skips the check.
	Identity string

	// KeyUsages lists acceptable extended key usages for the leaf. Empty skips the check.
	KeyUsages []x509.ExtKeyUsage
}

// Verdict is the all-or-nothing result of [Evaluate].
//
// A trusted verdict carries the verified path from leaf to anchor. A rejected
// verdict carries the failure in Err (matching one of the package sentinels
// with [errors.Is]) and Depth, the index of the offending certificate in the
// supplied chain or path, or -1 when the failure concerns no single certificate.
type Verdict struct {
	Status Status
	Err    error
	Depth  int
	Path   []*x509.Certificate
}

// Trusted reports whether the chain was accepted.
func (v Verdict) Trusted() bool {
	return v.Status == StatusTrusted && v.Err == nil
}

// String returns a one-line description of the verdict.
func (v Verdict) String() string {
	if v.Trusted() {
		return fmt.Sprintf("trusted (path length %d)", len(v.Path))
	}
	if v.Err == nil {
		return "rejected"
	}
	return fmt.Sprintf("rejected: %v", v.Err)
}

func reject(kind error, depth int, cert *x509.Certificate, detail string) Verdict {
	err := kind
	switch {
	case cert != nil && detail != "":
		err = fmt.Errorf("%w: %s: %s", kind, describe(cert), detail)
	case cert != nil:
		err = fmt.Errorf("%w: %s", kind, describe(cert))
	case detail != "":
		err = fmt.Errorf("%w: %s", kind, detail)
	}
	return Verdict{Status: StatusRejected, Err: err, Depth: depth}
}

// describe names a certificate for error messages.
func describe(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return fmt.Sprintf("%q", cert.Subject.CommonName)
	}
	return fmt.Sprintf("%q", cert.Subject.String())
}

// Evaluate validates chain (leaf first) against the options and returns a verdict.
//
// The checks run in this order and the first failure is reported:
//  1. path building to a trust anchor with signature verification
//  2. validity interval of every certificate on the path, the anchor included
//  3. basic constraints, key usage and path length of every issuer
//  4. extended key usage of the leaf, when requested
//  5. revocation of every non-anchor certificate, when a policy is set
//  6. identity match against the leaf's subject alternative names
//
// Evaluate has no side effects beyond the revocation checker it is handed and
// is safe for concurrent use.
func Evaluate(ctx context.Context, chain []*x509.Certificate, opts EvaluateOptions) Verdict {
	if len(chain) == 0 {
		return reject(ErrEmptyChain, -1, nil, "")
	}
	if opts.Anchors.Len() == 0 {
		return reject(ErrNoTrustAnchors, -1, nil, "")
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	path, v := buildPath(chain, opts.Anchors)
	if path == nil {
		return v
	}

	for i, cert := range path {
		if now.Before(cert.NotBefore) {
			return reject(ErrNotYetValid, i, cert, "valid from "+cert.NotBefore.UTC().Format(time.RFC3339))
		}
		if now.After(cert.NotAfter) {
			return reject(ErrExpired, i, cert, "expired at "+cert.NotAfter.UTC().Format(time.RFC3339))
		}
	}

	if v := checkConstraints(path); !v.Trusted() {
		return v
	}

	if len(opts.KeyUsages) > 0 && !allowsUsage(path[0], opts.KeyUsages) {
		return reject(ErrInvalidKeyUsage, 0, path[0], "")
	}

	if opts.Revocation != nil {
		if v := opts.Revocation.evaluate(ctx, path); !v.Trusted() {
			return v
		}
	}

	if opts.Identity != "" {
		if err := VerifyIdentity(path[0], opts.Identity); err != nil {
			return Verdict{Status: StatusRejected, Err: err, Depth: 0}
		}
	}

	return Verdict{Status: StatusTrusted, Depth: len(path) - 1, Path: path}
}

// buildPath walks chain until it reaches a certificate in anchors, checking
// issuer names and signatures on the way. The path always ends in the stored
// anchor, even when the chain carried its own copy of it. When the chain ends
// before an anchor, the anchor is looked up by the last certificate's issuer.
//
// ErrSignature is reserved for two presented certificates that do not chain;
// an anchor that fails to verify the last certificate yields ErrUnknownAuthority.
//
// On failure it returns a nil path and the rejecting verdict.
func buildPath(chain []*x509.Certificate, anchors *AnchorSet) ([]*x509.Certificate, Verdict) {
	path := make([]*x509.Certificate, 0, len(chain)+1)

	for i, cert := range chain {
		if cert == nil {
			return nil, reject(ErrEmptyChain, i, nil, fmt.Sprintf("nil certificate at depth %d", i))
		}
		if anchor := anchors.match(cert); anchor != nil {
			return append(path, anchor), Verdict{Status: StatusTrusted}
		}
		path = append(path, cert)

		if i+1 < len(chain) && chain[i+1] != nil {
			next := chain[i+1]
			if !bytes.Equal(cert.RawIssuer, next.RawSubject) {
				return nil, reject(ErrUnknownAuthority, i, cert, "issuer does not match next certificate")
			}
			if err := next.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
				return nil, reject(ErrSignature, i, cert, err.Error())
			}
			continue
		}

		candidates := anchors.issuersOf(cert)
		if len(candidates) == 0 {
			return nil, reject(ErrUnknownAuthority, i, cert, "")
		}
		for _, anchor := range candidates {
			if anchor.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil {
				return append(path, anchor), Verdict{Status: StatusTrusted}
			}
		}
		// A namesake anchor whose key does not verify cert is not its issuer.
		return nil, reject(ErrUnknownAuthority, i, cert, "no anchor key verifies the signature")
	}

	// Unreachable: the loop returns on the last element.
	return nil, reject(ErrUnknownAuthority, len(chain)-1, nil, "")
}

// checkConstraints validates every issuer on path.
//
// Issuers must be CAs allowed to sign certificates. The anchor is exempt from
// the CA flag only when it predates basic constraints (no extension present).
// An issuer at path index i has i-1 intermediates below it, which must not
// exceed its MaxPathLen.
func checkConstraints(path []*x509.Certificate) Verdict {
	last := len(path) - 1
	for i := 1; i <= last; i++ {
		issuer := path[i]

		legacyAnchor := i == last && !issuer.BasicConstraintsValid
		if !legacyAnchor && (!issuer.BasicConstraintsValid || !issuer.IsCA) {
			return reject(ErrInvalidBasicConstraints, i, issuer, "issuer is not a CA")
		}
		if issuer.KeyUsage != 0 && issuer.KeyUsage&x509.KeyUsageCertSign == 0 {
			return reject(ErrInvalidBasicConstraints, i, issuer, "key usage does not permit certificate signing")
		}
		if issuer.MaxPathLen > 0 || (issuer.MaxPathLen == 0 && issuer.MaxPathLenZero) {
			if below := i - 1; below > issuer.MaxPathLen {
				return reject(ErrPathLengthExceeded, i, issuer,
					fmt.Sprintf("%d intermediates below an issuer limited to %d", below, issuer.MaxPathLen))
			}
		}
	}
	return Verdict{Status: StatusTrusted}
}

// allowsUsage reports whether leaf permits one of the wanted extended key usages.
// A leaf without an extended key usage extension is unrestricted.
func allowsUsage(leaf *x509.Certificate, wanted []x509.ExtKeyUsage) bool {
	if len(leaf.ExtKeyUsage) == 0 && len(leaf.UnknownExtKeyUsage) == 0 {
		return true
	}
	if slices.Contains(leaf.ExtKeyUsage, x509.ExtKeyUsageAny) {
		return true
	}
	for _, usage := range wanted {
		if usage == x509.ExtKeyUsageAny || slices.Contains(leaf.ExtKeyUsage, usage) {
			return true
		}
	}
	return false
}
