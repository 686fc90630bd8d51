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
	"net/http"
	"time"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/gc"
	"golang.org/x/crypto/ocsp"
)

// OCSPChecker queries the OCSP responders named in each certificate.
//
// Responses must be signed by the issuer (or a responder it delegated to)
// and not past their NextUpdate.
type OCSPChecker struct {
	HTTPConfig *HTTPConfig

	now func() time.Time
}

// NewOCSPChecker creates a checker using config for HTTP requests.
func NewOCSPChecker(config *HTTPConfig) *OCSPChecker {
	return &OCSPChecker{HTTPConfig: config, now: time.Now}
}

// Check implements [RevocationChecker].
func (o *OCSPChecker) Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	if len(cert.OCSPServer) == 0 {
		return RevocationUnknown, nil
	}

	reqData, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return RevocationUnknown, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	var lastErr error
	for _, server := range cert.OCSPServer {
		status, err := o.query(ctx, server, reqData, cert, issuer)
		if err == nil {
			return status, nil
		}
		lastErr = err
	}
	return RevocationUnknown, lastErr
}

func (o *OCSPChecker) query(ctx context.Context, server string, reqData []byte, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	// Make HTTP POST request to OCSP server (RFC 6960, appendix A)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, bytes.NewReader(reqData))
	if err != nil {
		return RevocationUnknown, fmt.Errorf("failed to create OCSP HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")
	req.Header.Set("User-Agent", o.HTTPConfig.GetUserAgent())

	resp, err := o.HTTPConfig.Client().Do(req)
	if err != nil {
		return RevocationUnknown, fmt.Errorf("OCSP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RevocationUnknown, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}

	buf := gc.Default.Get()
	defer func() {
		buf.Reset()
		gc.Default.Put(buf)
	}()

	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return RevocationUnknown, fmt.Errorf("failed to read OCSP response: %w", err)
	}

	parsed, err := ocsp.ParseResponseForCert(buf.Bytes(), cert, issuer)
	if err != nil {
		return RevocationUnknown, fmt.Errorf("failed to parse OCSP response: %w", err)
	}
	if !parsed.NextUpdate.IsZero() && clock(o.now).After(parsed.NextUpdate) {
		return RevocationUnknown, fmt.Errorf("OCSP response from %s is stale", server)
	}

	switch parsed.Status {
	case ocsp.Good:
		return NotRevoked, nil
	case ocsp.Revoked:
		return Revoked, nil
	default:
		return RevocationUnknown, nil
	}
}
