// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/gc"
)

// RevocationStatus is the answer of a [RevocationChecker] for one certificate.
type RevocationStatus int

const (
	// RevocationUnknown is the zero value: no definitive answer.
	RevocationUnknown RevocationStatus = iota
	NotRevoked
	Revoked
)

// String returns "unknown", "good" or "revoked".
func (s RevocationStatus) String() string {
	switch s {
	case NotRevoked:
		return "good"
	case Revoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// RevocationChecker answers whether cert, issued by issuer, has been revoked.
//
// An error means the status could not be determined; callers treat it as
// [RevocationUnknown].
type RevocationChecker interface {
	Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error)
}

// RevocationPolicy configures revocation checking in [Evaluate].
type RevocationPolicy struct {
	Checker RevocationChecker
	// Strict rejects certificates whose status is unknown.
	Strict bool
}

func (p *RevocationPolicy) evaluate(ctx context.Context, path []*x509.Certificate) Verdict {
	if p.Checker == nil {
		if p.Strict {
			return reject(ErrRevocationUnknown, -1, nil, "no revocation checker configured")
		}
		return Verdict{Status: StatusTrusted}
	}

	// The last element is the anchor, which is trusted by fiat.
	for i := 0; i < len(path)-1; i++ {
		cert, issuer := path[i], path[i+1]

		status, err := p.Checker.Check(ctx, cert, issuer)
		if err != nil {
			status = RevocationUnknown
		}

		switch status {
		case Revoked:
			return reject(ErrRevoked, i, cert, "serial "+cert.SerialNumber.String())
		case RevocationUnknown:
			if p.Strict {
				detail := "no definitive answer"
				if err != nil {
					detail = err.Error()
				}
				return reject(ErrRevocationUnknown, i, cert, detail)
			}
		}
	}
	return Verdict{Status: StatusTrusted}
}

// StaticChecker answers from an in-memory list of revoked serial numbers.
//
// Certificates from issuers it has never been told about are reported unknown.
type StaticChecker struct {
	mu      sync.RWMutex
	revoked map[string]map[string]struct{} // issuer subject -> serials
}

// NewStaticChecker creates an empty checker.
func NewStaticChecker() *StaticChecker {
	return &StaticChecker{revoked: make(map[string]map[string]struct{})}
}

// Cover marks issuer as known so its non-revoked certificates are reported good.
func (s *StaticChecker) Cover(issuer *x509.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(issuer.RawSubject)
	if _, ok := s.revoked[key]; !ok {
		s.revoked[key] = make(map[string]struct{})
	}
}

// Revoke records serial as revoked by issuer. It implies [StaticChecker.Cover].
func (s *StaticChecker) Revoke(issuer *x509.Certificate, serial *big.Int) {
	s.Cover(issuer)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[string(issuer.RawSubject)][serial.String()] = struct{}{}
}

// Check implements [RevocationChecker].
func (s *StaticChecker) Check(_ context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	serials, ok := s.revoked[string(issuer.RawSubject)]
	if !ok {
		return RevocationUnknown, nil
	}
	if _, revoked := serials[cert.SerialNumber.String()]; revoked {
		return Revoked, nil
	}
	return NotRevoked, nil
}

// ChainChecker consults several checkers in order; the first definitive answer wins.
type ChainChecker []RevocationChecker

// Check implements [RevocationChecker].
func (cc ChainChecker) Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	var errs []error
	for _, checker := range cc {
		status, err := checker.Check(ctx, cert, issuer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if status != RevocationUnknown {
			return status, nil
		}
	}
	return RevocationUnknown, errors.Join(errs...)
}

// CRLChecker answers from the certificate revocation lists named in each
// certificate's CRL distribution points.
//
// Downloaded lists must be signed by the certificate's issuer and current;
// they are cached by URL until their NextUpdate.
type CRLChecker struct {
	HTTPConfig *HTTPConfig
	Cache      *CRLCache

	now func() time.Time
}

// NewCRLChecker creates a checker. A nil cache disables caching.
func NewCRLChecker(config *HTTPConfig, cache *CRLCache) *CRLChecker {
	return &CRLChecker{HTTPConfig: config, Cache: cache, now: time.Now}
}

// Check implements [RevocationChecker].
func (c *CRLChecker) Check(ctx context.Context, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	if len(cert.CRLDistributionPoints) == 0 {
		return RevocationUnknown, nil
	}

	var errs []error
	for _, url := range cert.CRLDistributionPoints {
		list, err := c.revocationList(ctx, url, issuer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, entry := range list.RevokedCertificateEntries {
			if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return Revoked, nil
			}
		}
		return NotRevoked, nil
	}
	return RevocationUnknown, errors.Join(errs...)
}

func (c *CRLChecker) revocationList(ctx context.Context, url string, issuer *x509.Certificate) (*x509.RevocationList, error) {
	if c.Cache != nil {
		if list, ok := c.Cache.Get(url); ok {
			if err := list.CheckSignatureFrom(issuer); err == nil {
				return list, nil
			}
		}
	}

	list, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := list.CheckSignatureFrom(issuer); err != nil {
		return nil, fmt.Errorf("CRL %s not signed by issuer: %w", url, err)
	}
	if !list.NextUpdate.IsZero() && clock(c.now).After(list.NextUpdate) {
		return nil, fmt.Errorf("CRL %s is stale (next update %s)", url, list.NextUpdate.UTC().Format(time.RFC3339))
	}

	if c.Cache != nil {
		c.Cache.Set(url, list)
	}
	return list, nil
}

func (c *CRLChecker) fetch(ctx context.Context, url string) (*x509.RevocationList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create CRL request: %w", err)
	}
	req.Header.Set("User-Agent", c.HTTPConfig.GetUserAgent())

	resp, err := c.HTTPConfig.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("CRL request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CRL server returned status %d", resp.StatusCode)
	}

	buf := gc.Default.Get()
	defer func() {
		buf.Reset()         // Reset the buffer to prevent data leaks
		gc.Default.Put(buf) // Return the buffer to the pool for reuse
	}()

	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read CRL: %w", err)
	}

	// ParseRevocationList keeps references into its input.
	data := append([]byte(nil), buf.Bytes()...)
	list, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	return list, nil
}

// clock returns now(), or the wall clock when now is nil.
func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// RevocationStatuses checks every non-root certificate of the chain and maps
// serial numbers to status strings for the renderers.
func (ch *Chain) RevocationStatuses(ctx context.Context, checker RevocationChecker) map[string]string {
	ch.mu.RLock()
	certs := append([]*x509.Certificate(nil), ch.Certs...)
	ch.mu.RUnlock()

	statuses := make(map[string]string, len(certs))
	for i := 0; i < len(certs)-1; i++ {
		status, err := checker.Check(ctx, certs[i], certs[i+1])
		if err != nil {
			status = RevocationUnknown
		}
		statuses[certs[i].SerialNumber.String()] = status.String()
	}
	return statuses
}
