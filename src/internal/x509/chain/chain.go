// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/gc"
	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
)

// maxFetchDepth bounds AIA chasing so a looping issuer URL cannot run forever.
const maxFetchDepth = 10

// HTTPConfig holds HTTP client configuration for certificate operations
type HTTPConfig struct {
	Timeout   time.Duration // HTTP request timeout
	Version   string        // Application version for User-Agent
	UserAgent string        // Custom User-Agent string, if empty will be constructed from Version

	mu     sync.Mutex
	client *http.Client
}

// NewHTTPConfig creates a new HTTP configuration with default values.
//
// It initializes the configuration with a default timeout of 10 seconds
// and the provided application version.
//
// Parameters:
//   - version: Application version string
//
// Returns:
//   - *HTTPConfig: New HTTP configuration
func NewHTTPConfig(version string) *HTTPConfig {
	return &HTTPConfig{
		Timeout:   10 * time.Second,
		Version:   version,
		UserAgent: "",
	}
}

// GetUserAgent returns UserAgent, or a default built from Version.
func (c *HTTPConfig) GetUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return fmt.Sprintf("X509-Secure-Channel/%s (+https://github.com/H0llyW00dzZ/x509-secure-channel)", c.Version)
}

// Client returns a shared HTTP client, resynced to Timeout on every call.
func (c *HTTPConfig) Client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		c.client = &http.Client{Timeout: c.Timeout}
		return c.client
	}

	if c.client.Timeout != c.Timeout {
		c.client.Timeout = c.Timeout
	}

	return c.client
}

// Chain holds an ordered certificate chain (leaf first) and can complete it.
//
// It is the collecting side of trust evaluation: it resolves missing
// intermediates over AIA, appends the matching anchor and hands the result
// to [Evaluate].
type Chain struct {
	mu    sync.RWMutex
	Certs []*x509.Certificate
	*x509certs.Certificate
	HTTPConfig *HTTPConfig // HTTP client configuration
}

// New starts a chain at the leaf cert.
func New(cert *x509.Certificate, version string) *Chain {
	return &Chain{
		Certs:       []*x509.Certificate{cert},
		Certificate: x509certs.New(),
		HTTPConfig:  NewHTTPConfig(version),
	}
}

// NewFromCertificates creates a Chain from an already ordered slice.
func NewFromCertificates(certs []*x509.Certificate, version string) (*Chain, error) {
	if len(certs) == 0 {
		return nil, ErrEmptyChain
	}
	ch := New(certs[0], version)
	ch.Certs = append(ch.Certs, certs[1:]...)
	return ch, nil
}

// Snapshot returns a copy of the certificates.
//
// Thread Safety: Safe for concurrent use.
func (ch *Chain) Snapshot() []*x509.Certificate {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return append([]*x509.Certificate(nil), ch.Certs...)
}

// FetchCertificate completes the chain by following AIA issuer URLs.
//
// It iteratively fetches the issuing certificate using the AIA (Authority Information Access)
// extension URL until a self-signed certificate is reached or no further issuer can be found.
// Downloaded certificates must carry the subject named as issuer by their child.
// It uses buffer pooling for efficient download handling.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//
// Returns:
//   - error: Error if fetching or decoding fails
//
// Thread Safety: Safe for concurrent use.
func (ch *Chain) FetchCertificate(ctx context.Context) error {
	for range maxFetchDepth {
		ch.mu.RLock()
		last := ch.Certs[len(ch.Certs)-1]
		ch.mu.RUnlock()

		if len(last.IssuingCertificateURL) == 0 || ch.IsRootNode(last) {
			return nil
		}

		cert, err := ch.download(ctx, last.IssuingCertificateURL[0])
		if err != nil {
			return err
		}
		if err := last.CheckSignatureFrom(cert); err != nil {
			return fmt.Errorf("%w: downloaded issuer %s: %v", ErrSignature, describe(cert), err)
		}

		ch.mu.Lock()
		if current := ch.Certs[len(ch.Certs)-1]; current != last {
			ch.mu.Unlock()
			continue
		}
		ch.Certs = append(ch.Certs, cert)
		ch.mu.Unlock()
	}

	return fmt.Errorf("%w: issuer chain longer than %d", ErrUnknownAuthority, maxFetchDepth)
}

func (ch *Chain) download(ctx context.Context, url string) (*x509.Certificate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ch.HTTPConfig.GetUserAgent())

	resp, err := ch.HTTPConfig.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("issuer download from %s returned status %d", url, resp.StatusCode)
	}

	// Get a buffer from the pool
	buf := gc.Default.Get()
	defer func() {
		buf.Reset()
		gc.Default.Put(buf)
	}()

	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}

	data := append([]byte(nil), buf.Bytes()...)
	return ch.Certificate.Decode(data)
}

// AddAnchor appends the anchor that issued the last certificate, if any.
//
// Returns:
//   - bool: true when an anchor was appended or the chain already ends in one
//
// Thread Safety: Safe for concurrent use.
func (ch *Chain) AddAnchor(anchors *AnchorSet) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if anchors == nil {
		return false
	}
	last := ch.Certs[len(ch.Certs)-1]
	if anchors.Contains(last) {
		return true
	}
	for _, anchor := range anchors.issuersOf(last) {
		if last.CheckSignatureFrom(anchor) == nil {
			ch.Certs = append(ch.Certs, anchor)
			return true
		}
	}
	return false
}

// Evaluate runs [Evaluate] on the chain's certificates.
func (ch *Chain) Evaluate(ctx context.Context, opts EvaluateOptions) Verdict {
	return Evaluate(ctx, ch.Snapshot(), opts)
}

// IsSelfSigned reports whether cert's signature verifies under its own key.
func (ch *Chain) IsSelfSigned(cert *x509.Certificate) bool {
	return cert.CheckSignatureFrom(cert) == nil
}

// IsRootNode reports whether AIA chasing should stop at cert.
func (ch *Chain) IsRootNode(cert *x509.Certificate) bool {
	return ch.IsSelfSigned(cert)
}

// FilterIntermediates returns a copy of everything between the leaf and the
// last certificate, or nil when there is nothing in between.
func (ch *Chain) FilterIntermediates() []*x509.Certificate {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if len(ch.Certs) <= 2 {
		return nil
	}
	return append([]*x509.Certificate(nil), ch.Certs[1:len(ch.Certs)-1]...)
}
