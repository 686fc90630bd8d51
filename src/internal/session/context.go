// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session

import (
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"
	"sync"
	"time"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/logger"
)

// Config describes a [Context] to build. It is only read by [New].
type Config struct {
	// Versions lists the enabled protocol versions, most preferred first.
	Versions []Version

	// CipherSuites lists the enabled suites, most preferred first.
	CipherSuites []CipherSuite

	// VerifyMode selects how the peer's certificate chain is treated.
	VerifyMode VerifyMode

	// Key is the local key. New takes its own reference; the caller keeps
	// (and must still release) the one it passed in.
	Key *x509certs.KeyMaterial

	// Certificates is the local chain, leaf first. The leaf must match Key.
	Certificates []*x509.Certificate

	// Anchors is required unless VerifyMode is VerifyNone.
	Anchors *x509chain.AnchorSet

	// Revocation is consulted during peer evaluation when set.
	Revocation *x509chain.RevocationPolicy

	// ServerName is the identity a client expects the server's leaf to cover.
	ServerName string

	// Logger receives channel state transitions. Nil means silent.
	Logger logger.Logger

	// Time returns the current time for chain evaluation. Nil means time.Now.
	Time func() time.Time

	// Rand is the entropy source for handshakes. Nil means crypto/rand.
	Rand io.Reader
}

// Context is the validated, immutable configuration shared by secure channels.
//
// Context is safe for concurrent use by multiple goroutines.
type Context struct {
	versions     []Version
	cipherSuites []CipherSuite
	verifyMode   VerifyMode
	certificates []*x509.Certificate
	anchors      *x509chain.AnchorSet
	revocation   *x509chain.RevocationPolicy
	serverName   string
	logger       logger.Logger
	now          func() time.Time
	rand         io.Reader

	mu     sync.Mutex
	key    *x509certs.KeyMaterial
	closed bool
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
}

// New validates cfg and returns a Context holding a deep copy of it.
//
// Validation rules:
//   - at least one known version, without duplicates
//   - a non-empty suite list of known suites, without duplicates, each usable under some enabled version
//   - Key and Certificates are both present or both absent; the leaf must match Key
//   - any verify mode other than VerifyNone requires non-empty Anchors
//
// Every failure wraps [ErrConfiguration].
func New(cfg Config) (*Context, error) {
	if len(cfg.Versions) == 0 {
		return nil, configError("no protocol version enabled")
	}
	seenVersion := make(map[Version]bool, len(cfg.Versions))
	for _, v := range cfg.Versions {
		if !v.Known() {
			return nil, configError("unknown protocol version %s", v)
		}
		if seenVersion[v] {
			return nil, configError("duplicate protocol version %s", v)
		}
		seenVersion[v] = true
	}

	if len(cfg.CipherSuites) == 0 {
		return nil, configError("no cipher suite enabled")
	}
	seenSuite := make(map[CipherSuite]bool, len(cfg.CipherSuites))
	for _, s := range cfg.CipherSuites {
		if !s.Known() {
			return nil, configError("unknown cipher suite %s", s)
		}
		if seenSuite[s] {
			return nil, configError("duplicate cipher suite %s", s)
		}
		seenSuite[s] = true

		usable := false
		for _, v := range cfg.Versions {
			if s.SupportedBy(v) {
				usable = true
				break
			}
		}
		if !usable {
			return nil, configError("cipher suite %s is not usable by any enabled version", s)
		}
	}

	switch cfg.VerifyMode {
	case VerifyNone:
	case VerifyPeer, VerifyPeerFailIfNoCert:
		if cfg.Anchors.Len() == 0 {
			return nil, configError("verify mode %s requires trust anchors", cfg.VerifyMode)
		}
	default:
		return nil, configError("unknown verify mode %s", cfg.VerifyMode)
	}

	switch {
	case cfg.Key == nil && len(cfg.Certificates) > 0:
		return nil, configError("certificate chain without a key")
	case cfg.Key != nil && len(cfg.Certificates) == 0:
		return nil, configError("key without a certificate chain")
	case cfg.Key != nil:
		if cfg.Key.Destroyed() {
			return nil, configError("%v", x509certs.ErrKeyDestroyed)
		}
		if !cfg.Key.IsPrivate() {
			return nil, configError("key has no private component")
		}
		for i, cert := range cfg.Certificates {
			if cert == nil {
				return nil, configError("nil certificate at index %d", i)
			}
		}
		if !x509certs.MatchesCertificate(cfg.Certificates[0], cfg.Key) {
			return nil, configError("certificate %q does not match the key", cfg.Certificates[0].Subject.CommonName)
		}
	}

	c := &Context{
		versions:     append([]Version(nil), cfg.Versions...),
		cipherSuites: append([]CipherSuite(nil), cfg.CipherSuites...),
		verifyMode:   cfg.VerifyMode,
		certificates: append([]*x509.Certificate(nil), cfg.Certificates...),
		anchors:      cfg.Anchors,
		serverName:   cfg.ServerName,
		logger:       cfg.Logger,
		now:          cfg.Time,
		rand:         cfg.Rand,
	}
	if cfg.Revocation != nil {
		policy := *cfg.Revocation
		c.revocation = &policy
	}
	if c.logger == nil {
		c.logger = logger.Discard
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.rand == nil {
		c.rand = rand.Reader
	}
	if cfg.Key != nil {
		c.key = cfg.Key.Retain()
	}

	return c, nil
}

// Versions returns a copy of the enabled versions in preference order.
func (c *Context) Versions() []Version { return append([]Version(nil), c.versions...) }

// CipherSuites returns a copy of the enabled suites in preference order.
func (c *Context) CipherSuites() []CipherSuite {
	return append([]CipherSuite(nil), c.cipherSuites...)
}

// VerifyMode returns the peer verification mode.
func (c *Context) VerifyMode() VerifyMode { return c.verifyMode }

// Certificates returns a copy of the local chain, leaf first.
func (c *Context) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), c.certificates...)
}

// HasCertificate reports whether a local chain is configured.
func (c *Context) HasCertificate() bool { return len(c.certificates) > 0 }

// Anchors returns the trust anchors, which may be nil under VerifyNone.
func (c *Context) Anchors() *x509chain.AnchorSet { return c.anchors }

// ServerName returns the identity expected of a server.
func (c *Context) ServerName() string { return c.serverName }

// Logger returns the configured logger. It is never nil.
func (c *Context) Logger() logger.Logger { return c.logger }

// Now returns the current time according to the configured clock.
func (c *Context) Now() time.Time { return c.now() }

// Rand returns the handshake entropy source.
func (c *Context) Rand() io.Reader { return c.rand }

// EvaluateOptions returns the options a channel passes to the trust evaluator.
// identity is the name the peer's leaf must cover; usage is the extended key
// usage the peer's role requires.
func (c *Context) EvaluateOptions(identity string, usage x509.ExtKeyUsage) x509chain.EvaluateOptions {
	opts := x509chain.EvaluateOptions{
		Anchors:   c.anchors,
		Now:       c.now(),
		Identity:  identity,
		KeyUsages: []x509.ExtKeyUsage{usage},
	}
	if c.revocation != nil {
		policy := *c.revocation
		opts.Revocation = &policy
	}
	return opts
}

// AcquireKey returns a retained reference to the local key. The caller must
// Release it. A context without a key returns (nil, nil).
func (c *Context) AcquireKey() (*x509certs.KeyMaterial, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.key == nil {
		return nil, nil
	}
	return c.key.Retain(), nil
}

// Close drops the context's reference to the local key. Channels that
// acquired the key keep it alive until they finish. Close is idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.key != nil {
		c.key.Release()
		c.key = nil
	}
	return nil
}
