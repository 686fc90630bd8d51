// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session_test

import (
	"crypto/x509"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

func TestNew(t *testing.T) {
	id := newIdentity(t)
	anchors := id.anchors(t)

	valid := func() session.Config {
		return session.Config{
			Versions:     []session.Version{session.Version13, session.Version12},
			CipherSuites: []session.CipherSuite{session.AES128GCMSHA256, session.ChaCha20Poly1305SHA256},
			VerifyMode:   session.VerifyPeer,
			Key:          id.key,
			Certificates: []*x509.Certificate{id.leaf, id.root},
			Anchors:      anchors,
		}
	}

	otherKey, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
	require.NoError(t, err)
	defer otherKey.Release()

	pubOnly, err := x509certs.NewPublicKeyMaterial(id.key.Public())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(cfg *session.Config)
		errMsg string
	}{
		{name: "Valid", mutate: func(*session.Config) {}},
		{
			name:   "ClientWithoutIdentity",
			mutate: func(cfg *session.Config) { cfg.Key, cfg.Certificates = nil, nil },
		},
		{
			name:   "NoVersions",
			mutate: func(cfg *session.Config) { cfg.Versions = nil },
			errMsg: "no protocol version",
		},
		{
			name:   "UnknownVersion",
			mutate: func(cfg *session.Config) { cfg.Versions = []session.Version{0x0301} },
			errMsg: "unknown protocol version",
		},
		{
			name: "DuplicateVersion",
			mutate: func(cfg *session.Config) {
				cfg.Versions = []session.Version{session.Version13, session.Version13}
			},
			errMsg: "duplicate protocol version",
		},
		{
			name:   "NoSuites",
			mutate: func(cfg *session.Config) { cfg.CipherSuites = nil },
			errMsg: "no cipher suite",
		},
		{
			name:   "UnknownSuite",
			mutate: func(cfg *session.Config) { cfg.CipherSuites = []session.CipherSuite{0x00ff} },
			errMsg: "unknown cipher suite",
		},
		{
			name: "DuplicateSuite",
			mutate: func(cfg *session.Config) {
				cfg.CipherSuites = []session.CipherSuite{session.AES128GCMSHA256, session.AES128GCMSHA256}
			},
			errMsg: "duplicate cipher suite",
		},
		{
			name: "SuiteUnusableByVersions",
			mutate: func(cfg *session.Config) {
				cfg.Versions = []session.Version{session.Version13}
				cfg.CipherSuites = []session.CipherSuite{session.ECDHEAES128GCMSHA256}
			},
			errMsg: "not usable",
		},
		{
			name:   "VerifyWithoutAnchors",
			mutate: func(cfg *session.Config) { cfg.Anchors = nil },
			errMsg: "requires trust anchors",
		},
		{
			name: "VerifyNoneWithoutAnchors",
			mutate: func(cfg *session.Config) {
				cfg.VerifyMode = session.VerifyNone
				cfg.Anchors = nil
			},
		},
		{
			name:   "UnknownVerifyMode",
			mutate: func(cfg *session.Config) { cfg.VerifyMode = 42 },
			errMsg: "unknown verify mode",
		},
		{
			name:   "CertificateWithoutKey",
			mutate: func(cfg *session.Config) { cfg.Key = nil },
			errMsg: "without a key",
		},
		{
			name:   "KeyWithoutCertificate",
			mutate: func(cfg *session.Config) { cfg.Certificates = nil },
			errMsg: "without a certificate",
		},
		{
			name:   "MismatchedKey",
			mutate: func(cfg *session.Config) { cfg.Key = otherKey },
			errMsg: "does not match",
		},
		{
			name:   "PublicKeyOnly",
			mutate: func(cfg *session.Config) { cfg.Key = pubOnly },
			errMsg: "no private component",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			ctx, err := session.New(cfg)
			if tt.errMsg == "" {
				require.NoError(t, err)
				require.NotNil(t, ctx)
				assert.NoError(t, ctx.Close())
				return
			}

			require.Error(t, err)
			assert.Nil(t, ctx)
			assert.ErrorIs(t, err, session.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew_DestroyedKey(t *testing.T) {
	id := newIdentity(t)

	key, err := x509certs.GenerateKey(x509certs.KeyEd25519)
	require.NoError(t, err)
	key.Destroy()

	_, err = session.New(session.Config{
		Versions:     []session.Version{session.Version13},
		CipherSuites: []session.CipherSuite{session.AES128GCMSHA256},
		Key:          key,
		Certificates: []*x509.Certificate{id.leaf},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrConfiguration)
}

func TestContext(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T, id *identity)
	}{
		{
			name: "DeepCopy",
			testFunc: func(t *testing.T, id *identity) {
				cfg := session.Config{
					Versions:     []session.Version{session.Version13, session.Version12},
					CipherSuites: []session.CipherSuite{session.AES256GCMSHA384, session.AES128GCMSHA256},
					Anchors:      id.anchors(t),
					VerifyMode:   session.VerifyPeerFailIfNoCert,
					ServerName:   "server.example.com",
				}
				ctx, err := session.New(cfg)
				require.NoError(t, err)
				defer ctx.Close()

				cfg.Versions[0] = session.Version12
				cfg.CipherSuites[0] = session.ChaCha20Poly1305SHA256

				assert.Equal(t, []session.Version{session.Version13, session.Version12}, ctx.Versions())
				assert.Equal(t, []session.CipherSuite{session.AES256GCMSHA384, session.AES128GCMSHA256}, ctx.CipherSuites())
				assert.Equal(t, session.VerifyPeerFailIfNoCert, ctx.VerifyMode())
				assert.Equal(t, "server.example.com", ctx.ServerName())

				got := ctx.Versions()
				got[0] = 0
				assert.Equal(t, session.Version13, ctx.Versions()[0], "accessor must return a copy")
			},
		},
		{
			name: "Defaults",
			testFunc: func(t *testing.T, id *identity) {
				ctx, err := session.New(session.Config{
					Versions:     []session.Version{session.Version13},
					CipherSuites: []session.CipherSuite{session.AES128GCMSHA256},
				})
				require.NoError(t, err)
				defer ctx.Close()

				assert.NotNil(t, ctx.Logger())
				assert.NotNil(t, ctx.Rand())
				assert.WithinDuration(t, time.Now(), ctx.Now(), time.Minute)
				assert.False(t, ctx.HasCertificate())

				key, err := ctx.AcquireKey()
				assert.NoError(t, err)
				assert.Nil(t, key)
			},
		},
		{
			name: "EvaluateOptions",
			testFunc: func(t *testing.T, id *identity) {
				fixed := time.Now().Add(time.Minute)
				policy := &x509chain.RevocationPolicy{Strict: true}
				ctx, err := session.New(session.Config{
					Versions:     []session.Version{session.Version13},
					CipherSuites: []session.CipherSuite{session.AES128GCMSHA256},
					VerifyMode:   session.VerifyPeer,
					Anchors:      id.anchors(t),
					Revocation:   policy,
					Time:         func() time.Time { return fixed },
				})
				require.NoError(t, err)
				defer ctx.Close()

				opts := ctx.EvaluateOptions("server.example.com", x509.ExtKeyUsageServerAuth)
				assert.Equal(t, fixed, opts.Now)
				assert.Equal(t, "server.example.com", opts.Identity)
				assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, opts.KeyUsages)
				require.NotNil(t, opts.Revocation)
				assert.True(t, opts.Revocation.Strict)

				policy.Strict = false
				assert.True(t, ctx.EvaluateOptions("", x509.ExtKeyUsageClientAuth).Revocation.Strict,
					"context must not observe later changes to the caller's policy")
			},
		},
		{
			name: "KeyLifetime",
			testFunc: func(t *testing.T, id *identity) {
				key, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
				require.NoError(t, err)
				leaf, err := x509certs.Issue(&x509.Certificate{
					NotBefore: time.Now().Add(-time.Hour),
					NotAfter:  time.Now().Add(time.Hour),
				}, key.Public(), id.root, id.rootKey)
				require.NoError(t, err)

				ctx, err := session.New(session.Config{
					Versions:     []session.Version{session.Version13},
					CipherSuites: []session.CipherSuite{session.AES128GCMSHA256},
					Key:          key,
					Certificates: []*x509.Certificate{leaf},
				})
				require.NoError(t, err)

				// The caller's reference is independent of the context's.
				key.Release()
				assert.False(t, key.Destroyed())

				held, err := ctx.AcquireKey()
				require.NoError(t, err)
				require.NotNil(t, held)

				require.NoError(t, ctx.Close())
				require.NoError(t, ctx.Close())
				assert.False(t, key.Destroyed(), "a channel still holds the key")

				_, err = ctx.AcquireKey()
				assert.ErrorIs(t, err, session.ErrClosed)

				held.Release()
				assert.True(t, key.Destroyed())
			},
		},
		{
			name: "ConcurrentReaders",
			testFunc: func(t *testing.T, id *identity) {
				ctx, err := session.New(session.Config{
					Versions:     session.Versions(),
					CipherSuites: session.CipherSuites(),
					Key:          id.key,
					Certificates: []*x509.Certificate{id.leaf},
				})
				require.NoError(t, err)
				defer ctx.Close()

				var wg sync.WaitGroup
				for range 16 {
					wg.Go(func() {
						for range 100 {
							key, err := ctx.AcquireKey()
							if !assert.NoError(t, err) {
								return
							}
							_ = ctx.CipherSuites()
							_ = ctx.Certificates()
							key.Release()
						}
					})
				}
				wg.Wait()

				assert.False(t, id.key.Destroyed())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, newIdentity(t))
		})
	}
}

func TestNegotiation(t *testing.T) {
	t.Run("Version", func(t *testing.T) {
		v, err := session.SelectVersion(
			[]session.Version{session.Version12, session.Version13},
			[]session.Version{session.Version13, session.Version12},
		)
		require.NoError(t, err)
		assert.Equal(t, session.Version12, v, "initiator's order decides")

		_, err = session.SelectVersion([]session.Version{session.Version13}, []session.Version{session.Version12})
		assert.ErrorIs(t, err, session.ErrNoCommonVersion)
	})

	t.Run("CipherSuite", func(t *testing.T) {
		suite, err := session.SelectCipherSuite(
			[]session.CipherSuite{session.ChaCha20Poly1305SHA256, session.AES128GCMSHA256},
			[]session.CipherSuite{session.AES128GCMSHA256, session.ChaCha20Poly1305SHA256},
			session.Version13,
		)
		require.NoError(t, err)
		assert.Equal(t, session.ChaCha20Poly1305SHA256, suite)

		_, err = session.SelectCipherSuite(
			[]session.CipherSuite{session.AES128GCMSHA256},
			[]session.CipherSuite{session.AES256GCMSHA384},
			session.Version13,
		)
		assert.ErrorIs(t, err, session.ErrNoCommonCipherSuite)
	})

	t.Run("SuiteRestrictedByVersion", func(t *testing.T) {
		both := []session.CipherSuite{session.ECDHEAES128GCMSHA256, session.AES256GCMSHA384}

		suite, err := session.SelectCipherSuite(both, both, session.Version13)
		require.NoError(t, err)
		assert.Equal(t, session.AES256GCMSHA384, suite)

		suite, err = session.SelectCipherSuite(both, both, session.Version12)
		require.NoError(t, err)
		assert.Equal(t, session.ECDHEAES128GCMSHA256, suite)

		_, err = session.SelectCipherSuite(
			[]session.CipherSuite{session.ECDHEAES256GCMSHA384},
			[]session.CipherSuite{session.ECDHEAES256GCMSHA384},
			session.Version13,
		)
		assert.True(t, errors.Is(err, session.ErrNoCommonCipherSuite))
	})
}
