// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/channel"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

const serverName = "server.example.com"

// identity is a certificate together with its key.
type identity struct {
	cert *x509.Certificate
	key  *x509certs.KeyMaterial
}

// testPKI holds a root and leaves for both ends of a channel.
type testPKI struct {
	root   identity
	server identity
	client identity
}

func newTestPKI(t testing.TB, alg x509certs.KeyAlgorithm) *testPKI {
	t.Helper()

	rootKey, err := x509certs.GenerateKey(x509certs.KeyECDSAP256)
	require.NoError(t, err)
	t.Cleanup(rootKey.Release)

	root, err := x509certs.SelfSign(&x509.Certificate{
		Subject:               pkix.Name{CommonName: "Channel Test Root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(48 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}, rootKey)
	require.NoError(t, err)

	p := &testPKI{root: identity{cert: root, key: rootKey}}
	p.server = p.issue(t, alg, serverName, x509.ExtKeyUsageServerAuth, serverName)
	p.client = p.issue(t, alg, "client", x509.ExtKeyUsageClientAuth)
	return p
}

func (p *testPKI) issue(t testing.TB, alg x509certs.KeyAlgorithm, cn string, usage x509.ExtKeyUsage, dnsNames ...string) identity {
	t.Helper()

	key, err := x509certs.GenerateKey(alg)
	require.NoError(t, err)
	t.Cleanup(key.Release)

	cert, err := x509certs.Issue(&x509.Certificate{
		Subject:     pkix.Name{CommonName: cn},
		DNSNames:    dnsNames,
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(12 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{usage},
	}, key.Public(), p.root.cert, p.root.key)
	require.NoError(t, err)
	return identity{cert: cert, key: key}
}

func (p *testPKI) anchors(t testing.TB) *x509chain.AnchorSet {
	t.Helper()

	set, err := x509chain.NewAnchorSet(p.root.cert)
	require.NoError(t, err)
	return set
}

// newContext builds a session context from cfg after applying mutate.
func newContext(t testing.TB, cfg session.Config, mutate func(*session.Config)) *session.Context {
	t.Helper()

	if mutate != nil {
		mutate(&cfg)
	}
	ctx, err := session.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

// serverContext presents the server leaf and does not ask for client certificates.
func (p *testPKI) serverContext(t testing.TB, mutate func(*session.Config)) *session.Context {
	return newContext(t, session.Config{
		Versions:     session.Versions(),
		CipherSuites: session.CipherSuites(),
		VerifyMode:   session.VerifyNone,
		Key:          p.server.key,
		Certificates: []*x509.Certificate{p.server.cert},
	}, mutate)
}

// clientContext verifies the server against the root without presenting a certificate.
func (p *testPKI) clientContext(t testing.TB, mutate func(*session.Config)) *session.Context {
	return newContext(t, session.Config{
		Versions:     session.Versions(),
		CipherSuites: session.CipherSuites(),
		VerifyMode:   session.VerifyPeer,
		Anchors:      p.anchors(t),
		ServerName:   serverName,
	}, mutate)
}

// pipeBuffer is one direction of a memPipe.
type pipeBuffer struct {
	mu           sync.Mutex
	cond         *sync.Cond
	data         []byte
	writerClosed bool
	readerClosed bool
}

func newPipeBuffer() *pipeBuffer {
	b := &pipeBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// memConn is an in-memory transport whose writes never block, so a peer
// may fail or close without waiting for the other side to read.
type memConn struct {
	r, w *pipeBuffer
}

func memPipe() (*memConn, *memConn) {
	a, b := newPipeBuffer(), newPipeBuffer()
	return &memConn{r: a, w: b}, &memConn{r: b, w: a}
}

func (c *memConn) Read(p []byte) (int, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()

	for len(c.r.data) == 0 && !c.r.writerClosed && !c.r.readerClosed {
		c.r.cond.Wait()
	}
	if c.r.readerClosed {
		return 0, io.ErrClosedPipe
	}
	if len(c.r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.r.data)
	c.r.data = c.r.data[n:]
	return n, nil
}

func (c *memConn) Write(p []byte) (int, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()

	if c.w.writerClosed || c.w.readerClosed {
		return 0, io.ErrClosedPipe
	}
	c.w.data = append(c.w.data, p...)
	c.w.cond.Broadcast()
	return len(p), nil
}

func (c *memConn) Close() error {
	c.r.mu.Lock()
	c.r.readerClosed = true
	c.r.cond.Broadcast()
	c.r.mu.Unlock()

	c.w.mu.Lock()
	c.w.writerClosed = true
	c.w.cond.Broadcast()
	c.w.mu.Unlock()
	return nil
}

// handshakeResult carries both ends of a channel after the handshake ran.
type handshakeResult struct {
	client, server       *channel.Channel
	clientErr, serverErr error
}

// handshakeOver runs both handshakes concurrently over the given transports.
func handshakeOver(t testing.TB, clientCtx, serverCtx *session.Context, clientConn, serverConn channel.Transport) handshakeResult {
	t.Helper()

	res := handshakeResult{
		client: channel.Client(clientCtx, clientConn),
		server: channel.Server(serverCtx, serverConn),
	}
	t.Cleanup(func() {
		_ = res.client.Close()
		_ = res.server.Close()
	})

	var wg sync.WaitGroup
	wg.Go(func() { res.serverErr = res.server.Handshake() })
	res.clientErr = res.client.Handshake()
	wg.Wait()
	return res
}

func handshake(t testing.TB, clientCtx, serverCtx *session.Context) handshakeResult {
	t.Helper()

	clientConn, serverConn := memPipe()
	return handshakeOver(t, clientCtx, serverCtx, clientConn, serverConn)
}

// tapConn records every write and can silently drop them.
type tapConn struct {
	channel.Transport

	mu     sync.Mutex
	writes [][]byte
	drop   bool
}

func (c *tapConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	drop := c.drop
	c.mu.Unlock()

	if drop {
		return len(p), nil
	}
	return c.Transport.Write(p)
}

func (c *tapConn) setDrop(drop bool) {
	c.mu.Lock()
	c.drop = drop
	c.mu.Unlock()
}

func (c *tapConn) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.writes[len(c.writes)-1]...)
}

// oneByteReader hands out a single byte per Read.
type oneByteReader struct {
	channel.Transport
}

func (r oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return r.Transport.Read(p)
}
