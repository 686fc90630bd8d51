// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/awnumar/memguard"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/logger"
)

// Transport is the byte stream a channel runs over. Any [net.Conn] qualifies.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// ConnectionState is a snapshot of a channel's negotiated parameters.
type ConnectionState struct {
	State             State
	HandshakeComplete bool
	Version           session.Version
	CipherSuite       session.CipherSuite
	// ServerName is the name the client sent in its hello.
	ServerName       string
	PeerCertificates []*x509.Certificate
	// Verdict is the trust evaluation of PeerCertificates, nil when the
	// peer was not evaluated.
	Verdict *x509chain.Verdict
}

// Channel is a secure channel over a [Transport].
//
// The read path is serialized by one lock and the write path by another, so
// one goroutine may Read while another Writes. State transitions are atomic.
// A channel never reaches [StateEstablished] after the peer presented a
// chain that was not trusted. The chain is skipped only under
// [session.VerifyNone]. A server in [session.VerifyPeer] mode also accepts a
// client that sends no certificate; its ConnectionState then has a nil
// Verdict. [session.VerifyPeerFailIfNoCert] rejects such a client.
type Channel struct {
	config    *session.Context
	transport Transport
	isClient  bool
	log       logger.Logger

	state   atomic.Int32
	closing atomic.Bool

	errMu sync.Mutex
	err   error

	hsMu sync.Mutex

	// in guards everything on the read path below it.
	in         halfConn
	rbuf       recordBuffer
	hbuf       handshakeBuffer
	input      []byte
	scratch    []byte
	readErr    error
	peerClosed bool

	out halfConn

	csMu sync.Mutex
	cs   ConnectionState
}

// Client returns a channel that initiates the handshake on transport.
func Client(config *session.Context, transport Transport) *Channel {
	return newChannel(config, transport, true)
}

// Server returns a channel that accepts a handshake on transport.
// The session context must carry a certificate chain and key.
func Server(config *session.Context, transport Transport) *Channel {
	return newChannel(config, transport, false)
}

func newChannel(config *session.Context, transport Transport, isClient bool) *Channel {
	return &Channel{
		config:    config,
		transport: transport,
		isClient:  isClient,
		log:       config.Logger(),
		scratch:   make([]byte, maxPlaintext),
	}
}

func (c *Channel) role() string {
	if c.isClient {
		return "client"
	}
	return "server"
}

// State returns the current lifecycle state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Err returns the error that failed the channel, or nil.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Channel) transition(to State) bool {
	for {
		from := c.State()
		if !canTransition(from, to) {
			return false
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			c.log.Printf("channel %s: %s -> %s", c.role(), from, to)
			return true
		}
	}
}

// fail moves the channel to [StateFailed] and returns the error that failed it.
//
// The first error wins. When the failure warrants it a fatal alert is sent.
// The transport is closed and each direction's keys are zeroized here, or by
// the goroutine currently holding that direction's lock when it returns.
func (c *Channel) fail(err error) error {
	if c.closing.Load() {
		return ErrClosed
	}

	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()

	if c.transition(StateFailed) {
		c.log.Printf("channel %s: %v", c.role(), err)

		if c.out.TryLock() {
			if a, ok := alertFor(err); ok {
				_ = c.writeRecordLocked(recordTypeAlert, []byte{alertLevelFatal, byte(a)})
			}
			c.out.wipe()
			c.out.Unlock()
		}
		_ = c.transport.Close()
		if c.in.TryLock() {
			c.wipeInLocked()
			c.in.Unlock()
		}
	}
	return c.Err()
}

func (c *Channel) wipeInLocked() {
	c.in.wipe()
	c.rbuf.wipe()
	c.hbuf.wipe()
	if c.input != nil {
		memguard.WipeBytes(c.input)
		c.input = nil
	}
}

func (c *Channel) unlockIn() {
	if c.State().Terminal() {
		c.wipeInLocked()
	}
	c.in.Unlock()
}

func (c *Channel) unlockOut() {
	if c.State().Terminal() {
		c.out.wipe()
	}
	c.out.Unlock()
}

// transportError classifies a transport failure.
func (c *Channel) transportError(err error) error {
	switch {
	case c.closing.Load():
		return ErrClosed
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrTruncatedClose
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// readRecordLocked returns the next record's content type and plaintext.
// The caller holds the in lock.
func (c *Channel) readRecordLocked() (recordType, []byte, error) {
	for {
		rec, ok, err := c.rbuf.next()
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return c.in.decode(rec)
		}
		if c.readErr != nil {
			return 0, nil, c.transportError(c.readErr)
		}

		n, err := c.transport.Read(c.scratch)
		c.rbuf.feed(c.scratch[:n])
		if err != nil {
			c.readErr = err
		}
	}
}

// writeRecordLocked splits data into records and writes them with a single
// transport write. The caller holds the out lock.
func (c *Channel) writeRecordLocked(typ recordType, data []byte) error {
	buf := gc.Default.Get()
	defer func() {
		gc.Wipe(buf)
		gc.Default.Put(buf)
	}()

	for len(data) > 0 {
		n := min(len(data), maxPlaintext)
		if err := c.out.encode(buf, typ, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}

	if _, err := c.transport.Write(buf.Bytes()); err != nil {
		return c.transportError(err)
	}
	return nil
}

func (c *Channel) writeRecord(typ recordType, data []byte) error {
	c.out.Lock()
	defer c.unlockOut()
	return c.writeRecordLocked(typ, data)
}

// parseAlert decodes an alert record.
func parseAlert(data []byte) (alert, error) {
	if len(data) != 2 {
		return 0, fmt.Errorf("%w: %d byte alert", ErrMalformedMessage, len(data))
	}
	return alert(data[1]), nil
}

// readHandshake returns the next complete handshake message and its encoding.
func (c *Channel) readHandshake() ([]byte, handshakeMessage, error) {
	c.in.Lock()
	defer c.unlockIn()

	for {
		raw, ok, err := c.hbuf.next()
		if err != nil {
			return nil, nil, err
		}
		if ok {
			msg, err := parseHandshake(raw)
			return raw, msg, err
		}

		typ, data, err := c.readRecordLocked()
		if err != nil {
			return nil, nil, err
		}
		switch typ {
		case recordTypeHandshake:
			if len(data) == 0 {
				return nil, nil, fmt.Errorf("%w: empty handshake record", ErrMalformedMessage)
			}
			c.hbuf.feed(data)
		case recordTypeAlert:
			a, err := parseAlert(data)
			if err != nil {
				return nil, nil, err
			}
			return nil, nil, peerAlertError(a)
		default:
			return nil, nil, fmt.Errorf("%w: application data during handshake", ErrUnexpectedMessage)
		}
	}
}

// setTrafficSecrets installs new keys for either direction; a nil secret leaves that direction alone.
func (c *Channel) setTrafficSecrets(ks *keySchedule, inSecret, outSecret []byte) error {
	if inSecret != nil {
		c.in.Lock()
		if !c.hbuf.empty() {
			c.in.Unlock()
			return fmt.Errorf("%w: handshake data spans a key change", ErrUnexpectedMessage)
		}
		c.in.version = ks.version
		err := c.in.setTrafficSecret(ks, inSecret)
		c.in.Unlock()
		if err != nil {
			return err
		}
	}
	if outSecret != nil {
		c.out.Lock()
		c.out.version = ks.version
		err := c.out.setTrafficSecret(ks, outSecret)
		c.out.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Handshake runs the handshake if it has not run yet.
func (c *Channel) Handshake() error { return c.HandshakeContext(context.Background()) }

// HandshakeContext runs the handshake if it has not run yet.
//
// Cancelling ctx while the handshake is in progress closes the transport and
// fails the channel. Once the handshake has completed ctx has no effect.
func (c *Channel) HandshakeContext(ctx context.Context) error {
	c.hsMu.Lock()
	defer c.hsMu.Unlock()

	if c.closing.Load() {
		return ErrClosed
	}
	switch c.State() {
	case StateEstablished, StateClosing:
		return nil
	case StateFailed:
		return c.Err()
	case StateClosed:
		return ErrClosed
	}
	if !c.transition(StateHandshaking) {
		return fmt.Errorf("%w: cannot start handshake in state %s", ErrInvalidState, c.State())
	}

	stop := context.AfterFunc(ctx, func() { _ = c.transport.Close() })

	var err error
	if c.isClient {
		err = c.clientHandshake(ctx)
	} else {
		err = c.serverHandshake(ctx)
	}

	if !stop() && ctx.Err() != nil && !c.closing.Load() {
		err = fmt.Errorf("%w: handshake interrupted: %w", ErrIO, ctx.Err())
	}
	if err != nil {
		return c.fail(err)
	}
	if !c.transition(StateEstablished) {
		return ErrClosed
	}
	return nil
}

// Read reads application data, running the handshake first if needed.
//
// After the peer's close_notify Read returns [io.EOF]. A transport that ends
// without one fails the channel with [ErrTruncatedClose]. Closing the channel
// unblocks a pending Read with [ErrClosed].
func (c *Channel) Read(p []byte) (int, error) {
	if err := c.Handshake(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	c.in.Lock()
	defer c.unlockIn()

	for {
		if len(c.input) > 0 {
			n := copy(p, c.input)
			memguard.WipeBytes(c.input[:n])
			c.input = c.input[n:]
			return n, nil
		}
		if c.peerClosed {
			return 0, io.EOF
		}
		if c.closing.Load() {
			return 0, ErrClosed
		}
		if c.State() == StateFailed {
			return 0, c.Err()
		}

		typ, data, err := c.readRecordLocked()
		if err != nil {
			return 0, c.fail(err)
		}

		switch typ {
		case recordTypeApplicationData:
			c.input = data
		case recordTypeAlert:
			a, err := parseAlert(data)
			if err != nil {
				return 0, c.fail(err)
			}
			if a != alertCloseNotify {
				return 0, c.fail(peerAlertError(a))
			}
			c.peerClosed = true
			c.transition(StateClosing)
		default:
			return 0, c.fail(fmt.Errorf("%w: handshake message after handshake", ErrUnexpectedMessage))
		}
	}
}

// Write encrypts and sends p, running the handshake first if needed.
func (c *Channel) Write(p []byte) (int, error) {
	if err := c.Handshake(); err != nil {
		return 0, err
	}

	c.out.Lock()
	defer c.unlockOut()

	if c.closing.Load() {
		return 0, ErrClosed
	}
	switch s := c.State(); s {
	case StateEstablished:
	case StateFailed:
		return 0, c.Err()
	default:
		return 0, fmt.Errorf("%w: write in state %s", ErrInvalidState, s)
	}

	written := 0
	for len(p) > 0 {
		n := min(len(p), maxPlaintext)
		if err := c.writeRecordLocked(recordTypeApplicationData, p[:n]); err != nil {
			return written, c.fail(err)
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// Close sends close_notify, closes the transport and zeroizes the session keys.
//
// Close may be called while a Read is blocked; that Read returns [ErrClosed].
// Closing a failed channel only releases what is left. Close is idempotent.
func (c *Channel) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	switch c.State() {
	case StateIdle:
		c.transition(StateClosed)
		return c.closeTransport()
	case StateFailed, StateClosed:
		return nil
	}

	c.transition(StateClosing)

	c.out.Lock()
	_ = c.writeRecordLocked(recordTypeAlert, []byte{alertLevelWarning, byte(alertCloseNotify)})
	c.out.wipe()
	c.out.Unlock()

	err := c.closeTransport()

	c.in.Lock()
	c.wipeInLocked()
	c.in.Unlock()

	c.transition(StateClosed)
	return err
}

func (c *Channel) closeTransport() error {
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// ConnectionState returns a snapshot of the negotiated parameters.
func (c *Channel) ConnectionState() ConnectionState {
	c.csMu.Lock()
	defer c.csMu.Unlock()

	cs := c.cs
	cs.State = c.State()
	cs.PeerCertificates = append([]*x509.Certificate(nil), c.cs.PeerCertificates...)
	return cs
}

func (c *Channel) setConnectionState(cs ConnectionState) {
	c.csMu.Lock()
	c.cs = cs
	c.csMu.Unlock()
}
