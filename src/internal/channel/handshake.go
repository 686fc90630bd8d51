// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"context"
	"crypto/hmac"
	"crypto/x509"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/curve25519"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

// handshakeState is the per-handshake state shared by both roles.
type handshakeState struct {
	c          *Channel
	ks         *keySchedule
	transcript hash.Hash
	flight     []byte

	// X25519 private scalar.
	private []byte

	clientHandshake []byte
	serverHandshake []byte
	clientApp       []byte
	serverApp       []byte
}

func newHandshakeState(c *Channel) (*handshakeState, []byte, error) {
	hs := &handshakeState{c: c, private: make([]byte, curve25519.ScalarSize)}
	if _, err := io.ReadFull(c.config.Rand(), hs.private); err != nil {
		return nil, nil, fmt.Errorf("failed to generate key share: %w", err)
	}
	public, err := curve25519.X25519(hs.private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute key share: %w", err)
	}
	return hs, public, nil
}

func (c *Channel) random() ([]byte, error) {
	random := make([]byte, randomLen)
	if _, err := io.ReadFull(c.config.Rand(), random); err != nil {
		return nil, fmt.Errorf("failed to generate random: %w", err)
	}
	return random, nil
}

// begin fixes the version and suite, feeds the hellos into the transcript and
// derives the handshake traffic secrets from the peer's key share.
func (hs *handshakeState) begin(version session.Version, suite session.CipherSuite, peerShare []byte, hellos ...[]byte) error {
	shared, err := curve25519.X25519(hs.private, peerShare)
	if err != nil {
		return fmt.Errorf("%w: key share: %v", errIllegalParameter, err)
	}
	defer memguard.WipeBytes(shared)

	hs.ks = newKeySchedule(version, suite)
	hs.transcript = suite.Hash().New()
	for _, raw := range hellos {
		hs.transcript.Write(raw)
	}

	hs.ks.setShared(shared)
	hs.clientHandshake, hs.serverHandshake = hs.ks.handshakeSecrets(hs.transcript)
	return nil
}

// deriveApplication derives the application traffic secrets. The transcript
// must run through the server's Finished.
func (hs *handshakeState) deriveApplication() {
	hs.clientApp, hs.serverApp = hs.ks.applicationSecrets(hs.transcript)
}

// queue appends m to the outgoing flight and the transcript.
func (hs *handshakeState) queue(m handshakeMessage) error {
	raw, err := m.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode handshake message: %w", err)
	}
	hs.transcript.Write(raw)
	hs.flight = append(hs.flight, raw...)
	return nil
}

func (hs *handshakeState) flush() error {
	defer func() {
		memguard.WipeBytes(hs.flight)
		hs.flight = hs.flight[:0]
	}()
	return hs.c.writeRecord(recordTypeHandshake, hs.flight)
}

// read returns the next handshake message, adding it to the transcript.
func (hs *handshakeState) read() (handshakeMessage, error) {
	raw, msg, err := hs.c.readHandshake()
	if err != nil {
		return nil, err
	}
	hs.transcript.Write(raw)
	return msg, nil
}

// readFinished checks the peer's Finished against secret and the transcript so far.
func (hs *handshakeState) readFinished(secret []byte) error {
	expected := hs.ks.finishedMAC(secret, hs.transcript)

	msg, err := hs.read()
	if err != nil {
		return err
	}
	fin, ok := msg.(*finishedMsg)
	if !ok {
		return unexpected(msg, "Finished")
	}
	if len(fin.verifyData) != len(expected) || !hmac.Equal(fin.verifyData, expected) {
		return fmt.Errorf("%w: peer Finished does not match the transcript", ErrMACFailure)
	}
	return nil
}

func (hs *handshakeState) queueFinished(secret []byte) error {
	return hs.queue(&finishedMsg{verifyData: hs.ks.finishedMAC(secret, hs.transcript)})
}

// readPeerCertificate reads a Certificate message and, when it is not empty,
// the CertificateVerify that proves possession of the leaf key.
func (hs *handshakeState) readPeerCertificate(msg handshakeMessage, context string) ([]*x509.Certificate, error) {
	certMsg, ok := msg.(*certificateMsg)
	if !ok {
		return nil, unexpected(msg, "Certificate")
	}
	if len(certMsg.certificates) == 0 {
		return nil, nil
	}

	codec := x509certs.New()
	chain := make([]*x509.Certificate, 0, len(certMsg.certificates))
	for i, der := range certMsg.certificates {
		cert, err := codec.Decode(der)
		if err != nil {
			return nil, fmt.Errorf("%w: peer certificate %d: %w", ErrMalformedMessage, i, err)
		}
		chain = append(chain, cert)
	}

	sum := hs.transcript.Sum(nil)
	next, err := hs.read()
	if err != nil {
		return nil, err
	}
	cv, ok := next.(*certificateVerifyMsg)
	if !ok {
		return nil, unexpected(next, "CertificateVerify")
	}
	if err := verifyTranscript(chain[0].PublicKey, cv, context, sum); err != nil {
		return nil, err
	}
	return chain, nil
}

// queueCertificate queues the local chain and, when a key is given, a
// CertificateVerify over the transcript including that chain.
func (hs *handshakeState) queueCertificate(chain []*x509.Certificate, key *x509certs.KeyMaterial, context string) error {
	msg := &certificateMsg{}
	for _, cert := range chain {
		msg.certificates = append(msg.certificates, cert.Raw)
	}
	if err := hs.queue(msg); err != nil {
		return err
	}
	if key == nil || len(chain) == 0 {
		return nil
	}

	cv, err := signTranscript(key, hs.c.config.Rand(), context, hs.transcript.Sum(nil))
	if err != nil {
		return err
	}
	return hs.queue(cv)
}

// evaluatePeer runs the trust evaluator on the peer's chain.
func (hs *handshakeState) evaluatePeer(ctx context.Context, chain []*x509.Certificate, identity string, usage x509.ExtKeyUsage) (*x509chain.Verdict, error) {
	verdict := x509chain.Evaluate(ctx, chain, hs.c.config.EvaluateOptions(identity, usage))
	hs.c.log.Printf("channel %s: peer chain %s", hs.c.role(), verdict)
	if !verdict.Trusted() {
		return &verdict, errors.Join(ErrUntrustedPeer, verdict.Err)
	}
	return &verdict, nil
}

func (hs *handshakeState) wipe() {
	if hs.ks != nil {
		hs.ks.wipe()
	}
	wipeAll(hs.private, hs.clientHandshake, hs.serverHandshake, hs.clientApp, hs.serverApp)
}

func unexpected(msg handshakeMessage, want string) error {
	return fmt.Errorf("%w: got %T, want %s", ErrUnexpectedMessage, msg, want)
}
