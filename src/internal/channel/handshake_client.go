// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"context"
	"crypto/x509"
	"fmt"
	"slices"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

func (c *Channel) clientHandshake(ctx context.Context) error {
	cfg := c.config

	hs, share, err := newHandshakeState(c)
	if err != nil {
		return err
	}
	defer hs.wipe()

	random, err := c.random()
	if err != nil {
		return err
	}
	hello := &clientHelloMsg{
		random:       random,
		versions:     cfg.Versions(),
		cipherSuites: cfg.CipherSuites(),
		keyShare:     share,
		serverName:   cfg.ServerName(),
	}
	helloRaw, err := hello.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode ClientHello: %w", err)
	}
	if err := c.writeRecord(recordTypeHandshake, helloRaw); err != nil {
		return err
	}

	serverHelloRaw, msg, err := c.readHandshake()
	if err != nil {
		return err
	}
	sh, ok := msg.(*serverHelloMsg)
	if !ok {
		return unexpected(msg, "ServerHello")
	}
	if !slices.Contains(hello.versions, sh.version) {
		return fmt.Errorf("%w: server selected %s, which was not offered", errIllegalParameter, sh.version)
	}
	if !slices.Contains(hello.cipherSuites, sh.cipherSuite) || !sh.cipherSuite.SupportedBy(sh.version) {
		return fmt.Errorf("%w: server selected %s under %s", errIllegalParameter, sh.cipherSuite, sh.version)
	}

	if err := hs.begin(sh.version, sh.cipherSuite, sh.keyShare, helloRaw, serverHelloRaw); err != nil {
		return err
	}
	if err := c.setTrafficSecrets(hs.ks, hs.serverHandshake, hs.clientHandshake); err != nil {
		return err
	}

	// Server flight: CertificateRequest? Certificate CertificateVerify Finished.
	msg, err = hs.read()
	if err != nil {
		return err
	}
	var certRequest *certificateRequestMsg
	if req, ok := msg.(*certificateRequestMsg); ok {
		certRequest = req
		if msg, err = hs.read(); err != nil {
			return err
		}
	}

	peerChain, err := hs.readPeerCertificate(msg, serverSignatureContext)
	if err != nil {
		return err
	}
	if len(peerChain) == 0 {
		return fmt.Errorf("%w: server sent an empty certificate list", errMissingCertificate)
	}

	var verdict *x509chain.Verdict
	if cfg.VerifyMode() != session.VerifyNone {
		if verdict, err = hs.evaluatePeer(ctx, peerChain, cfg.ServerName(), x509.ExtKeyUsageServerAuth); err != nil {
			return err
		}
	}

	if err := hs.readFinished(hs.serverHandshake); err != nil {
		return err
	}
	hs.deriveApplication()
	// The server protects everything after its Finished with application keys.
	if err := c.setTrafficSecrets(hs.ks, hs.serverApp, nil); err != nil {
		return err
	}

	// Client flight: Certificate? CertificateVerify? Finished.
	if certRequest != nil {
		var (
			key   *x509certs.KeyMaterial
			chain []*x509.Certificate
		)
		if cfg.HasCertificate() {
			if key, err = cfg.AcquireKey(); err != nil {
				return err
			}
			if key != nil {
				defer key.Release()
				chain = cfg.Certificates()
			}
		}
		if err := hs.queueCertificate(chain, key, clientSignatureContext); err != nil {
			return err
		}
	}
	if err := hs.queueFinished(hs.clientHandshake); err != nil {
		return err
	}
	if err := hs.flush(); err != nil {
		return err
	}

	if err := c.setTrafficSecrets(hs.ks, nil, hs.clientApp); err != nil {
		return err
	}

	c.setConnectionState(ConnectionState{
		HandshakeComplete: true,
		Version:           sh.version,
		CipherSuite:       sh.cipherSuite,
		ServerName:        cfg.ServerName(),
		PeerCertificates:  peerChain,
		Verdict:           verdict,
	})
	return nil
}
