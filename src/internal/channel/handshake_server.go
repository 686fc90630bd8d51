// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

func (c *Channel) serverHandshake(ctx context.Context) error {
	cfg := c.config

	helloRaw, msg, err := c.readHandshake()
	if err != nil {
		return err
	}
	hello, ok := msg.(*clientHelloMsg)
	if !ok {
		return unexpected(msg, "ClientHello")
	}

	if !cfg.HasCertificate() {
		return fmt.Errorf("%w: server has no certificate", session.ErrConfiguration)
	}
	key, err := cfg.AcquireKey()
	if err != nil {
		return err
	}
	defer key.Release()

	// The client is the initiator, so its preference order decides.
	version, err := session.SelectVersion(hello.versions, cfg.Versions())
	if err != nil {
		return fmt.Errorf("%w: client offered %v", err, hello.versions)
	}
	suite, err := session.SelectCipherSuite(hello.cipherSuites, cfg.CipherSuites(), version)
	if err != nil {
		return fmt.Errorf("%w: client offered %v under %s", err, hello.cipherSuites, version)
	}

	hs, share, err := newHandshakeState(c)
	if err != nil {
		return err
	}
	defer hs.wipe()

	random, err := c.random()
	if err != nil {
		return err
	}
	serverHello := &serverHelloMsg{
		random:      random,
		version:     version,
		cipherSuite: suite,
		keyShare:    share,
	}
	serverHelloRaw, err := serverHello.marshal()
	if err != nil {
		return fmt.Errorf("failed to encode ServerHello: %w", err)
	}

	if err := hs.begin(version, suite, hello.keyShare, helloRaw, serverHelloRaw); err != nil {
		return err
	}
	if err := c.writeRecord(recordTypeHandshake, serverHelloRaw); err != nil {
		return err
	}
	if err := c.setTrafficSecrets(hs.ks, hs.clientHandshake, hs.serverHandshake); err != nil {
		return err
	}

	// Server flight: CertificateRequest? Certificate CertificateVerify Finished.
	requested := cfg.VerifyMode() != session.VerifyNone
	if requested {
		if err := hs.queue(&certificateRequestMsg{signatureSchemes: supportedSchemes}); err != nil {
			return err
		}
	}
	if err := hs.queueCertificate(cfg.Certificates(), key, serverSignatureContext); err != nil {
		return err
	}
	if err := hs.queueFinished(hs.serverHandshake); err != nil {
		return err
	}
	if err := hs.flush(); err != nil {
		return err
	}
	hs.deriveApplication()
	if err := c.setTrafficSecrets(hs.ks, nil, hs.serverApp); err != nil {
		return err
	}

	// Client flight: Certificate? CertificateVerify? Finished.
	var (
		peerChain []*x509.Certificate
		verdict   *x509chain.Verdict
	)
	if requested {
		msg, err := hs.read()
		if err != nil {
			return err
		}
		if peerChain, err = hs.readPeerCertificate(msg, clientSignatureContext); err != nil {
			return err
		}

		switch {
		case len(peerChain) > 0:
			if verdict, err = hs.evaluatePeer(ctx, peerChain, "", x509.ExtKeyUsageClientAuth); err != nil {
				return err
			}
		case cfg.VerifyMode() == session.VerifyPeerFailIfNoCert:
			return errMissingCertificate
		}
	}

	if err := hs.readFinished(hs.clientHandshake); err != nil {
		return err
	}
	if err := c.setTrafficSecrets(hs.ks, hs.clientApp, nil); err != nil {
		return err
	}

	c.setConnectionState(ConnectionState{
		HandshakeComplete: true,
		Version:           version,
		CipherSuite:       suite,
		ServerName:        hello.serverName,
		PeerCertificates:  peerChain,
		Verdict:           verdict,
	})
	return nil
}
