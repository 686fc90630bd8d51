// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/cryptobyte"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
)

// Handshake message types.
const (
	typeClientHello        uint8 = 1
	typeServerHello        uint8 = 2
	typeCertificate        uint8 = 11
	typeCertificateRequest uint8 = 13
	typeCertificateVerify  uint8 = 15
	typeFinished           uint8 = 20
)

const (
	handshakeHeaderLen = 4
	randomLen          = 32
	keyShareLen        = 32

	// maxHandshakeMessage bounds a single handshake message, large enough
	// for long certificate chains.
	maxHandshakeMessage = 1 << 18
)

// handshakeMessage is a message that encodes to type(1) | length(3) | body.
type handshakeMessage interface {
	marshal() ([]byte, error)
	unmarshal(body []byte) bool
}

func marshalMessage(typ uint8, body func(b *cryptobyte.Builder)) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint8(typ)
	b.AddUint24LengthPrefixed(body)
	return b.Bytes()
}

type clientHelloMsg struct {
	random       []byte
	versions     []session.Version
	cipherSuites []session.CipherSuite
	keyShare     []byte
	serverName   string
}

func (m *clientHelloMsg) marshal() ([]byte, error) {
	return marshalMessage(typeClientHello, func(b *cryptobyte.Builder) {
		b.AddBytes(m.random)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, v := range m.versions {
				b.AddUint16(uint16(v))
			}
		})
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, s := range m.cipherSuites {
				b.AddUint16(uint16(s))
			}
		})
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.keyShare)
		})
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(m.serverName))
		})
	})
}

func (m *clientHelloMsg) unmarshal(body []byte) bool {
	s := cryptobyte.String(body)
	var versions, suites, share, name cryptobyte.String
	if !s.ReadBytes(&m.random, randomLen) ||
		!s.ReadUint8LengthPrefixed(&versions) ||
		!s.ReadUint16LengthPrefixed(&suites) ||
		!s.ReadUint16LengthPrefixed(&share) ||
		!s.ReadUint16LengthPrefixed(&name) ||
		!s.Empty() {
		return false
	}

	m.versions = nil
	for !versions.Empty() {
		var v uint16
		if !versions.ReadUint16(&v) {
			return false
		}
		m.versions = append(m.versions, session.Version(v))
	}
	m.cipherSuites = nil
	for !suites.Empty() {
		var cs uint16
		if !suites.ReadUint16(&cs) {
			return false
		}
		m.cipherSuites = append(m.cipherSuites, session.CipherSuite(cs))
	}
	if len(share) != keyShareLen {
		return false
	}
	m.keyShare = []byte(share)
	m.serverName = string(name)
	return true
}

type serverHelloMsg struct {
	random      []byte
	version     session.Version
	cipherSuite session.CipherSuite
	keyShare    []byte
}

func (m *serverHelloMsg) marshal() ([]byte, error) {
	return marshalMessage(typeServerHello, func(b *cryptobyte.Builder) {
		b.AddBytes(m.random)
		b.AddUint16(uint16(m.version))
		b.AddUint16(uint16(m.cipherSuite))
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.keyShare)
		})
	})
}

func (m *serverHelloMsg) unmarshal(body []byte) bool {
	s := cryptobyte.String(body)
	var version, suite uint16
	var share cryptobyte.String
	if !s.ReadBytes(&m.random, randomLen) ||
		!s.ReadUint16(&version) ||
		!s.ReadUint16(&suite) ||
		!s.ReadUint16LengthPrefixed(&share) ||
		!s.Empty() ||
		len(share) != keyShareLen {
		return false
	}
	m.version = session.Version(version)
	m.cipherSuite = session.CipherSuite(suite)
	m.keyShare = []byte(share)
	return true
}

type certificateRequestMsg struct {
	signatureSchemes []uint16
}

func (m *certificateRequestMsg) marshal() ([]byte, error) {
	return marshalMessage(typeCertificateRequest, func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, scheme := range m.signatureSchemes {
				b.AddUint16(scheme)
			}
		})
	})
}

func (m *certificateRequestMsg) unmarshal(body []byte) bool {
	s := cryptobyte.String(body)
	var schemes cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&schemes) || !s.Empty() || schemes.Empty() {
		return false
	}
	m.signatureSchemes = nil
	for !schemes.Empty() {
		var scheme uint16
		if !schemes.ReadUint16(&scheme) {
			return false
		}
		m.signatureSchemes = append(m.signatureSchemes, scheme)
	}
	return true
}

type certificateMsg struct {
	certificates [][]byte
}

func (m *certificateMsg) marshal() ([]byte, error) {
	return marshalMessage(typeCertificate, func(b *cryptobyte.Builder) {
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, der := range m.certificates {
				b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddBytes(der)
				})
			}
		})
	})
}

func (m *certificateMsg) unmarshal(body []byte) bool {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&list) || !s.Empty() {
		return false
	}
	m.certificates = nil
	for !list.Empty() {
		var der cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&der) || der.Empty() {
			return false
		}
		m.certificates = append(m.certificates, []byte(der))
	}
	return true
}

type certificateVerifyMsg struct {
	signatureScheme uint16
	signature       []byte
}

func (m *certificateVerifyMsg) marshal() ([]byte, error) {
	return marshalMessage(typeCertificateVerify, func(b *cryptobyte.Builder) {
		b.AddUint16(m.signatureScheme)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.signature)
		})
	})
}

func (m *certificateVerifyMsg) unmarshal(body []byte) bool {
	s := cryptobyte.String(body)
	var sig cryptobyte.String
	if !s.ReadUint16(&m.signatureScheme) ||
		!s.ReadUint16LengthPrefixed(&sig) ||
		!s.Empty() ||
		sig.Empty() {
		return false
	}
	m.signature = []byte(sig)
	return true
}

type finishedMsg struct {
	verifyData []byte
}

func (m *finishedMsg) marshal() ([]byte, error) {
	return marshalMessage(typeFinished, func(b *cryptobyte.Builder) {
		b.AddBytes(m.verifyData)
	})
}

func (m *finishedMsg) unmarshal(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	m.verifyData = append([]byte(nil), body...)
	return true
}

// parseHandshake decodes one complete message (header included).
func parseHandshake(raw []byte) (handshakeMessage, error) {
	var msg handshakeMessage
	switch raw[0] {
	case typeClientHello:
		msg = new(clientHelloMsg)
	case typeServerHello:
		msg = new(serverHelloMsg)
	case typeCertificateRequest:
		msg = new(certificateRequestMsg)
	case typeCertificate:
		msg = new(certificateMsg)
	case typeCertificateVerify:
		msg = new(certificateVerifyMsg)
	case typeFinished:
		msg = new(finishedMsg)
	default:
		return nil, fmt.Errorf("%w: handshake message type %d", ErrUnexpectedMessage, raw[0])
	}

	if !msg.unmarshal(raw[handshakeHeaderLen:]) {
		return nil, fmt.Errorf("%w: handshake message type %d", ErrMalformedMessage, raw[0])
	}
	return msg, nil
}

// handshakeBuffer reassembles handshake messages that span records, or
// several messages packed in one record.
//
// next reports (nil, false, nil) while a complete message is not yet buffered.
type handshakeBuffer struct {
	buf []byte
}

func (b *handshakeBuffer) feed(p []byte) { b.buf = append(b.buf, p...) }

func (b *handshakeBuffer) empty() bool { return len(b.buf) == 0 }

func (b *handshakeBuffer) next() ([]byte, bool, error) {
	if len(b.buf) < handshakeHeaderLen {
		return nil, false, nil
	}

	n := int(b.buf[1])<<16 | int(b.buf[2])<<8 | int(b.buf[3])
	if n > maxHandshakeMessage {
		return nil, false, fmt.Errorf("%w: %d byte handshake message", ErrMalformedMessage, n)
	}
	if len(b.buf) < handshakeHeaderLen+n {
		return nil, false, nil
	}

	raw := make([]byte, handshakeHeaderLen+n)
	copy(raw, b.buf)
	rest := copy(b.buf, b.buf[len(raw):])
	b.buf = b.buf[:rest]
	return raw, true, nil
}

func (b *handshakeBuffer) wipe() {
	memguard.WipeBytes(b.buf[:cap(b.buf)])
	b.buf = b.buf[:0]
}
