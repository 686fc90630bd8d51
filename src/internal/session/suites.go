// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	_ "crypto/sha256" // register SHA-256 for crypto.Hash
	_ "crypto/sha512" // register SHA-384 for crypto.Hash
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Version identifies a protocol profile. The numeric values travel on the wire.
type Version uint16

const (
	// Version12 is the SC/1.2 profile. It additionally offers the ECDHE suites.
	Version12 Version = 0x0303
	// Version13 is the SC/1.3 profile.
	Version13 Version = 0x0304
)

var allVersions = []Version{Version13, Version12}

// Versions returns every supported version, most preferred first.
func Versions() []Version { return append([]Version(nil), allVersions...) }

// Known reports whether v is a supported version.
func (v Version) Known() bool { return v == Version12 || v == Version13 }

// String returns the profile name.
func (v Version) String() string {
	switch v {
	case Version12:
		return "SC/1.2"
	case Version13:
		return "SC/1.3"
	default:
		return fmt.Sprintf("Version(0x%04x)", uint16(v))
	}
}

// Label returns the prefix used for every key schedule label derived under v.
func (v Version) Label() string {
	if v == Version12 {
		return "sc12 "
	}
	return "sc13 "
}

// ParseVersion accepts the profile name ("SC/1.3") or the short form ("1.3").
func ParseVersion(name string) (Version, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SC/1.2", "1.2":
		return Version12, nil
	case "SC/1.3", "1.3":
		return Version13, nil
	}
	return 0, fmt.Errorf("%w: unknown protocol version %q", ErrConfiguration, name)
}

// CipherSuite identifies an AEAD and transcript hash pair. The numeric values travel on the wire.
type CipherSuite uint16

const (
	AES128GCMSHA256        CipherSuite = 0x1301
	AES256GCMSHA384        CipherSuite = 0x1302
	ChaCha20Poly1305SHA256 CipherSuite = 0x1303
	ECDHEAES128GCMSHA256   CipherSuite = 0xc02b
	ECDHEAES256GCMSHA384   CipherSuite = 0xc02c
)

// suiteParams is the parameter set carried by a cipher suite.
type suiteParams struct {
	name     string
	keyLen   int
	ivLen    int
	hash     crypto.Hash
	aead     func(key []byte) (cipher.AEAD, error)
	versions []Version
}

func aeadAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var suites = map[CipherSuite]suiteParams{
	AES128GCMSHA256: {
		name: "AES_128_GCM_SHA256", keyLen: 16, ivLen: 12, hash: crypto.SHA256,
		aead: aeadAESGCM, versions: []Version{Version12, Version13},
	},
	AES256GCMSHA384: {
		name: "AES_256_GCM_SHA384", keyLen: 32, ivLen: 12, hash: crypto.SHA384,
		aead: aeadAESGCM, versions: []Version{Version12, Version13},
	},
	ChaCha20Poly1305SHA256: {
		name: "CHACHA20_POLY1305_SHA256", keyLen: chacha20poly1305.KeySize, ivLen: chacha20poly1305.NonceSize, hash: crypto.SHA256,
		aead: chacha20poly1305.New, versions: []Version{Version12, Version13},
	},
	ECDHEAES128GCMSHA256: {
		name: "ECDHE_AES_128_GCM_SHA256", keyLen: 16, ivLen: 12, hash: crypto.SHA256,
		aead: aeadAESGCM, versions: []Version{Version12},
	},
	ECDHEAES256GCMSHA384: {
		name: "ECDHE_AES_256_GCM_SHA384", keyLen: 32, ivLen: 12, hash: crypto.SHA384,
		aead: aeadAESGCM, versions: []Version{Version12},
	},
}

var allSuites = []CipherSuite{
	AES128GCMSHA256,
	ChaCha20Poly1305SHA256,
	AES256GCMSHA384,
	ECDHEAES128GCMSHA256,
	ECDHEAES256GCMSHA384,
}

// CipherSuites returns every supported suite in default preference order.
func CipherSuites() []CipherSuite { return append([]CipherSuite(nil), allSuites...) }

// Known reports whether s is a supported suite.
func (s CipherSuite) Known() bool {
	_, ok := suites[s]
	return ok
}

// String returns the suite name.
func (s CipherSuite) String() string {
	if p, ok := suites[s]; ok {
		return p.name
	}
	return fmt.Sprintf("CipherSuite(0x%04x)", uint16(s))
}

// KeyLen returns the AEAD key length in bytes, or 0 for an unknown suite.
func (s CipherSuite) KeyLen() int { return suites[s].keyLen }

// IVLen returns the length of the static IV in bytes, or 0 for an unknown suite.
func (s CipherSuite) IVLen() int { return suites[s].ivLen }

// Hash returns the transcript and key schedule hash, or 0 for an unknown suite.
func (s CipherSuite) Hash() crypto.Hash { return suites[s].hash }

// SupportedBy reports whether the suite may be negotiated under version v.
func (s CipherSuite) SupportedBy(v Version) bool {
	for _, sv := range suites[s].versions {
		if sv == v {
			return true
		}
	}
	return false
}

// NewAEAD returns the suite's AEAD keyed with key.
func (s CipherSuite) NewAEAD(key []byte) (cipher.AEAD, error) {
	p, ok := suites[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cipher suite %s", ErrConfiguration, s)
	}
	if len(key) != p.keyLen {
		return nil, fmt.Errorf("%w: %s needs a %d byte key, got %d", ErrConfiguration, p.name, p.keyLen, len(key))
	}
	return p.aead(key)
}

// ParseCipherSuite maps a name produced by [CipherSuite.String] back to its value.
// Matching is case insensitive and accepts '-' for '_'.
func ParseCipherSuite(name string) (CipherSuite, error) {
	want := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "_")
	for _, s := range allSuites {
		if suites[s].name == want {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown cipher suite %q", ErrConfiguration, name)
}

// VerifyMode controls peer certificate verification.
type VerifyMode int

const (
	// VerifyNone accepts any peer without evaluating its chain.
	VerifyNone VerifyMode = iota
	// VerifyPeer evaluates every chain the peer presents. A server in this
	// mode requests a client certificate but accepts a client that sends none.
	VerifyPeer
	// VerifyPeerFailIfNoCert is VerifyPeer, but a peer presenting no
	// certificate fails the handshake.
	VerifyPeerFailIfNoCert
)

// String returns the name used in configuration files.
func (m VerifyMode) String() string {
	switch m {
	case VerifyNone:
		return "none"
	case VerifyPeer:
		return "peer"
	case VerifyPeerFailIfNoCert:
		return "require"
	default:
		return fmt.Sprintf("VerifyMode(%d)", int(m))
	}
}

// ParseVerifyMode maps a name produced by [VerifyMode.String] back to its value.
func ParseVerifyMode(name string) (VerifyMode, error) {
	for _, m := range []VerifyMode{VerifyNone, VerifyPeer, VerifyPeerFailIfNoCert} {
		if strings.EqualFold(m.String(), strings.TrimSpace(name)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown verify mode %q", ErrConfiguration, name)
}
