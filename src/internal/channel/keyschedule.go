// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"crypto"
	"crypto/hmac"
	"hash"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
)

// Key schedule labels. Each is prefixed with the version's label on use.
const (
	labelDerived           = "derived"
	labelClientHandshake   = "c hs traffic"
	labelServerHandshake   = "s hs traffic"
	labelClientApplication = "c ap traffic"
	labelServerApplication = "s ap traffic"
	labelKey               = "key"
	labelIV                = "iv"
	labelFinished          = "finished"
)

// keySchedule derives every secret of one handshake from the X25519 shared
// secret and the running transcript hash.
//
//	early     = Extract(0, 0)
//	handshake = Extract(Derive(early, "derived", ""), shared)
//	master    = Extract(Derive(handshake, "derived", ""), 0)
//
// Traffic secrets are Derive(stage, label, transcript); keys, IVs and
// Finished keys are expanded from a traffic secret.
type keySchedule struct {
	suite   session.CipherSuite
	version session.Version
	hash    crypto.Hash

	handshake []byte
	master    []byte
}

func newKeySchedule(version session.Version, suite session.CipherSuite) *keySchedule {
	return &keySchedule{suite: suite, version: version, hash: suite.Hash()}
}

// expandLabel is HKDF-Expand with a length, label and context encoded as
//
//	uint16 length | uint8-prefixed (version label || label) | uint8-prefixed context
func (ks *keySchedule) expandLabel(secret []byte, label string, context []byte, length int) []byte {
	var b cryptobyte.Builder
	b.AddUint16(uint16(length))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(ks.version.Label()))
		b.AddBytes([]byte(label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(context)
	})
	info := b.BytesOrPanic()

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(ks.hash.New, secret, info), out); err != nil {
		// Only reachable when length exceeds 255 hash blocks.
		panic("channel: hkdf expand: " + err.Error())
	}
	return out
}

func (ks *keySchedule) extract(ikm, salt []byte) []byte {
	if ikm == nil {
		ikm = make([]byte, ks.hash.Size())
	}
	return hkdf.Extract(ks.hash.New, ikm, salt)
}

func (ks *keySchedule) derive(secret []byte, label string, transcript hash.Hash) []byte {
	var sum []byte
	if transcript == nil {
		sum = ks.hash.New().Sum(nil)
	} else {
		sum = transcript.Sum(nil)
	}
	return ks.expandLabel(secret, label, sum, ks.hash.Size())
}

// setShared computes the handshake and master secrets from the X25519 output.
func (ks *keySchedule) setShared(shared []byte) {
	early := ks.extract(nil, nil)
	defer memguard.WipeBytes(early)

	salt := ks.derive(early, labelDerived, nil)
	ks.handshake = ks.extract(shared, salt)
	memguard.WipeBytes(salt)

	salt = ks.derive(ks.handshake, labelDerived, nil)
	ks.master = ks.extract(nil, salt)
	memguard.WipeBytes(salt)
}

// handshakeSecrets returns the client and server handshake traffic secrets.
// transcript covers ClientHello and ServerHello.
func (ks *keySchedule) handshakeSecrets(transcript hash.Hash) (client, server []byte) {
	return ks.derive(ks.handshake, labelClientHandshake, transcript),
		ks.derive(ks.handshake, labelServerHandshake, transcript)
}

// applicationSecrets returns the client and server application traffic
// secrets. transcript runs through the server's Finished.
func (ks *keySchedule) applicationSecrets(transcript hash.Hash) (client, server []byte) {
	return ks.derive(ks.master, labelClientApplication, transcript),
		ks.derive(ks.master, labelServerApplication, transcript)
}

func (ks *keySchedule) trafficKey(secret []byte) (key, iv []byte) {
	return ks.expandLabel(secret, labelKey, nil, ks.suite.KeyLen()),
		ks.expandLabel(secret, labelIV, nil, ks.suite.IVLen())
}

// finishedMAC returns the verify data of a Finished message sent under secret.
func (ks *keySchedule) finishedMAC(secret []byte, transcript hash.Hash) []byte {
	key := ks.expandLabel(secret, labelFinished, nil, ks.hash.Size())
	defer memguard.WipeBytes(key)

	mac := hmac.New(ks.hash.New, key)
	mac.Write(transcript.Sum(nil))
	return mac.Sum(nil)
}

// wipe zeroizes the stage secrets.
func (ks *keySchedule) wipe() {
	if ks.handshake != nil {
		memguard.WipeBytes(ks.handshake)
	}
	if ks.master != nil {
		memguard.WipeBytes(ks.master)
	}
	ks.handshake, ks.master = nil, nil
}

// wipeAll zeroizes every non-nil slice.
func wipeAll(secrets ...[]byte) {
	for _, s := range secrets {
		if s != nil {
			memguard.WipeBytes(s)
		}
	}
}
