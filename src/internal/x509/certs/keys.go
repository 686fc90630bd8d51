// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/youmark/pkcs8"
)

// keyFormat records how key material was encoded on input so that the
// canonical form can be reproduced byte for byte.
type keyFormat int

const (
	formatNone keyFormat = iota
	formatPKCS8
	formatPKIX
)

// KeyMaterial is an asymmetric key pair (or a lone public key) owned by the store.
//
// KeyMaterial implements [crypto.Signer] when it holds a private key. It starts with
// one reference owned by its creator. Holders that keep it beyond a call, such as a
// session context, take their own reference with [KeyMaterial.Retain] and drop it with
// [KeyMaterial.Release]. When the count reaches zero the private components are
// zeroized and every further Sign fails with [ErrKeyDestroyed].
//
// KeyMaterial is safe for concurrent use by multiple goroutines.
type KeyMaterial struct {
	mu         sync.RWMutex
	refs       int
	destroyed  bool
	private    bool
	algorithm  x509.PublicKeyAlgorithm
	bits       int
	exportable bool
	signer     crypto.Signer
	public     crypto.PublicKey
	der        []byte
	format     keyFormat
}

// NewKeyMaterial wraps a private key. The signer must be an *rsa.PrivateKey,
// *ecdsa.PrivateKey or ed25519.PrivateKey.
func NewKeyMaterial(signer crypto.Signer, exportable bool) (*KeyMaterial, error) {
	alg, bits, err := describePublicKey(signer.Public())
	if err != nil {
		return nil, err
	}
	switch signer.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, signer)
	}
	return &KeyMaterial{
		refs:       1,
		algorithm:  alg,
		bits:       bits,
		private:    true,
		exportable: exportable,
		signer:     signer,
		public:     signer.Public(),
	}, nil
}

// NewPublicKeyMaterial wraps a public key with no private half.
func NewPublicKeyMaterial(pub crypto.PublicKey) (*KeyMaterial, error) {
	alg, bits, err := describePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{
		refs:       1,
		algorithm:  alg,
		bits:       bits,
		exportable: true,
		public:     pub,
	}, nil
}

func describePublicKey(pub crypto.PublicKey) (x509.PublicKeyAlgorithm, int, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return x509.RSA, k.N.BitLen(), nil
	case *ecdsa.PublicKey:
		return x509.ECDSA, k.Curve.Params().BitSize, nil
	case ed25519.PublicKey:
		return x509.Ed25519, 256, nil
	default:
		return x509.UnknownPublicKeyAlgorithm, 0, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}

// Algorithm returns the public key algorithm.
func (k *KeyMaterial) Algorithm() x509.PublicKeyAlgorithm { return k.algorithm }

// Bits returns the key size in bits (modulus size for RSA, curve size for ECDSA).
func (k *KeyMaterial) Bits() int { return k.bits }

// IsPrivate reports whether the material holds a private key.
func (k *KeyMaterial) IsPrivate() bool { return k.private }

// Exportable reports whether the private key may be encoded.
func (k *KeyMaterial) Exportable() bool { return k.exportable }

// Public returns the public half. It stays available after destruction.
func (k *KeyMaterial) Public() crypto.PublicKey { return k.public }

// String describes the key, e.g. "ECDSA-256 (private)".
func (k *KeyMaterial) String() string {
	kind := "public"
	if k.IsPrivate() {
		kind = "private"
	}
	return fmt.Sprintf("%s-%d (%s)", k.algorithm, k.bits, kind)
}

// Sign signs digest with the private key.
func (k *KeyMaterial) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return nil, ErrKeyDestroyed
	}
	if !k.private {
		return nil, fmt.Errorf("%w: no private key", ErrUnsupportedKey)
	}
	return k.signer.Sign(rand, digest, opts)
}

// Retain takes an additional reference and returns k for chaining.
// Retaining destroyed material has no effect.
func (k *KeyMaterial) Retain() *KeyMaterial {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.destroyed {
		k.refs++
	}
	return k
}

// Release drops one reference and zeroizes the key once none remain.
func (k *KeyMaterial) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}
	k.refs--
	if k.refs <= 0 {
		k.destroyLocked()
	}
}

// Destroy zeroizes the key regardless of outstanding references.
func (k *KeyMaterial) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.destroyed {
		k.destroyLocked()
	}
}

// Destroyed reports whether the key has been zeroized.
func (k *KeyMaterial) Destroyed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.destroyed
}

func (k *KeyMaterial) destroyLocked() {
	k.destroyed = true
	k.refs = 0

	if k.der != nil && k.format == formatPKCS8 {
		memguard.WipeBytes(k.der)
		k.der = nil
	}

	switch priv := k.signer.(type) {
	case ed25519.PrivateKey:
		memguard.WipeBytes(priv)
	case *ecdsa.PrivateKey:
		wipeInt(priv.D)
	case *rsa.PrivateKey:
		wipeInt(priv.D)
		for _, p := range priv.Primes {
			wipeInt(p)
		}
		wipeInt(priv.Precomputed.Dp)
		wipeInt(priv.Precomputed.Dq)
		wipeInt(priv.Precomputed.Qinv)
	}
	k.signer = nil
}

// wipeInt zeroes the words backing n.
func wipeInt(n *big.Int) {
	if n == nil {
		return
	}
	words := n.Bits()
	for i := range words {
		words[i] = 0
	}
	n.SetInt64(0)
}

// MatchesCertificate reports whether the certificate's public key equals the key's public half.
func MatchesCertificate(cert *x509.Certificate, k *KeyMaterial) bool {
	if cert == nil || k == nil {
		return false
	}
	pub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return false
	}
	return pub.Equal(k.public)
}

// encryptedPrivateKeyInfo is the outer PKCS#8 structure of an encrypted key.
type encryptedPrivateKeyInfo struct {
	Algorithm     pkix.AlgorithmIdentifier
	EncryptedData []byte
}

func looksEncryptedPKCS8(der []byte) bool {
	var info encryptedPrivateKeyInfo
	rest, err := asn1.Unmarshal(der, &info)
	return err == nil && len(rest) == 0 && len(info.EncryptedData) > 0
}

// ParseKey decodes key material from PEM or DER.
//
// Supported encodings are PKCS#8 (plain or encrypted), PKCS#1 RSA, SEC1 EC,
// legacy encrypted PEM and PKIX / PKCS#1 public keys. Encrypted input without
// a passphrase fails with [ErrPassphraseRequired]; a wrong passphrase fails with
// [ErrIncorrectPassphrase]; anything malformed fails with [ErrParseKey].
func ParseKey(data, passphrase []byte) (*KeyMaterial, error) {
	if len(data) == 0 {
		return nil, ErrParseKey
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return parseKeyDER(data, passphrase)
	}

	//lint:ignore SA1019 legacy encrypted PEM is still produced by common tooling
	if x509.IsEncryptedPEMBlock(block) {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		//lint:ignore SA1019 see above
		der, err := x509.DecryptPEMBlock(block, passphrase)
		if err != nil {
			if errors.Is(err, x509.IncorrectPasswordError) {
				return nil, ErrIncorrectPassphrase
			}
			return nil, ErrParseKey
		}
		defer memguard.WipeBytes(der)
		km, err := parseKeyDER(der, nil)
		if err != nil {
			return nil, ErrIncorrectPassphrase
		}
		return km, nil
	}

	switch block.Type {
	case PEMTypeEncryptedPrivateKey:
		return parseEncryptedPKCS8(block.Bytes, passphrase)
	case PEMTypePrivateKey:
		return parsePKCS8(block.Bytes)
	case PEMTypeRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, ErrParseKey
		}
		return NewKeyMaterial(key, true)
	case PEMTypeECPrivateKey:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, ErrParseKey
		}
		return NewKeyMaterial(key, true)
	case PEMTypePublicKey:
		return parsePKIX(block.Bytes)
	case PEMTypeRSAPublicKey:
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, ErrParseKey
		}
		return NewPublicKeyMaterial(pub)
	default:
		return nil, ErrInvalidBlockType
	}
}

func parseKeyDER(der, passphrase []byte) (*KeyMaterial, error) {
	if km, err := parsePKCS8(der); err == nil {
		return km, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return NewKeyMaterial(key, true)
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return NewKeyMaterial(key, true)
	}
	if km, err := parsePKIX(der); err == nil {
		return km, nil
	}
	if looksEncryptedPKCS8(der) {
		return parseEncryptedPKCS8(der, passphrase)
	}
	return nil, ErrParseKey
}

func parsePKCS8(der []byte) (*KeyMaterial, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, ErrParseKey
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	km, err := NewKeyMaterial(signer, true)
	if err != nil {
		return nil, err
	}
	km.der = append([]byte(nil), der...)
	km.format = formatPKCS8
	return km, nil
}

func parsePKIX(der []byte) (*KeyMaterial, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, ErrParseKey
	}
	km, err := NewPublicKeyMaterial(pub)
	if err != nil {
		return nil, err
	}
	km.der = append([]byte(nil), der...)
	km.format = formatPKIX
	return km, nil
}

func parseEncryptedPKCS8(der, passphrase []byte) (*KeyMaterial, error) {
	if !looksEncryptedPKCS8(der) {
		return nil, ErrParseKey
	}
	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}
	key, err := pkcs8.ParsePKCS8PrivateKey(der, passphrase)
	if err != nil {
		return nil, ErrIncorrectPassphrase
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	return NewKeyMaterial(signer, true)
}

// EncodeKey encodes key material to DER.
//
// Public material is encoded as PKIX. Private material is encoded as PKCS#8,
// encrypted with PBES2 when passphrase is non-empty. Plain PKCS#8 input is
// reproduced byte for byte.
func EncodeKey(k *KeyMaterial, passphrase []byte) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return nil, ErrKeyDestroyed
	}
	if !k.private {
		if k.format == formatPKIX {
			return append([]byte(nil), k.der...), nil
		}
		return x509.MarshalPKIXPublicKey(k.public)
	}
	if !k.exportable {
		return nil, ErrNotExportable
	}

	if len(passphrase) > 0 {
		der, err := pkcs8.MarshalPrivateKey(k.signer, passphrase, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal encrypted PKCS#8: %w", err)
		}
		return der, nil
	}
	if k.format == formatPKCS8 {
		return append([]byte(nil), k.der...), nil
	}
	return x509.MarshalPKCS8PrivateKey(k.signer)
}

// EncodeKeyPEM encodes key material to PEM using [EncodeKey].
func EncodeKeyPEM(k *KeyMaterial, passphrase []byte) ([]byte, error) {
	der, err := EncodeKey(k, passphrase)
	if err != nil {
		return nil, err
	}

	blockType := PEMTypePublicKey
	switch {
	case k.IsPrivate() && len(passphrase) > 0:
		blockType = PEMTypeEncryptedPrivateKey
	case k.IsPrivate():
		blockType = PEMTypePrivateKey
	}

	out := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if k.IsPrivate() {
		memguard.WipeBytes(der)
	}
	return out, nil
}
