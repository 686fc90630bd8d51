// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto/x509"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/awnumar/memguard"
)

// Store owns named key material and certificate chains.
//
// Keys handed out by [Store.Key] carry their own reference; the caller must
// Release them. [Store.Close] drops the store's references so keys still held
// elsewhere (for example by a session context) live until that holder releases them.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu     sync.RWMutex
	codec  *Certificate
	keys   map[string]*KeyMaterial
	chains map[string][]*x509.Certificate
	closed bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		codec:  New(),
		keys:   make(map[string]*KeyMaterial),
		chains: make(map[string][]*x509.Certificate),
	}
}

// Codec returns the certificate codec used by the store.
func (s *Store) Codec() *Certificate { return s.codec }

// AddKey stores key under name, taking ownership of the caller's reference.
// A key previously stored under the same name is released.
func (s *Store) AddKey(name string, key *KeyMaterial) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.keys[name]; ok && old != key {
		old.Release()
	}
	s.keys[name] = key
}

// Key returns a retained reference to the named key.
func (s *Store) Key(name string) (*KeyMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: key %q", ErrNotFound, name)
	}
	return key.Retain(), nil
}

// AddChain stores a certificate chain (leaf first) under name.
func (s *Store) AddChain(name string, chain []*x509.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chains[name] = append([]*x509.Certificate(nil), chain...)
}

// Chain returns a copy of the named chain.
func (s *Store) Chain(name string) ([]*x509.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.chains[name]
	if !ok {
		return nil, fmt.Errorf("%w: certificate %q", ErrNotFound, name)
	}
	return append([]*x509.Certificate(nil), chain...), nil
}

// Names lists stored key and chain names in sorted order.
func (s *Store) Names() (keys, chains []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := range s.keys {
		keys = append(keys, name)
	}
	for name := range s.chains {
		chains = append(chains, name)
	}
	sort.Strings(keys)
	sort.Strings(chains)
	return keys, chains
}

// LoadKeyFile parses the key file at path and stores it under name.
// The passphrase buffer is wiped before returning.
func (s *Store) LoadKeyFile(name, path string, passphrase []byte) error {
	defer memguard.WipeBytes(passphrase)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	defer memguard.WipeBytes(data)

	key, err := ParseKey(data, passphrase)
	if err != nil {
		return fmt.Errorf("key file %s: %w", path, err)
	}

	s.AddKey(name, key)
	return nil
}

// LoadChainFile parses every certificate in the file at path and stores them under name.
func (s *Store) LoadChainFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read certificate file %s: %w", path, err)
	}

	certs, err := s.codec.DecodeMultiple(data)
	if err != nil {
		return fmt.Errorf("certificate file %s: %w", path, err)
	}
	if len(certs) == 0 {
		return fmt.Errorf("certificate file %s: %w", path, ErrParseCertificate)
	}

	s.AddChain(name, certs)
	return nil
}

// Close releases every key reference held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for name, key := range s.keys {
		key.Release()
		delete(s.keys, name)
	}
	return nil
}
