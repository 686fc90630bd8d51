// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by terms
// of License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestCRL creates a minimal signed CRL for testing purposes.
func generateTestCRL(t testing.TB, nextUpdate time.Time) *x509.RevocationList {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CRL Issuer"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCRLSign | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)
	issuer, err := x509.ParseCertificate(certDER)
	require.NoError(t, err)

	crlDER, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: nextUpdate.Add(-24 * time.Hour),
		NextUpdate: nextUpdate,
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: big.NewInt(12345), RevocationTime: time.Now().Add(-time.Hour)},
		},
	}, issuer, privateKey)
	require.NoError(t, err)

	list, err := x509.ParseRevocationList(crlDER)
	require.NoError(t, err)
	return list
}

// TestLRUAccessOrder tests that LRU access order is properly maintained
func TestLRUAccessOrder(t *testing.T) {
	tests := []struct {
		name           string
		accessSequence []string // URLs in access order
		expectLRUOrder []string // Expected LRU order (least to most recent)
	}{
		{
			name:           "Single access",
			accessSequence: []string{"url1"},
			expectLRUOrder: []string{"url1"},
		},
		{
			name:           "Sequential access",
			accessSequence: []string{"url1", "url2", "url3"},
			expectLRUOrder: []string{"url1", "url2", "url3"},
		},
		{
			name:           "Re-access moves to end",
			accessSequence: []string{"url1", "url2", "url3", "url1", "url2"},
			expectLRUOrder: []string{"url3", "url1", "url2"},
		},
		{
			name:           "Multiple re-access",
			accessSequence: []string{"a", "b", "c", "d", "b", "a", "c", "e"},
			expectLRUOrder: []string{"d", "b", "a", "c", "e"},
		},
		{
			name:           "Same URL repeated",
			accessSequence: []string{"url1", "url1", "url1", "url1"},
			expectLRUOrder: []string{"url1"},
		},
	}

	list := generateTestCRL(t, time.Now().Add(24*time.Hour))

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cache := NewCRLCache(&CRLCacheConfig{MaxSize: 10, CleanupInterval: time.Hour})

			seen := make(map[string]bool)
			for _, url := range test.accessSequence {
				if seen[url] {
					_, found := cache.Get(url)
					assert.True(t, found, "expected to find cached CRL for %s", url)
					continue
				}
				seen[url] = true
				cache.Set(url, list)
			}

			cache.mu.Lock()
			order := cache.urlsLocked()
			cache.mu.Unlock()
			assert.Equal(t, test.expectLRUOrder, order)
		})
	}
}

// TestLRUEvictionCorrectness tests that the least recently used entry is evicted first
func TestLRUEvictionCorrectness(t *testing.T) {
	list := generateTestCRL(t, time.Now().Add(24*time.Hour))
	cache := NewCRLCache(&CRLCacheConfig{MaxSize: 2, CleanupInterval: time.Hour})

	cache.Set("a", list)
	cache.Set("b", list)

	// Touch "a" so "b" becomes the eviction candidate.
	_, found := cache.Get("a")
	require.True(t, found)

	cache.Set("c", list)

	_, found = cache.Get("b")
	assert.False(t, found, "b should have been evicted")
	_, found = cache.Get("a")
	assert.True(t, found)
	_, found = cache.Get("c")
	assert.True(t, found)

	// Overwriting an existing key must not evict.
	cache.Set("c", list)
	metrics := cache.Metrics()
	assert.Equal(t, int64(2), metrics.Size)
	assert.Equal(t, int64(1), metrics.Evictions)
}

func TestCRLCache_SetConfigPrunes(t *testing.T) {
	list := generateTestCRL(t, time.Now().Add(24*time.Hour))
	cache := NewCRLCache(nil)
	assert.Equal(t, DefaultCRLCacheConfig, cache.Config())

	for i := range 5 {
		cache.Set(fmt.Sprintf("url%d", i), list)
	}

	cache.SetConfig(&CRLCacheConfig{MaxSize: 2, CleanupInterval: -1})
	cfg := cache.Config()
	assert.Equal(t, 2, cfg.MaxSize)
	assert.Equal(t, time.Hour, cfg.CleanupInterval, "invalid interval falls back to default")

	metrics := cache.Metrics()
	assert.Equal(t, int64(2), metrics.Size)
	assert.Equal(t, int64(3), metrics.Evictions)

	_, found := cache.Get("url4")
	assert.True(t, found, "most recent entry must survive pruning")

	cache.SetConfig(&CRLCacheConfig{MaxSize: -3})
	assert.Equal(t, 0, cache.Config().MaxSize)
}

func TestCRLCache_Freshness(t *testing.T) {
	now := time.Now()
	cache := NewCRLCache(nil)
	cache.now = func() time.Time { return now }

	fresh := generateTestCRL(t, now.Add(time.Hour))
	stale := generateTestCRL(t, now.Add(-30*time.Minute))
	expired := generateTestCRL(t, now.Add(-2*time.Hour))

	cache.Set("fresh", fresh)
	cache.Set("stale", stale)
	cache.Set("expired", expired)

	_, found := cache.Get("fresh")
	assert.True(t, found)
	_, found = cache.Get("stale")
	assert.False(t, found, "a CRL past NextUpdate is never served")

	// Only entries beyond the grace period are removed.
	assert.Equal(t, 1, cache.Cleanup())
	metrics := cache.Metrics()
	assert.Equal(t, int64(2), metrics.Size)
	assert.Equal(t, int64(1), metrics.Cleanups)
	assert.Equal(t, int64(1), metrics.Hits)
	assert.Equal(t, int64(1), metrics.Misses)
	assert.Greater(t, metrics.TotalMemory, int64(0))

	// A day later the fresh list has aged out as well.
	now = now.Add(25 * time.Hour)
	_, found = cache.Get("fresh")
	assert.False(t, found)
	assert.Equal(t, 2, cache.Cleanup())
}

func TestCRLCache_Clear(t *testing.T) {
	cache := NewCRLCache(nil)
	cache.Set("x", generateTestCRL(t, time.Now().Add(time.Hour)))
	cache.Get("x")
	cache.Get("y")

	cache.Clear()
	metrics := cache.Metrics()
	assert.Equal(t, CRLCacheMetrics{}, metrics)
	assert.Contains(t, cache.Stats(), "Size: 0/100 entries")
}

// TestLRUConcurrentAccess exercises the cache from many goroutines; run with -race.
func TestLRUConcurrentAccess(t *testing.T) {
	list := generateTestCRL(t, time.Now().Add(24*time.Hour))
	cache := NewCRLCache(&CRLCacheConfig{MaxSize: 8, CleanupInterval: time.Hour})

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				url := fmt.Sprintf("url%d", (g+i)%12)
				if i%3 == 0 {
					cache.Set(url, list)
				} else {
					cache.Get(url)
				}
				if i%25 == 0 {
					cache.Cleanup()
					_ = cache.Stats()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Metrics().Size, int64(8))
}

func TestCRLCache_StartCleanup(t *testing.T) {
	cache := NewCRLCache(&CRLCacheConfig{MaxSize: 10, CleanupInterval: 5 * time.Millisecond})
	cache.Set("expired", generateTestCRL(t, time.Now().Add(-2*time.Hour)))

	ctx := t.Context()
	cache.StartCleanup(ctx)
	cache.StartCleanup(ctx) // second call is a no-op

	assert.Eventually(t, func() bool {
		return cache.Metrics().Size == 0
	}, time.Second, 5*time.Millisecond)
	assert.True(t, cache.CleanupRunning())
}
