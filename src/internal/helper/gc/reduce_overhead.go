// Copyright (c) 2024 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"io"

	"github.com/awnumar/memguard"
	"github.com/valyala/bytebufferpool"
)

// Buffer is the subset of [bytebufferpool.ByteBuffer] callers rely on.
type Buffer interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	WriteByte(c byte) error
	WriteTo(w io.Writer) (int64, error)
	ReadFrom(r io.Reader) (int64, error)
	Bytes() []byte
	String() string
	Len() int
	Set(p []byte)
	SetString(s string)
	Reset()
}

// Pool hands out and takes back Buffers. Implementations must be safe for
// concurrent use.
type Pool interface {
	Get() Buffer
	Put(b Buffer)
}

// pool wraps [bytebufferpool.Pool] to implement Pool interface.
type pool struct{ p *bytebufferpool.Pool }

// Get returns a buffer from the pool.
func (p *pool) Get() Buffer { return p.p.Get() }

// Put returns a buffer to the pool.
func (p *pool) Put(b Buffer) {
	if buf, ok := b.(*bytebufferpool.ByteBuffer); ok {
		p.p.Put(buf)
	}
}

// Default is the default buffer pool used for efficient memory reuse in I/O operations.
//
// Example usage for reading an HTTP response body (CRL or OCSP download):
//
//	buf := gc.Default.Get()
//	defer func() {
//		buf.Reset()         // Reset the buffer to prevent data leaks
//		gc.Default.Put(buf) // Return the buffer to the pool for reuse
//	}()
//
//	if _, err := buf.ReadFrom(resp.Body); err != nil {
//		return fmt.Errorf("failed to read CRL: %w", err)
//	}
//
//	crl, err := x509.ParseRevocationList(buf.Bytes())
//
// Example usage for assembling a record before a single transport write:
//
//	buf := gc.Default.Get()
//	defer func() {
//		Wipe(buf)
//		gc.Default.Put(buf)
//	}()
//
//	buf.Write(header)
//	buf.Write(payload)
//	_, err := conn.Write(buf.Bytes())
//
// Note: Bytes returned by a pooled buffer must not be retained after Put.
// Copy them first when they outlive the buffer.
var Default Pool = &pool{p: &bytebufferpool.Pool{}}

// Wipe overwrites the buffer contents with zeros and resets it.
// Use it before returning a buffer that held plaintext or key material.
func Wipe(b Buffer) {
	memguard.WipeBytes(b.Bytes())
	b.Reset()
}
