// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
)

// recordType is the content type in a record header.
type recordType uint8

const (
	recordTypeAlert           recordType = 21
	recordTypeHandshake       recordType = 22
	recordTypeApplicationData recordType = 23
)

const (
	recordHeaderLen = 5
	seqLen          = 8

	// maxPlaintext is the largest payload a single record carries.
	maxPlaintext = 1 << 14
	// maxCiphertext bounds the payload of a protected record.
	maxCiphertext = maxPlaintext + seqLen + 256
)

// record is one decoded record. header aliases the first bytes of raw.
type record struct {
	typ     recordType
	version session.Version
	header  []byte
	payload []byte
}

// recordBuffer reassembles records from arbitrarily fragmented transport reads.
//
// next reports (record, false, nil) while a complete record is not yet buffered.
type recordBuffer struct {
	buf []byte
}

func (b *recordBuffer) feed(p []byte) { b.buf = append(b.buf, p...) }

func (b *recordBuffer) next() (record, bool, error) {
	if len(b.buf) < recordHeaderLen {
		return record{}, false, nil
	}

	typ := recordType(b.buf[0])
	version := session.Version(binary.BigEndian.Uint16(b.buf[1:3]))
	n := int(binary.BigEndian.Uint16(b.buf[3:5]))

	switch typ {
	case recordTypeAlert, recordTypeHandshake, recordTypeApplicationData:
	default:
		return record{}, false, fmt.Errorf("%w: unknown record type %d", ErrMalformedMessage, typ)
	}
	if !version.Known() {
		return record{}, false, fmt.Errorf("%w: record version 0x%04x", ErrMalformedMessage, uint16(version))
	}
	if n > maxCiphertext {
		return record{}, false, fmt.Errorf("%w: %d byte record", errRecordOverflow, n)
	}
	if len(b.buf) < recordHeaderLen+n {
		return record{}, false, nil
	}

	raw := make([]byte, recordHeaderLen+n)
	copy(raw, b.buf)
	rest := copy(b.buf, b.buf[len(raw):])
	b.buf = b.buf[:rest]

	return record{
		typ:     typ,
		version: version,
		header:  raw[:recordHeaderLen],
		payload: raw[recordHeaderLen:],
	}, true, nil
}

// wipe zeroes buffered bytes and drops them.
func (b *recordBuffer) wipe() {
	memguard.WipeBytes(b.buf[:cap(b.buf)])
	b.buf = b.buf[:0]
}

// halfConn is the record protection state of one direction.
// The embedded mutex is the channel's in or out lock.
type halfConn struct {
	sync.Mutex

	// version is written to (or required on) records once negotiated.
	version session.Version

	aead cipher.AEAD
	key  []byte
	iv   []byte
	seq  uint64
}

// recordVersion is the version written in headers, the legacy 1.2 value before negotiation.
func (hc *halfConn) recordVersion() session.Version {
	if hc.version == 0 {
		return session.Version12
	}
	return hc.version
}

// setTrafficSecret installs keys derived from secret and restarts the sequence.
func (hc *halfConn) setTrafficSecret(ks *keySchedule, secret []byte) error {
	key, iv := ks.trafficKey(secret)
	aead, err := ks.suite.NewAEAD(key)
	if err != nil {
		memguard.WipeBytes(key)
		memguard.WipeBytes(iv)
		return err
	}

	hc.wipe()
	hc.aead, hc.key, hc.iv, hc.seq = aead, key, iv, 0
	return nil
}

// wipe zeroizes the traffic key and IV.
func (hc *halfConn) wipe() {
	if hc.key != nil {
		memguard.WipeBytes(hc.key)
	}
	if hc.iv != nil {
		memguard.WipeBytes(hc.iv)
	}
	hc.aead, hc.key, hc.iv = nil, nil, nil
}

func (hc *halfConn) nonce(seq uint64) []byte {
	nonce := make([]byte, len(hc.iv))
	copy(nonce, hc.iv)
	for i := range 8 {
		nonce[len(nonce)-1-i] ^= byte(seq >> (8 * i))
	}
	return nonce
}

// encode appends one record carrying payload to buf, protecting it when keys are installed.
func (hc *halfConn) encode(buf gc.Buffer, typ recordType, payload []byte) error {
	version := hc.recordVersion()

	if hc.aead == nil {
		var header [recordHeaderLen]byte
		header[0] = byte(typ)
		binary.BigEndian.PutUint16(header[1:], uint16(version))
		binary.BigEndian.PutUint16(header[3:], uint16(len(payload)))
		buf.Write(header[:])
		buf.Write(payload)
		return nil
	}

	if hc.seq == math.MaxUint64 {
		return fmt.Errorf("%w: sequence number exhausted", ErrInvalidState)
	}

	inner := make([]byte, 0, len(payload)+1)
	inner = append(inner, payload...)
	inner = append(inner, byte(typ))
	defer memguard.WipeBytes(inner[:len(payload)])

	var aad [recordHeaderLen + seqLen]byte
	aad[0] = byte(recordTypeApplicationData)
	binary.BigEndian.PutUint16(aad[1:], uint16(version))
	binary.BigEndian.PutUint16(aad[3:], uint16(seqLen+len(inner)+hc.aead.Overhead()))
	binary.BigEndian.PutUint64(aad[recordHeaderLen:], hc.seq)

	sealed := hc.aead.Seal(nil, hc.nonce(hc.seq), inner, aad[:])

	buf.Write(aad[:])
	buf.Write(sealed)
	hc.seq++
	return nil
}

// decode returns the content type and plaintext of rec.
//
// Protected records are authenticated before their sequence number is
// compared with the expected one, so only genuine records can report
// [ErrReplayedRecord] or [ErrOutOfOrderRecord].
func (hc *halfConn) decode(rec record) (recordType, []byte, error) {
	if hc.version != 0 && rec.version != hc.version {
		return 0, nil, fmt.Errorf("%w: record version %s, negotiated %s", ErrMalformedMessage, rec.version, hc.version)
	}

	if hc.aead == nil {
		if rec.typ == recordTypeApplicationData {
			return 0, nil, fmt.Errorf("%w: application data before keys", ErrUnexpectedMessage)
		}
		if len(rec.payload) > maxPlaintext {
			return 0, nil, fmt.Errorf("%w: %d byte plaintext", errRecordOverflow, len(rec.payload))
		}
		return rec.typ, rec.payload, nil
	}

	if rec.typ != recordTypeApplicationData {
		return 0, nil, fmt.Errorf("%w: unprotected %d record after key change", ErrUnexpectedMessage, rec.typ)
	}
	if len(rec.payload) < seqLen+hc.aead.Overhead()+1 {
		return 0, nil, fmt.Errorf("%w: short protected record", ErrMalformedMessage)
	}

	seq := binary.BigEndian.Uint64(rec.payload[:seqLen])

	aad := make([]byte, 0, recordHeaderLen+seqLen)
	aad = append(aad, rec.header...)
	aad = append(aad, rec.payload[:seqLen]...)

	plaintext, err := hc.aead.Open(rec.payload[seqLen:seqLen], hc.nonce(seq), rec.payload[seqLen:], aad)
	if err != nil {
		return 0, nil, ErrMACFailure
	}

	switch {
	case seq < hc.seq:
		return 0, nil, fmt.Errorf("%w: sequence %d, expected %d", ErrReplayedRecord, seq, hc.seq)
	case seq > hc.seq:
		return 0, nil, fmt.Errorf("%w: sequence %d, expected %d", ErrOutOfOrderRecord, seq, hc.seq)
	}
	hc.seq++

	typ := recordType(plaintext[len(plaintext)-1])
	plaintext = plaintext[:len(plaintext)-1]
	switch typ {
	case recordTypeAlert, recordTypeHandshake, recordTypeApplicationData:
	default:
		return 0, nil, fmt.Errorf("%w: inner content type %d", ErrMalformedMessage, typ)
	}
	if len(plaintext) > maxPlaintext {
		return 0, nil, fmt.Errorf("%w: %d byte plaintext", errRecordOverflow, len(plaintext))
	}
	return typ, plaintext, nil
}
