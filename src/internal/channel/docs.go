// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package channel implements a mutually authenticated secure channel over any
// byte stream.
//
// # Lifecycle
//
// A [Channel] moves through Idle, Handshaking, Established, Closing and Closed.
// Failed is reachable from Handshaking and Established. Closed and Failed are
// terminal, and every traffic key is zeroized on entry to either of them.
//
// # Wire format
//
// Records are framed as
//
//	type(1) | version(2) | length(2) | payload
//
// with content types alert (21), handshake (22) and application data (23)
// and at most 2^14 bytes of plaintext each. Once keys are installed every
// record travels as application data with the payload
//
//	seq(8) | AEAD(plaintext || type)
//
// authenticated over the header and the explicit sequence number, with the
// nonce formed by XORing the sequence number into the static IV. A record whose
// sequence number is lower than expected fails the channel with
// [ErrReplayedRecord]; a higher one fails it with [ErrOutOfOrderRecord].
//
// Handshake messages are framed as type(1) | length(3) | body:
//
//	Client                                   Server
//	ClientHello (random, versions,
//	  suites, X25519 share, server name) -->
//	                                   <-- ServerHello (random, version,
//	                                         suite, X25519 share)
//	                                   <-- [CertificateRequest]
//	                                       Certificate, CertificateVerify
//	                                       Finished
//	[Certificate, CertificateVerify]
//	Finished                           -->
//
// Everything after ServerHello is protected with handshake traffic keys, and
// each side switches its sending direction to application keys right after
// its own Finished.
// Keys come from an HKDF schedule over the X25519 shared secret and the
// transcript hash of the negotiated suite. The protocol borrows the shape of
// TLS 1.3 but is not wire compatible with it.
//
// # Trust
//
// Unless the session's verify mode is [session.VerifyNone], the peer's chain
// is evaluated with the session's anchors, revocation policy and, on the
// client, expected server name. A rejected chain fails the handshake with an
// error matching both [ErrUntrustedPeer] and the evaluator's failure kind.
package channel
