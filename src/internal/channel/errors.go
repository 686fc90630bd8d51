// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import "errors"

var (
	// ErrUnexpectedMessage indicates a message that is not valid at this point of the protocol.
	ErrUnexpectedMessage = errors.New("channel: unexpected message")

	// ErrMalformedMessage indicates a record or handshake message that does not decode.
	ErrMalformedMessage = errors.New("channel: malformed message")

	// ErrMACFailure indicates a record or Finished message that failed authentication.
	ErrMACFailure = errors.New("channel: message authentication failed")

	// ErrSignatureFailure indicates a CertificateVerify signature that does not verify.
	ErrSignatureFailure = errors.New("channel: signature verification failed")

	// ErrTruncatedClose indicates the transport ended without a close_notify alert.
	ErrTruncatedClose = errors.New("channel: connection closed without close_notify")

	// ErrIO wraps transport read and write failures.
	ErrIO = errors.New("channel: transport failure")

	// ErrClosed is returned by operations on a channel closed locally.
	ErrClosed = errors.New("channel: closed")

	// ErrReplayedRecord indicates a record whose sequence number was already consumed.
	ErrReplayedRecord = errors.New("channel: replayed record")

	// ErrOutOfOrderRecord indicates a record whose sequence number skips ahead.
	ErrOutOfOrderRecord = errors.New("channel: out of order record")

	// ErrUntrustedPeer indicates the peer's certificate chain was rejected.
	// It is joined with the evaluator's error so both can be matched.
	ErrUntrustedPeer = errors.New("channel: untrusted peer")

	// ErrPeerAlert indicates the peer aborted the connection with a fatal alert.
	ErrPeerAlert = errors.New("channel: alert from peer")

	// ErrInvalidState indicates an operation the current state does not allow.
	ErrInvalidState = errors.New("channel: invalid state")
)
