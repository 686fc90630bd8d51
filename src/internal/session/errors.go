// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session

import "errors"

var (
	// ErrConfiguration is the parent of every construction failure reported by [New] and [LoadFile].
	ErrConfiguration = errors.New("session: invalid configuration")

	// ErrNoCommonCipherSuite indicates the two peers share no usable cipher suite.
	ErrNoCommonCipherSuite = errors.New("session: no common cipher suite")

	// ErrNoCommonVersion indicates the two peers share no protocol version.
	ErrNoCommonVersion = errors.New("session: no common protocol version")

	// ErrClosed is returned when key material is requested from a closed context.
	ErrClosed = errors.New("session: context closed")
)
