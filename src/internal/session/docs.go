// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package session holds the immutable configuration shared by secure channels.
//
// A [Context] is built once with [New] (or [LoadFile]) and then handed to any
// number of channels. Construction validates the enabled protocol versions,
// the ordered cipher-suite preference list, the verification mode and the
// local certificate/key pair; nothing can be changed afterwards, so a Context
// may be shared across goroutines without further synchronization.
//
// Protocol versions and cipher suites are closed enumerations. Each value
// carries its own parameters (key and IV length, transcript hash and AEAD
// constructor) and is chosen with [SelectVersion] and [SelectCipherSuite],
// where the initiator's preference order decides among the common values.
package session
