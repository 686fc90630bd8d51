// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides [POSIX]-style helpers that behave the same on every
// operating system.
//
// The CLI uses [ExecutableName] for its usage strings, so help output names
// the binary the way the user invoked it:
//
//	rootCmd := &cobra.Command{
//	    Use: posix.ExecutableName("x509-secure-channel"),
//	}
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
