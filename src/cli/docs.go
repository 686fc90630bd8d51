// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the command-line interface of the secure channel toolkit.
//
// It implements a Cobra command tree:
//   - inspect: describe the certificates or key stored in a file
//   - verify: evaluate a chain, local or fetched from a TLS endpoint, against trust anchors
//     and render it as a verdict table, a details table, a tree or JSON; --bundle saves
//     the completed chain
//   - keygen: generate a key with a self-signed or CA-issued certificate
//   - serve: accept secure channels on a TCP address and echo what each peer sends
//   - connect: open a secure channel to a serve instance and exchange data
//   - version: print the version
//
// serve (--listen, --handshake-timeout) and connect (--message, --timeout)
// build their session from a YAML or JSON session file given by --config. The
// key passphrase is never accepted on the command line; --passphrase-env names
// the environment variable that holds it.
//
// Diagnostics go through the logger package: human readable lines by default,
// or JSON lines tagged with the command name under --log-format json.
package cli
