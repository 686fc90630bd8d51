// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// x509-secure-channel is a command-line tool for inspecting keys and
// certificates, evaluating certificate chains against trust anchors, and
// running mutually authenticated secure channels.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/x509-secure-channel/cmd/x509-secure-channel@latest
//
// # Usage
//
//	x509-secure-channel inspect FILE [--passphrase-env NAME]
//	x509-secure-channel verify [CHAIN_FILE] --anchors ROOTS [FLAGS]
//	x509-secure-channel serve --config SESSION [--listen ADDR]
//	x509-secure-channel connect ADDR --config SESSION [--message TEXT]
//	x509-secure-channel version
//
// # Examples
//
// Describe an encrypted private key:
//
//	KEY_PASS=secret x509-secure-channel inspect key.pem --passphrase-env KEY_PASS
//
// Evaluate a chain for a server name, with revocation checking:
//
//	x509-secure-channel verify chain.pem --anchors roots.pem --identity example.com --revocation
//
// Evaluate the chain a TLS endpoint presents, as an ASCII tree:
//
//	x509-secure-channel verify --remote example.com --anchors roots.pem --format tree
//
// Run an echo server and talk to it:
//
//	x509-secure-channel serve --config server.yaml
//	x509-secure-channel connect 127.0.0.1:8443 --config client.yaml --message hello
//
// A session file names the versions, cipher suites, verify mode, certificate,
// key and trust anchors of one side:
//
//	versions: ["1.3"]
//	verify: require
//	certificate: server.pem
//	key: server-key.pem
//	anchors: [clients-root.pem]
package main
