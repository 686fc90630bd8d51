// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import "errors"

var (
	// ErrInputFileRequired is returned when a command needs a file argument and got none.
	ErrInputFileRequired = errors.New("cli: input file is required")

	// ErrNotTrusted is returned by verify when the chain is rejected.
	ErrNotTrusted = errors.New("cli: certificate chain is not trusted")

	// ErrConfigRequired is returned when serve or connect runs without --config.
	ErrConfigRequired = errors.New("cli: session config file is required")

	// ErrUnknownFormat is returned for an unsupported --format or --log-format value.
	ErrUnknownFormat = errors.New("cli: unknown output format")

	// ErrIssuerKeyMismatch is returned by keygen when --issuer-key does not belong to --issuer-cert.
	ErrIssuerKeyMismatch = errors.New("cli: issuer key does not match issuer certificate")
)
