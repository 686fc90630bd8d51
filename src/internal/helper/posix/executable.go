// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"path/filepath"
	"strings"
)

// ExecutableName returns the name the process was invoked as, without
// directory or ".exe" suffix, or fallback when os.Args carries no name.
func ExecutableName(fallback string) string {
	if len(os.Args) == 0 {
		return fallback
	}
	return BaseName(os.Args[0], fallback)
}

// BaseName strips directories and a trailing ".exe" from arg0.
//
// Both '/' and '\' separate components regardless of the host OS, so a
// Windows path reported on a Unix system still yields its last element:
//   - "/usr/local/bin/x509-secure-channel" -> "x509-secure-channel"
//   - "C:\bin\x509-secure-channel.exe" -> "x509-secure-channel"
//   - "" -> fallback
func BaseName(arg0, fallback string) string {
	parts := strings.FieldsFunc(filepath.ToSlash(arg0), func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 0 {
		return fallback
	}

	name := strings.TrimSuffix(parts[len(parts)-1], ".exe")
	if name == "" {
		return fallback
	}
	return name
}
