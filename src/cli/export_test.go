// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

// Serve exposes the accept loop so tests can run it on an ephemeral port.
var Serve = serve

// ServeCRLCache exposes the CRL cache constructor used by serve.
var ServeCRLCache = serveCRLCache
