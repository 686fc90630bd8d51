// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509chain implements [X.509] certificate chain evaluation.
// It provides capabilities to:
//   - Evaluate a chain (leaf first) against an [AnchorSet] and return an
//     all-or-nothing [Verdict] covering signatures, validity, basic
//     constraints, revocation and identity.
//   - Check revocation status using [OCSP] and [CRL] with caching, or from a
//     static list, behind the [RevocationChecker] interface.
//   - Complete incomplete chains by fetching intermediate certificates via AIA URLs.
//   - Fetch remote certificate chains from TLS endpoints.
//   - Render chains and verdicts as tables, trees or JSON.
//
// [Evaluate] is a pure function of its inputs and safe for concurrent use.
//
// [X.509]: https://grokipedia.com/page/X.509
// [OCSP]: https://grokipedia.com/page/Online_Certificate_Status_Protocol
// [CRL]: https://grokipedia.com/page/Certificate_revocation_list
package x509chain
