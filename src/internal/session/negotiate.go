// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package session

import "slices"

// SelectVersion returns the first version in initiator's list that responder also enables.
func SelectVersion(initiator, responder []Version) (Version, error) {
	for _, v := range initiator {
		if v.Known() && slices.Contains(responder, v) {
			return v, nil
		}
	}
	return 0, ErrNoCommonVersion
}

// SelectCipherSuite returns the first suite in initiator's list that responder
// also enables and that may be used under version.
func SelectCipherSuite(initiator, responder []CipherSuite, version Version) (CipherSuite, error) {
	for _, s := range initiator {
		if s.SupportedBy(version) && slices.Contains(responder, s) {
			return s, nil
		}
	}
	return 0, ErrNoCommonCipherSuite
}
