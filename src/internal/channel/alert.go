// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"errors"
	"fmt"

	"github.com/H0llyW00dzZ/x509-secure-channel/src/internal/session"
)

// alert is an alert description code.
type alert uint8

const (
	alertLevelWarning = 1
	alertLevelFatal   = 2
)

const (
	alertCloseNotify         alert = 0
	alertUnexpectedMessage   alert = 10
	alertBadRecordMAC        alert = 20
	alertRecordOverflow      alert = 22
	alertHandshakeFailure    alert = 40
	alertBadCertificate      alert = 42
	alertIllegalParameter    alert = 47
	alertDecodeError         alert = 50
	alertDecryptError        alert = 51
	alertProtocolVersion     alert = 70
	alertInternalError       alert = 80
	alertCertificateRequired alert = 116
)

var alertNames = map[alert]string{
	alertCloseNotify:         "close_notify",
	alertUnexpectedMessage:   "unexpected_message",
	alertBadRecordMAC:        "bad_record_mac",
	alertRecordOverflow:      "record_overflow",
	alertHandshakeFailure:    "handshake_failure",
	alertBadCertificate:      "bad_certificate",
	alertIllegalParameter:    "illegal_parameter",
	alertDecodeError:         "decode_error",
	alertDecryptError:        "decrypt_error",
	alertProtocolVersion:     "protocol_version",
	alertInternalError:       "internal_error",
	alertCertificateRequired: "certificate_required",
}

func (a alert) String() string {
	if name, ok := alertNames[a]; ok {
		return name
	}
	return fmt.Sprintf("alert(%d)", uint8(a))
}

// peerAlertError converts an alert received from the peer into an error.
// Negotiation failures also match the session sentinels.
func peerAlertError(a alert) error {
	switch a {
	case alertHandshakeFailure:
		return fmt.Errorf("%w (%w: %s)", session.ErrNoCommonCipherSuite, ErrPeerAlert, a)
	case alertProtocolVersion:
		return fmt.Errorf("%w (%w: %s)", session.ErrNoCommonVersion, ErrPeerAlert, a)
	default:
		return fmt.Errorf("%w: %s", ErrPeerAlert, a)
	}
}

// alertFor picks the alert sent to the peer when err fails the channel.
// It reports false for failures that must not be answered with an alert.
func alertFor(err error) (alert, bool) {
	switch {
	case errors.Is(err, ErrPeerAlert),
		errors.Is(err, ErrIO),
		errors.Is(err, ErrTruncatedClose),
		errors.Is(err, ErrClosed):
		return 0, false
	case errors.Is(err, session.ErrNoCommonCipherSuite):
		return alertHandshakeFailure, true
	case errors.Is(err, session.ErrNoCommonVersion):
		return alertProtocolVersion, true
	case errors.Is(err, errMissingCertificate):
		return alertCertificateRequired, true
	case errors.Is(err, ErrUntrustedPeer):
		return alertBadCertificate, true
	case errors.Is(err, errRecordOverflow):
		return alertRecordOverflow, true
	case errors.Is(err, ErrMACFailure):
		return alertBadRecordMAC, true
	case errors.Is(err, ErrSignatureFailure):
		return alertDecryptError, true
	case errors.Is(err, errIllegalParameter):
		return alertIllegalParameter, true
	case errors.Is(err, ErrMalformedMessage):
		return alertDecodeError, true
	case errors.Is(err, ErrUnexpectedMessage),
		errors.Is(err, ErrReplayedRecord),
		errors.Is(err, ErrOutOfOrderRecord):
		return alertUnexpectedMessage, true
	default:
		return alertInternalError, true
	}
}

// Refinements of the public sentinels that select a more specific alert.
var (
	errRecordOverflow     = fmt.Errorf("%w: record overflow", ErrMalformedMessage)
	errIllegalParameter   = fmt.Errorf("%w: illegal parameter", ErrMalformedMessage)
	errMissingCertificate = fmt.Errorf("%w: no certificate presented", ErrUntrustedPeer)
)
