// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import "errors"

// DecodeError covers malformed wire data: short buffers, invalid tags,
// wrong containers, unknown SMI types, bad OID sub-identifier encoding.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return "snmpmgr: decode " + e.Op + ": " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(op string, err error) error {
	return &DecodeError{Op: op, Err: err}
}

// ProtocolError covers version/PDU-type/request-id/community/securityName
// mismatches between a request and its reply.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return "snmpmgr: protocol " + e.Op + ": " + e.Err.Error() }
func (e *ProtocolError) Unwrap() error { return e.Err }

func newProtocolError(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

// USMError covers SNMPv3 security-model failures: auth failure, unsupported
// security level, bad engineId, time-window violations, short secrets.
type USMError struct {
	Op  string
	Err error
}

func (e *USMError) Error() string { return "snmpmgr: usm " + e.Op + ": " + e.Err.Error() }
func (e *USMError) Unwrap() error { return e.Err }

func newUSMError(op string, err error) error {
	return &USMError{Op: op, Err: err}
}

// TransportError covers network-level failures: unreachable, refused,
// message too large, timed out, socket terminated.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "snmpmgr: transport " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func newTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// StatusError surfaces an agent-reported error-status/error-index pair
// (RFC 3416 §4.1.2.1) to the caller without treating it as fatal to the
// transport layer — the caller decides whether it is exceptional.
type StatusError struct {
	Status ErrorStatus
	Index  int
}

func (e *StatusError) Error() string {
	return "snmpmgr: agent error-status " + e.Status.String() + " at index " + itoa(e.Index)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

var (
	errShortBuffer       = errors.New("short buffer")
	errInvalidTag        = errors.New("invalid ASN.1 tag")
	errWrongContainer    = errors.New("wrong sequence container")
	errLengthMismatch    = errors.New("length mismatch")
	errUnknownSMIType    = errors.New("unknown SMI value type")
	errInvalidOIDEncoded = errors.New("invalid OID sub-identifier encoding")
	errIndefiniteLength  = errors.New("indefinite length encoding not supported")
	errMultiByteTag      = errors.New("multi-byte tag extension not supported")

	errVersionMismatch      = errors.New("version mismatch")
	errUnexpectedPDUType    = errors.New("unexpected PDU type for context")
	errRequestIDMismatch    = errors.New("request-id mismatch")
	errCommunityMismatch    = errors.New("community mismatch")
	errSecurityNameMismatch = errors.New("securityName mismatch")

	errAuthenticationFailed = errors.New("authentication failed")
	errUnsupportedSecModel  = errors.New("unsupported security model")
	errNoAuthPrivForbidden  = errors.New("unsupported noAuthPriv combination: priv without auth")
	errInvalidAuthParamsLen = errors.New("invalid authenticationParameters length")
	errInvalidPrivParamsLen = errors.New("invalid privacyParameters length")
	errUnsupportedPrivProto = errors.New("unsupported privacy protocol")
	errInvalidEngineID      = errors.New("invalid authoritative engineId")
	errTimeWindowExceeded   = errors.New("engine time outside validity window")
	errSecretTooShort       = errors.New("secret too short (must be at least 8 bytes)")
	errPrivKeyTooShort      = errors.New("derived privacy key shorter than protocol requires")

	errRequestTimedOut  = errors.New("request timed out")
	errSocketTerminated = errors.New("socket terminated")
	errMessageTooLarge  = errors.New("message size exceeded maxMessageSize")
)
