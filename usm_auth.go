// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

import (
	"crypto/hmac"
	"crypto/subtle"
)

// authDigestLen is the truncated HMAC length used on the wire for both
// HMAC-MD5-96 and HMAC-SHA1-96 (the "-96" names the truncation).
const authDigestLen = 12

// computeAuthDigest returns the truncated HMAC over msg using key,
// keyed by proto's underlying hash. msg is the full serialized message
// with the msgAuthenticationParameters field zero-filled to its normal
// 12-byte length.
func computeAuthDigest(proto AuthProtocol, key []byte, msg []byte) ([]byte, error) {
	newHash, _, err := newHasherFor(proto)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, key)
	mac.Write(msg)
	full := mac.Sum(nil)
	return full[:authDigestLen], nil
}

// verifyAuthDigest recomputes the digest over msg (with its
// authenticationParameters field zeroed) and compares it against
// received in constant time, so that a timing attack can't be used to
// discover a prefix of the correct digest.
func verifyAuthDigest(proto AuthProtocol, key []byte, msg []byte, received []byte) (bool, error) {
	if len(received) != authDigestLen {
		return false, newUSMError("verify", errInvalidAuthParamsLen)
	}
	expected, err := computeAuthDigest(proto, key, msg)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(expected, received) == 1, nil
}

// zeroAuthParams returns a copy of the encoded v3 message with the
// 12-byte msgAuthenticationParameters OctetString content replaced by
// zeros, locating it by its unique byte offset within msg. The caller
// supplies that offset, found while building or parsing the USM
// parameters sequence.
func zeroAuthParams(msg []byte, offset int) []byte {
	out := append([]byte(nil), msg...)
	for i := offset; i < offset+authDigestLen && i < len(out); i++ {
		out[i] = 0
	}
	return out
}
