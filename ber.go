// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
//
// This file implements BER (Basic Encoding Rules, ITU-T X.690) TLV
// header and integer encoding for the SNMP wire dialect. encoding/asn1
// implements DER, a stricter subset, and does not round-trip the BER
// variants real agents emit, so the codec is hand-rolled like in every
// other Go SNMP library.
package snmpmgr

import "encoding/binary"

// encodeLength encodes a length per X.690: short form (<=127, one byte)
// or long form (leading byte with the high bit set plus the count of
// big-endian length octets, followed by those octets).
func encodeLength(length int) []byte {
	if length < 0 {
		panic("snmpmgr: negative length")
	}
	if length <= 0x7f {
		return []byte{byte(length)}
	}
	enc := encodeUint(uint64(length))
	out := make([]byte, 1+len(enc))
	out[0] = asnLongLenBit | byte(len(enc))
	copy(out[1:], enc)
	return out
}

// decodeLength reads a BER length at d.pos and advances past it.
func decodeLength(d *decBuf) (int, error) {
	first, err := d.peekByte()
	if err != nil {
		return 0, errShortBuffer
	}
	if first == asnLongLenBit {
		return 0, errIndefiniteLength
	}
	if first&asnLongLenBit == 0 {
		d.pos++
		return int(first), nil
	}
	numOctets := int(first &^ asnLongLenBit)
	d.pos++
	lenBytes, err := d.readN(numOctets)
	if err != nil {
		return 0, errShortBuffer
	}
	val, err := decodeUintBytes(lenBytes)
	if err != nil {
		return 0, err
	}
	return int(val), nil
}

// readHeader parses a TLV tag+length at d.pos, advances past the
// header and the value, and returns the tag byte and the value slice
// (bounds-checked against the declared length).
func readHeader(d *decBuf) (tag byte, value []byte, err error) {
	tagByte, err := d.peekByte()
	if err != nil {
		return 0, nil, errShortBuffer
	}
	if tagByte&asnTagExtMask == asnTagExtMask {
		return 0, nil, errMultiByteTag
	}
	d.pos++
	length, err := decodeLength(d)
	if err != nil {
		return 0, nil, err
	}
	val, err := d.readN(length)
	if err != nil {
		return 0, nil, errShortBuffer
	}
	return tagByte, val, nil
}

// encodeUint encodes an unsigned integer in minimum-length big-endian
// form (no leading 0x00, except the single-byte zero case).
func encodeUint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	i := 0
	for i < 7 && tmp[i] == 0 {
		i++
	}
	return tmp[i:]
}

// decodeUintBytes decodes an unsigned big-endian integer of up to 8
// significant bytes. A leading 0x00 pad is tolerated: Counter64 values
// with the top bit set arrive as 9 bytes, since BER integer framing is
// signed and needs the pad to keep them non-negative.
func decodeUintBytes(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, errShortBuffer
	}
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) > 8 {
		return 0, newDecodeError("length", errLengthMismatch)
	}
	var val uint64
	for _, c := range b {
		val = val<<8 | uint64(c)
	}
	return val, nil
}

// encodeInt64 encodes a signed integer in minimum-length two's-complement
// form: no redundant leading 0x00 (positive) or 0xFF (negative) byte
// given the sign of the following bit.
func encodeInt64(v int64) []byte {
	// Find the minimum number of bytes such that sign-extending the
	// leading byte reproduces v.
	n := 1
	for shiftCheck := v; ; n++ {
		hi := shiftCheck >> 7
		if (hi == 0 && shiftCheck >= 0) || (hi == -1 && shiftCheck < 0) {
			break
		}
		shiftCheck >>= 8
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// decodeInt64 decodes a signed two's-complement big-endian integer of up
// to 8 bytes, sign-extending from the leading byte.
func decodeInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errShortBuffer
	}
	if len(b) > 8 {
		return 0, newDecodeError("integer", errLengthMismatch)
	}
	var val int64
	if b[0]&0x80 != 0 {
		val = -1
	}
	for _, c := range b {
		val = val<<8 | int64(c)
	}
	return val, nil
}

// encodeInt32TLV is a convenience wrapper for the SMI Integer32 and
// enumerated fields (request-id, error-status, ...).
func encodeInt32TLV(tag byte, v int32) []byte {
	buf := newEncBuf()
	buf.writeTLV(tag, encodeInt64(int64(v)))
	return buf.Bytes()
}
