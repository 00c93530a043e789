// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
//
// SMI value types as a tagged sum type dispatched on the wire tag,
// rather than an inheritance/base-class hierarchy.
package snmpmgr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
)

// Value is the tagged union of every on-wire SMI value. Exactly one
// field besides Tag is meaningful for a given Tag; OctetString/IPAddress
// /Opaque/Sequence/ObjectIdentifier share the Bytes/Oid fields.
type Value struct {
	Tag   byte
	Int   int64  // Integer32
	Uint  uint64 // Counter32, Gauge32, TimeTicks, Counter64
	Bytes []byte // OctetString, IpAddress, Opaque, Sequence (raw inner bytes)
	Oid   Oid    // ObjectIdentifier
}

// Constructors, one per SMI syntax, folded into the sum type.

func NewInteger32(v int32) Value   { return Value{Tag: tagInteger32, Int: int64(v)} }
func NewCounter32(v uint32) Value  { return Value{Tag: tagCounter32, Uint: uint64(v)} }
func NewGauge32(v uint32) Value    { return Value{Tag: tagGauge32, Uint: uint64(v)} }
func NewTimeTicks(v uint32) Value  { return Value{Tag: tagTimeTicks, Uint: uint64(v)} }
func NewCounter64(v uint64) Value  { return Value{Tag: tagCounter64, Uint: v} }
func NewOctetString(b []byte) Value {
	return Value{Tag: tagOctetString, Bytes: append([]byte(nil), b...)}
}
func NewString(s string) Value { return NewOctetString([]byte(s)) }
func NewOpaque(b []byte) Value {
	return Value{Tag: tagOpaque, Bytes: append([]byte(nil), b...)}
}
func NewNull() Value                    { return Value{Tag: tagNull} }
func NewObjectIdentifier(o Oid) Value   { return Value{Tag: tagObjectID, Oid: o.Clone()} }
func NewNoSuchObject() Value            { return Value{Tag: tagNoSuchObject} }
func NewNoSuchInstance() Value          { return Value{Tag: tagNoSuchInstance} }
func NewEndOfMibView() Value            { return Value{Tag: tagEndOfMibView} }
func NewSequence(raw []byte) Value {
	return Value{Tag: tagSequence, Bytes: append([]byte(nil), raw...)}
}

// NewIPAddress builds an IpAddress value from a net.IP (4-byte form
// required).
func NewIPAddress(ip net.IP) (Value, error) {
	v4 := ip.To4()
	if v4 == nil {
		return Value{}, fmt.Errorf("snmpmgr: IpAddress requires an IPv4 address, got %v", ip)
	}
	return Value{Tag: tagIPAddress, Bytes: append([]byte(nil), v4...)}, nil
}

// IsException reports whether this is one of the three zero-length
// exception variants (noSuchObject/noSuchInstance/endOfMibView).
func (v Value) IsException() bool {
	switch v.Tag {
	case tagNoSuchObject, tagNoSuchInstance, tagEndOfMibView:
		return true
	}
	return false
}

// TypeName returns the human-readable SMI type name (the conventional
// snmpget/snmpwalk -O ... type prefix).
func (v Value) TypeName() string {
	switch v.Tag {
	case tagInteger32:
		return "INTEGER"
	case tagOctetString:
		return "OCTET STRING"
	case tagNull:
		return "NULL"
	case tagObjectID:
		return "OBJECT IDENTIFIER"
	case tagSequence:
		return "SEQUENCE"
	case tagIPAddress:
		return "IPADDR"
	case tagCounter32:
		return "COUNTER32"
	case tagGauge32:
		return "GAUGE32"
	case tagTimeTicks:
		return "TIMETICKS"
	case tagOpaque:
		return "OPAQUE"
	case tagCounter64:
		return "COUNTER64"
	case tagNoSuchObject:
		return "noSuchObject"
	case tagNoSuchInstance:
		return "noSuchInstance"
	case tagEndOfMibView:
		return "endOfMibView"
	}
	return "UNKNOWN"
}

// String renders a human-readable form across the full tagged union.
func (v Value) String() string {
	switch v.Tag {
	case tagInteger32:
		return fmt.Sprintf("%d", v.Int)
	case tagCounter32, tagGauge32, tagCounter64:
		return fmt.Sprintf("%d", v.Uint)
	case tagTimeTicks:
		d := v.Uint
		return fmt.Sprintf("%d.%ds", d/100, d%100)
	case tagOctetString, tagOpaque:
		if isPrintable(v.Bytes) {
			return string(v.Bytes)
		}
		return fmt.Sprintf("% x", v.Bytes)
	case tagIPAddress:
		if len(v.Bytes) == 4 {
			return net.IP(v.Bytes).String()
		}
		return fmt.Sprintf("% x", v.Bytes)
	case tagObjectID:
		return v.Oid.String()
	case tagNull:
		return ""
	case tagNoSuchObject:
		return "No Such Object available on this agent at this OID"
	case tagNoSuchInstance:
		return "No Such Instance currently exists at this OID"
	case tagEndOfMibView:
		return "End of MIB view"
	case tagSequence:
		return fmt.Sprintf("SEQUENCE(%d bytes)", len(v.Bytes))
	}
	return "<unknown>"
}

func isPrintable(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			if c != '\t' && c != '\n' && c != '\r' {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := v
	if v.Bytes != nil {
		out.Bytes = append([]byte(nil), v.Bytes...)
	}
	if v.Oid != nil {
		out.Oid = v.Oid.Clone()
	}
	return out
}

// Equal reports whether two values are identical in tag and content.
func (v Value) Equal(other Value) bool {
	if v.Tag != other.Tag {
		return false
	}
	switch v.Tag {
	case tagInteger32:
		return v.Int == other.Int
	case tagCounter32, tagGauge32, tagTimeTicks, tagCounter64:
		return v.Uint == other.Uint
	case tagObjectID:
		return v.Oid.Equal(other.Oid)
	case tagOctetString, tagOpaque, tagIPAddress, tagSequence:
		return bytes.Equal(v.Bytes, other.Bytes)
	case tagNull, tagNoSuchObject, tagNoSuchInstance, tagEndOfMibView:
		return true
	}
	return false
}

// encode serializes v as a complete TLV field.
func (v Value) encode() ([]byte, error) {
	buf := newEncBuf()
	switch v.Tag {
	case tagInteger32:
		buf.writeTLV(v.Tag, encodeInt64(v.Int))
	case tagCounter32, tagGauge32, tagTimeTicks:
		buf.writeTLV(v.Tag, encodeCounterPayload(uint32(v.Uint)))
	case tagCounter64:
		buf.writeTLV(v.Tag, encodeCounter64Payload(v.Uint))
	case tagOctetString, tagOpaque, tagSequence:
		buf.writeTLV(v.Tag, v.Bytes)
	case tagIPAddress:
		if len(v.Bytes) != 4 {
			return nil, newDecodeError("ipaddress", fmt.Errorf("IpAddress must be exactly 4 bytes, got %d", len(v.Bytes)))
		}
		buf.writeTLV(v.Tag, v.Bytes)
	case tagObjectID:
		enc, err := v.Oid.encode()
		if err != nil {
			return nil, err
		}
		buf.writeTLV(v.Tag, enc)
	case tagNull, tagNoSuchObject, tagNoSuchInstance, tagEndOfMibView:
		buf.writeTLV(v.Tag, nil)
	default:
		return nil, newDecodeError("value", errUnknownSMIType)
	}
	return buf.Bytes(), nil
}

// encodeCounterPayload emits an unsigned 32-bit value as a BER integer
// payload. Counter32/Gauge32/TimeTicks are unsigned on the wire but
// still use minimum-length two's-complement framing, so a value with
// its high bit set needs a leading 0x00 to keep it from reading as
// negative (e.g. Counter32(0xFFFFFFFF) encodes as 00 FF FF FF FF).
func encodeCounterPayload(v uint32) []byte {
	if v <= 0x7fffffff {
		return encodeInt64(int64(v))
	}
	var tmp [5]byte
	binary.BigEndian.PutUint32(tmp[1:], v)
	return tmp[:]
}

func encodeCounter64Payload(v uint64) []byte {
	if v <= 0x7fffffffffffffff {
		return encodeInt64(int64(v))
	}
	var tmp [9]byte
	binary.BigEndian.PutUint64(tmp[1:], v)
	return tmp[:]
}

// decodeValue parses one TLV value field from d, syntax-dispatching on
// the tag byte. An unrecognized tag is a hard decode error.
func decodeValue(d *decBuf) (Value, error) {
	tag, payload, err := readHeader(d)
	if err != nil {
		return Value{}, err
	}
	return decodeValueFromPayload(tag, payload)
}

func decodeValueFromPayload(tag byte, payload []byte) (Value, error) {
	switch tag {
	case tagInteger32:
		iv, err := decodeInt64(payload)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Int: iv}, nil
	case tagCounter32, tagGauge32, tagTimeTicks:
		uv, err := decodeUintBytes(payload)
		if err != nil {
			return Value{}, err
		}
		if uv > 0xFFFFFFFF {
			return Value{}, newDecodeError("value", errLengthMismatch)
		}
		return Value{Tag: tag, Uint: uv}, nil
	case tagCounter64:
		uv, err := decodeUintBytes(payload)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Uint: uv}, nil
	case tagOctetString, tagOpaque, tagSequence:
		return Value{Tag: tag, Bytes: append([]byte(nil), payload...)}, nil
	case tagIPAddress:
		if len(payload) != 4 {
			return Value{}, newDecodeError("ipaddress", errLengthMismatch)
		}
		return Value{Tag: tag, Bytes: append([]byte(nil), payload...)}, nil
	case tagObjectID:
		oid, err := decodeOid(payload)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Oid: oid}, nil
	case tagNull:
		if len(payload) != 0 {
			return Value{}, newDecodeError("null", errLengthMismatch)
		}
		return Value{Tag: tag}, nil
	case tagNoSuchObject, tagNoSuchInstance, tagEndOfMibView:
		if len(payload) != 0 {
			return Value{}, newDecodeError("exception", errLengthMismatch)
		}
		return Value{Tag: tag}, nil
	}
	return Value{}, newDecodeError("value", errUnknownSMIType)
}

// DiffCounter32 computes (later-earlier) mod 2^32, the wraparound-aware
// difference used for Counter32 deltas.
func DiffCounter32(earlier, later uint32) uint32 {
	return later - earlier
}

// DiffCounter64 computes (later-earlier) mod 2^64.
func DiffCounter64(earlier, later uint64) uint64 {
	return later - earlier
}

// IP address helpers: class detection, mask construction, subnet/
// broadcast derivation.

// IPClass returns 'A', 'B', 'C', 'D', or 'E' for a 4-byte IpAddress
// value based on the leading bits of the first octet.
func (v Value) IPClass() (byte, error) {
	if v.Tag != tagIPAddress || len(v.Bytes) != 4 {
		return 0, fmt.Errorf("snmpmgr: IPClass requires an IpAddress value")
	}
	b0 := v.Bytes[0]
	switch {
	case b0&0x80 == 0:
		return 'A', nil
	case b0&0xC0 == 0x80:
		return 'B', nil
	case b0&0xE0 == 0xC0:
		return 'C', nil
	case b0&0xF0 == 0xE0:
		return 'D', nil
	default:
		return 'E', nil
	}
}

// MaskFromBits builds a 4-byte subnet mask from a prefix bit count.
func MaskFromBits(bits int) (Value, error) {
	if bits < 0 || bits > 32 {
		return Value{}, fmt.Errorf("snmpmgr: mask bit count out of range: %d", bits)
	}
	var m uint32
	if bits > 0 {
		m = ^uint32(0) << (32 - bits)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], m)
	return Value{Tag: tagIPAddress, Bytes: b[:]}, nil
}

// Subnet returns the network address for v masked by mask.
func (v Value) Subnet(mask Value) (Value, error) {
	if v.Tag != tagIPAddress || mask.Tag != tagIPAddress || len(v.Bytes) != 4 || len(mask.Bytes) != 4 {
		return Value{}, fmt.Errorf("snmpmgr: Subnet requires two IpAddress values")
	}
	out := make([]byte, 4)
	for i := range out {
		out[i] = v.Bytes[i] & mask.Bytes[i]
	}
	return Value{Tag: tagIPAddress, Bytes: out}, nil
}

// Broadcast returns the broadcast address for v masked by mask.
func (v Value) Broadcast(mask Value) (Value, error) {
	if v.Tag != tagIPAddress || mask.Tag != tagIPAddress || len(v.Bytes) != 4 || len(mask.Bytes) != 4 {
		return Value{}, fmt.Errorf("snmpmgr: Broadcast requires two IpAddress values")
	}
	out := make([]byte, 4)
	for i := range out {
		out[i] = v.Bytes[i] | ^mask.Bytes[i]
	}
	return Value{Tag: tagIPAddress, Bytes: out}, nil
}
