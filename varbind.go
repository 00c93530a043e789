// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
package snmpmgr

// Vb is a variable binding: an (OID, value) pair encoded as a Sequence
// containing the two.
type Vb struct {
	OID   Oid
	Value Value
}

// Clone returns a deep copy.
func (vb Vb) Clone() Vb {
	return Vb{OID: vb.OID.Clone(), Value: vb.Value.Clone()}
}

func (vb Vb) encode() ([]byte, error) {
	oidEnc, err := vb.OID.encode()
	if err != nil {
		return nil, err
	}
	oidBuf := newEncBuf()
	oidBuf.writeTLV(tagObjectID, oidEnc)

	valEnc, err := vb.Value.encode()
	if err != nil {
		return nil, err
	}

	inner := newEncBuf()
	inner.Write(oidBuf.Bytes())
	inner.Write(valEnc)

	out := newEncBuf()
	out.writeTLV(tagSequence, inner.Bytes())
	return out.Bytes(), nil
}

func decodeVb(d *decBuf) (Vb, error) {
	tag, payload, err := readHeader(d)
	if err != nil {
		return Vb{}, err
	}
	if tag != tagSequence {
		return Vb{}, newDecodeError("varbind", errWrongContainer)
	}
	inner := newDecBuf(payload)
	oidTag, oidPayload, err := readHeader(inner)
	if err != nil {
		return Vb{}, err
	}
	if oidTag != tagObjectID {
		return Vb{}, newDecodeError("varbind", errInvalidTag)
	}
	oid, err := decodeOid(oidPayload)
	if err != nil {
		return Vb{}, err
	}
	val, err := decodeValue(inner)
	if err != nil {
		return Vb{}, err
	}
	return Vb{OID: oid, Value: val}, nil
}

// VbList is an ordered list of variable bindings.
type VbList []Vb

// Equal performs positional, pairwise comparison: Vb order is
// significant and part of identity.
func (l VbList) Equal(other VbList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if !l[i].OID.Equal(other[i].OID) || !l[i].Value.Equal(other[i].Value) {
			return false
		}
	}
	return true
}

func (l VbList) Clone() VbList {
	out := make(VbList, len(l))
	for i, vb := range l {
		out[i] = vb.Clone()
	}
	return out
}

func encodeVbList(l VbList) ([]byte, error) {
	inner := newEncBuf()
	for _, vb := range l {
		enc, err := vb.encode()
		if err != nil {
			return nil, err
		}
		inner.Write(enc)
	}
	out := newEncBuf()
	out.writeTLV(tagSequence, inner.Bytes())
	return out.Bytes(), nil
}

func decodeVbList(d *decBuf) (VbList, error) {
	tag, payload, err := readHeader(d)
	if err != nil {
		return nil, err
	}
	if tag != tagSequence {
		return nil, newDecodeError("varbind-list", errWrongContainer)
	}
	inner := newDecBuf(payload)
	var list VbList
	for !inner.atEnd() {
		vb, err := decodeVb(inner)
		if err != nil {
			return nil, err
		}
		list = append(list, vb)
	}
	return list, nil
}
