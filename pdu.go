// PowerSNMPv3 - SNMP library for Go
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
//
package snmpmgr

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
)

// PDU is the operation-bearing body of an SNMP message.
// Get/GetNext/Set/Response/Trap/Inform/Report carry ErrorStatus/Index;
// GetBulkRequest carries NonRepeaters/MaxRepetitions instead (same wire
// positions, different meaning).
type PDU struct {
	Kind      PDUKind
	RequestID int32

	ErrorStatus ErrorStatus
	ErrorIndex  int

	NonRepeaters   int
	MaxRepetitions int

	VarBinds VbList

	// TrapSysUpTime / TrapObjectID are populated for V2Trap/Inform PDUs;
	// see injectTrapBindings / extractTrapBindings below.
	TrapSysUpTime *uint32
	TrapObjectID  Oid
}

// Equal performs positional comparison including Vb order and
// error-status/index.
func (p *PDU) Equal(other *PDU) bool {
	if p.Kind != other.Kind || p.RequestID != other.RequestID {
		return false
	}
	if p.Kind == KindGetBulkRequest {
		if p.NonRepeaters != other.NonRepeaters || p.MaxRepetitions != other.MaxRepetitions {
			return false
		}
	} else if p.ErrorStatus != other.ErrorStatus || p.ErrorIndex != other.ErrorIndex {
		return false
	}
	return p.VarBinds.Equal(other.VarBinds)
}

func (p *PDU) Clone() *PDU {
	cp := *p
	cp.VarBinds = p.VarBinds.Clone()
	if p.TrapSysUpTime != nil {
		v := *p.TrapSysUpTime
		cp.TrapSysUpTime = &v
	}
	if p.TrapObjectID != nil {
		cp.TrapObjectID = p.TrapObjectID.Clone()
	}
	return &cp
}

// randomRequestID returns a uniform random value in [1, 2^31).
func randomRequestID() int32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	v := binary.BigEndian.Uint32(b[:]) & 0x7fffffff
	if v == 0 {
		v = 1
	}
	return int32(v)
}

// injectTrapBindings applies V2Trap/Inform encode-time preprocessing:
// ensure the first Vb is sysUpTime.0 and the second is snmpTrapOID.0,
// inserting them if the caller didn't supply them.
func injectTrapBindings(p *PDU) {
	if p.Kind != KindV2Trap && p.Kind != KindInformRequest {
		return
	}
	needSysUpTime := len(p.VarBinds) < 1 || !p.VarBinds[0].OID.Equal(oidSysUpTime)
	if needSysUpTime {
		uptime := uint32(0)
		if p.TrapSysUpTime != nil {
			uptime = *p.TrapSysUpTime
		}
		sysUpVb := Vb{OID: oidSysUpTime.Clone(), Value: NewTimeTicks(uptime)}
		p.VarBinds = append(VbList{sysUpVb}, p.VarBinds...)
	}
	needTrapOID := len(p.VarBinds) < 2 || !p.VarBinds[1].OID.Equal(oidSnmpTrapOID)
	if needTrapOID {
		trapOid := p.TrapObjectID
		if trapOid == nil {
			trapOid = Oid{}
		}
		trapVb := Vb{OID: oidSnmpTrapOID.Clone(), Value: NewObjectIdentifier(trapOid)}
		rebuilt := make(VbList, 0, len(p.VarBinds)+1)
		rebuilt = append(rebuilt, p.VarBinds[0], trapVb)
		rebuilt = append(rebuilt, p.VarBinds[1:]...)
		p.VarBinds = rebuilt
	}
}

// extractTrapBindings performs the decode-time counterpart: pulls the
// first two Vbs (sysUpTime.0, snmpTrapOID.0) out into dedicated fields
// and removes them from the Vb list.
func extractTrapBindings(p *PDU) error {
	if p.Kind != KindV2Trap && p.Kind != KindInformRequest {
		return nil
	}
	if len(p.VarBinds) < 2 {
		return newDecodeError("trap-bindings", errors.New("V2Trap/Inform PDU requires at least 2 varbinds"))
	}
	if !p.VarBinds[0].OID.Equal(oidSysUpTime) {
		return newDecodeError("trap-bindings", errors.New("first varbind is not sysUpTime.0"))
	}
	if !p.VarBinds[1].OID.Equal(oidSnmpTrapOID) {
		return newDecodeError("trap-bindings", errors.New("second varbind is not snmpTrapOID.0"))
	}
	uv := uint32(p.VarBinds[0].Value.Uint)
	p.TrapSysUpTime = &uv
	p.TrapObjectID = p.VarBinds[1].Value.Oid.Clone()
	p.VarBinds = p.VarBinds[2:]
	return nil
}

// encode serializes the PDU as a complete PDU-tagged constructed TLV:
// requestId, errorStatus/errorIndex (or nonRepeaters/maxRepetitions for
// GetBulk), then the varbind-list.
func (p *PDU) encode() ([]byte, error) {
	if p.RequestID == 0 {
		p.RequestID = randomRequestID()
	}
	injectTrapBindings(p)

	inner := newEncBuf()
	inner.Write(encodeInt32TLV(tagInteger32, p.RequestID))
	if p.Kind == KindGetBulkRequest {
		inner.Write(encodeInt32TLV(tagInteger32, int32(p.NonRepeaters)))
		inner.Write(encodeInt32TLV(tagInteger32, int32(p.MaxRepetitions)))
	} else {
		inner.Write(encodeInt32TLV(tagInteger32, int32(p.ErrorStatus)))
		inner.Write(encodeInt32TLV(tagInteger32, int32(p.ErrorIndex)))
	}
	vbEnc, err := encodeVbList(p.VarBinds)
	if err != nil {
		return nil, err
	}
	inner.Write(vbEnc)

	out := newEncBuf()
	out.writeTLV(p.Kind.tag(), inner.Bytes())
	return out.Bytes(), nil
}

// decodePDU parses a PDU-tagged constructed TLV at d.
func decodePDU(d *decBuf) (*PDU, error) {
	tag, payload, err := readHeader(d)
	if err != nil {
		return nil, err
	}
	kind, ok := pduKindFromTag(tag)
	if !ok {
		return nil, newDecodeError("pdu", errUnexpectedPDUType)
	}
	inner := newDecBuf(payload)

	reqIDVal, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	if reqIDVal.Tag != tagInteger32 {
		return nil, newDecodeError("pdu", errInvalidTag)
	}

	field2, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	field3, err := decodeValue(inner)
	if err != nil {
		return nil, err
	}
	if field2.Tag != tagInteger32 || field3.Tag != tagInteger32 {
		return nil, newDecodeError("pdu", errInvalidTag)
	}

	vbs, err := decodeVbList(inner)
	if err != nil {
		return nil, err
	}

	p := &PDU{
		Kind:      kind,
		RequestID: int32(reqIDVal.Int),
		VarBinds:  vbs,
	}
	if kind == KindGetBulkRequest {
		p.NonRepeaters = int(field2.Int)
		p.MaxRepetitions = int(field3.Int)
	} else {
		p.ErrorStatus = ErrorStatus(field2.Int)
		p.ErrorIndex = int(field3.Int)
	}
	if err := extractTrapBindings(p); err != nil {
		return nil, err
	}
	return p, nil
}
